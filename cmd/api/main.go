package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Lokman32/leadprep/internal/app"
	"github.com/Lokman32/leadprep/internal/config"
	"github.com/Lokman32/leadprep/internal/handlers"
	"github.com/Lokman32/leadprep/internal/logging"
	"github.com/Lokman32/leadprep/internal/telemetry"
)

const serviceName = "leadprep-api"

var version = "dev"

func setupRouter(a *app.App, metrics *telemetry.Metrics, metricsHandler http.Handler) (*gin.Engine, error) {
	authSvc, issuer, err := a.Auth()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Logger(a.Log))
	r.Use(metrics.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     a.Config.Server.CorsOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", logging.RequestIDHeader},
		ExposeHeaders:    []string{"Idempotent-Replayed", logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(r, handlers.HandlerConfig{
		Auth:         authSvc,
		Issuer:       issuer,
		Catalog:      a.Catalog(),
		Orders:       a.Engine(metrics),
		Reports:      a.Reports(),
		Idempotency:  a.Idempotency,
		Metrics:      metricsHandler,
		SecureCookie: a.Config.Environment == "production",
		Log:          a.Log,
	})
	return r, nil
}

func main() {
	cfg, err := config.LoadConfig(os.Getenv("LEADPREP_CONFIG_DIR"))
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Environment != "production" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	provider, err := telemetry.InitMeterProvider(serviceName, version)
	if err != nil {
		log.Fatalf("failed to init metrics: %v", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()
	metrics, err := telemetry.NewMetrics(provider)
	if err != nil {
		log.Fatalf("failed to create instruments: %v", err)
	}

	r, err := setupRouter(a, metrics, provider.Handler)
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	if cfg.Server.Mode == "local" {
		srv := &http.Server{Addr: cfg.Server.Address, Handler: r, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		log.WithField("addr", cfg.Server.Address).Info("running local server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
