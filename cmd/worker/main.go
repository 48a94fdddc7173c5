package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Lokman32/leadprep/internal/app"
	"github.com/Lokman32/leadprep/internal/aws"
	"github.com/Lokman32/leadprep/internal/config"
	"github.com/Lokman32/leadprep/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("LEADPREP_CONFIG_DIR"))
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	var sink MetricWriter = logSink{log: log}
	if a.Clients != nil {
		sink = aws.NewMetricsSink(a.Clients.CloudWatch, cfg.Metrics.Namespace)
	}
	p := NewProcessor(sink, log)

	if cfg.Server.Mode != "local" {
		lambda.Start(p.Handle)
		return
	}

	if err := runScheduler(ctx, p, a, cfg.Worker.OverdueScanInterval, log); err != nil {
		log.Fatalf("worker error: %v", err)
	}
	log.Info("worker shutting down gracefully")
}

// runScheduler runs the periodic overdue scan until ctx is cancelled.
func runScheduler(ctx context.Context, p *Processor, a *app.App, every time.Duration, log logrus.FieldLogger) error {
	g, ctx := errgroup.WithContext(ctx)
	reports := a.Reports()

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler(gocron.WithLocation(a.Location))
		if err != nil {
			return err
		}
		_, err = scheduler.NewJob(
			gocron.DurationJob(every),
			gocron.NewTask(func() {
				n, err := p.ScanOverdue(ctx, reports, time.Now())
				if err != nil {
					log.WithError(err).Error("overdue scan failed")
					return
				}
				log.WithField("overdue", n).Info("overdue scan complete")
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return err
		}
		log.WithField("interval", every).Info("starting overdue scan")
		scheduler.Start()

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	return g.Wait()
}
