package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/Lokman32/leadprep/internal/auth"
	"github.com/Lokman32/leadprep/internal/catalog"
	"github.com/Lokman32/leadprep/internal/idempotency"
	"github.com/Lokman32/leadprep/internal/orders"
	"github.com/Lokman32/leadprep/internal/reporting"
	"github.com/Lokman32/leadprep/internal/validation"
)

// HandlerConfig groups dependencies for the API routes.
type HandlerConfig struct {
	Auth        *auth.Service
	Issuer      *auth.Issuer
	Catalog     *catalog.Service
	Orders      *orders.Engine
	Reports     *reporting.Service
	Idempotency idempotency.Keeper
	// Metrics serves /metrics when set.
	Metrics      http.Handler
	SecureCookie bool
	Log          logrus.FieldLogger
}

type api struct {
	cfg HandlerConfig
	v   *validatorv10.Validate
	log logrus.FieldLogger
}

// RegisterRoutes mounts the health, metrics and /api routes on r.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	a := &api{cfg: cfg, v: validation.New(), log: cfg.Log.WithField("module", "http")}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	root := r.Group("/api")
	root.POST("/login", a.login)

	authed := root.Group("", auth.RequireAuth(cfg.Issuer))
	authed.POST("/logout", a.logout)

	admin := auth.RequireRole(auth.RoleAdmin)
	logistic := auth.RequireRole(auth.RoleLogistic, auth.RoleAdmin)
	operator := auth.RequireRole(auth.RoleOperator, auth.RoleAdmin)

	parts := authed.Group("/parts")
	parts.GET("", a.listParts)
	parts.GET("/exists", a.partExists)
	parts.POST("/search", a.searchParts)
	parts.POST("", admin, a.createPart)
	parts.PUT("/:identifier", admin, a.updatePart)
	parts.DELETE("/:identifier", admin, a.deletePart)

	createOrder := []gin.HandlerFunc{a.createOrder}
	if cfg.Idempotency != nil {
		createOrder = append([]gin.HandlerFunc{idempotency.Middleware(cfg.Idempotency, a.log)}, createOrder...)
	}
	authed.POST("/orders", createOrder...)
	authed.GET("/orders/overdue", a.overdue)
	authed.PUT("/orders/:code/lines/:part/description", logistic, a.updateFeedback)

	authed.POST("/deliveries", logistic, a.recordDelivery)
	authed.GET("/deliveries/pending", a.pendingDeliveries)
	authed.GET("/deliveries/awaiting-confirmation", a.awaitingConfirmation)
	authed.POST("/confirmations", operator, a.confirmDelivery)
	authed.GET("/logistic", logistic, a.logisticBoard)

	authed.GET("/history", admin, a.shiftSummary)
	authed.GET("/history/details", admin, a.shiftDetails)

	adm := authed.Group("/admin", admin)
	adm.GET("/orders", a.dayLines)
	adm.GET("/orders/:code/lines/:part", a.lineDetail)
	adm.PUT("/orders/:code/lines/:part/status", a.updateLineStatus)
	adm.DELETE("/orders/:code", a.deleteOrder)
	adm.DELETE("/orders/:code/lines/:part", a.deleteLine)
	adm.DELETE("/orders/:code/lines/:part/serials/:serial", a.deleteDelivery)
}
