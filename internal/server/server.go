package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openvenue/gatepass/internal/config"
	eventdomain "github.com/openvenue/gatepass/internal/event/domain"
	"github.com/openvenue/gatepass/internal/observability"
	obsmiddleware "github.com/openvenue/gatepass/internal/observability/logger"
	obsmetrics "github.com/openvenue/gatepass/internal/observability/metrics"
	obstracing "github.com/openvenue/gatepass/internal/observability/tracing"
	paymentdomain "github.com/openvenue/gatepass/internal/payment/domain"
	paymentservice "github.com/openvenue/gatepass/internal/payment/service"
	"github.com/openvenue/gatepass/internal/ratelimit"
	registrationdomain "github.com/openvenue/gatepass/internal/registration/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type ServerParams struct {
	fx.In

	Engine     *gin.Engine
	Log        *zap.Logger
	Cfg        config.Config
	EventSvc   eventdomain.Service
	RegSvc     registrationdomain.Service
	WebhookSvc paymentdomain.WebhookService
	PaymentSvc *paymentservice.Service
	Limiter    *ratelimit.IntakeLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics      `optional:"true"`
}

type Server struct {
	engine     *gin.Engine
	log        *zap.Logger
	cfg        config.Config
	eventSvc   eventdomain.Service
	regSvc     registrationdomain.Service
	webhookSvc paymentdomain.WebhookService
	paymentSvc *paymentservice.Service
	limiter    *ratelimit.IntakeLimiter
	obsMetrics *obsmetrics.Metrics
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Engine,
		log:        p.Log.Named("server"),
		cfg:        p.Cfg,
		eventSvc:   p.EventSvc,
		regSvc:     p.RegSvc,
		webhookSvc: p.WebhookSvc,
		paymentSvc: p.PaymentSvc,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	api.GET("/events", s.HandleListEvents)
	api.GET("/events/:id", s.HandleGetEvent)

	api.POST("/registrations", s.IntakeRateLimit(), s.HandleCreateRegistration)
	api.GET("/registrations/:id", s.HandleGetRegistration)
	api.POST("/registrations/:id/verify", s.VerifyRateLimit(), s.HandleVerifyRegistration)

	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)

	admin := api.Group("/admin", s.RequireOperator())
	admin.POST("/events", s.HandleCreateEvent)
	admin.POST("/events/:id/deactivate", s.HandleDeactivateEvent)
	admin.POST("/payments/:order_id/confirm", s.HandleConfirmOrder)
	admin.POST("/registrations/:id/refund", s.HandleRefundRegistration)
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("starting http server", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.log.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})
}
