package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pawprintlabs/pawprint/internal/checkout"
	checkoutdomain "github.com/pawprintlabs/pawprint/internal/checkout/domain"
	"github.com/pawprintlabs/pawprint/internal/config"
	"github.com/pawprintlabs/pawprint/internal/fulfillment"
	"github.com/pawprintlabs/pawprint/internal/migration"
	"github.com/pawprintlabs/pawprint/internal/notification"
	"github.com/pawprintlabs/pawprint/internal/observability"
	obsmiddleware "github.com/pawprintlabs/pawprint/internal/observability/logger"
	obsmetrics "github.com/pawprintlabs/pawprint/internal/observability/metrics"
	obstracing "github.com/pawprintlabs/pawprint/internal/observability/tracing"
	"github.com/pawprintlabs/pawprint/internal/order"
	orderdomain "github.com/pawprintlabs/pawprint/internal/order/domain"
	"github.com/pawprintlabs/pawprint/internal/providers"
	"github.com/pawprintlabs/pawprint/internal/ratelimit"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	migration.Module,
	fx.Provide(registerGin),
	providers.Module,
	notification.Module,
	fulfillment.Module,
	order.Module,
	checkout.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
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

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	orderSvc      orderdomain.Service
	checkoutSvc   checkoutdomain.Service
	statusLimiter *ratelimit.StatusPollLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	OrderSvc      orderdomain.Service
	CheckoutSvc   checkoutdomain.Service
	StatusLimiter *ratelimit.StatusPollLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		orderSvc:      p.OrderSvc,
		checkoutSvc:   p.CheckoutSvc,
		statusLimiter: p.StatusLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/checkout", s.CreateCheckout)
	api.POST("/checkout/verify", s.VerifyCheckout)
	api.POST("/redeem", s.Redeem)
	api.GET("/orders/:token/status", s.StatusPollRateLimit(), s.OrderStatus)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/orders/failed", s.ListFailedOrders)
	admin.POST("/orders/:token/requeue", s.RequeueOrder)
}
