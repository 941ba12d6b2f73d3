package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/clubpay/internal/authorization"
	"github.com/smallbiznis/clubpay/internal/config"
	"github.com/smallbiznis/clubpay/internal/observability"
	obsmiddleware "github.com/smallbiznis/clubpay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/clubpay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/clubpay/internal/observability/tracing"
	payoutdomain "github.com/smallbiznis/clubpay/internal/payout/domain"
	"github.com/smallbiznis/clubpay/internal/statement"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
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
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		PayoutAttributes: obsCfg.TracePayoutAttributes,
	}))
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

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	payoutSvc payoutdomain.Service
	authzSvc  authorization.Service
	renderer  statement.Renderer
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	PayoutSvc payoutdomain.Service
	AuthzSvc  authorization.Service
	Renderer  statement.Renderer
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("http.server"),
		payoutSvc: p.PayoutSvc,
		authzSvc:  p.AuthzSvc,
		renderer:  p.Renderer,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.ActorRequired())

	payouts := api.Group("/payouts")
	{
		payouts.POST("/generate-monthly",
			s.authorize(authorization.ObjectPayout, authorization.ActionPayoutGenerate),
			s.GenerateMonthlyPayouts)
		payouts.POST("/send-transfers",
			s.authorize(authorization.ObjectPayout, authorization.ActionPayoutSendTransfers),
			s.SendTransfers)
		payouts.GET("/club/:clubId",
			s.authorize(authorization.ObjectPayout, authorization.ActionPayoutView),
			s.ListClubPayouts)
		payouts.GET("/summary/:period",
			s.authorize(authorization.ObjectPayout, authorization.ActionPayoutView),
			s.GetPayoutSummary)
		payouts.GET("/summary/:period/export.xlsx",
			s.authorize(authorization.ObjectPayout, authorization.ActionPayoutExport),
			s.ExportPeriodPayouts)
		payouts.GET("/:id",
			s.authorize(authorization.ObjectPayout, authorization.ActionPayoutView),
			s.GetPayout)
		payouts.GET("/:id/statement.pdf",
			s.authorize(authorization.ObjectStatement, authorization.ActionStatementView),
			s.GetPayoutStatement)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
