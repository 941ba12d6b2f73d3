package db

import (
	"context"
	"fmt"

	"github.com/smallbiznis/clubpay/internal/config"
	obslogger "github.com/smallbiznis/clubpay/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(FromAppConfig),
	fx.Provide(New),
)

// New opens the gorm connection with zap logging, tracing and pool metrics.
func New(lc fx.Lifecycle, cfg Config, appCfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	gormLogCfg := obslogger.DefaultGormLoggerConfig()
	if !appCfg.IsProduction() {
		gormLogCfg.Level = gormlogger.Info
	}
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(log, gormLogCfg),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		return nil, fmt.Errorf("register otelgorm: %w", err)
	}
	if err := conn.Use(gormprometheus.New(gormprometheus.Config{
		DBName:          cfg.Name,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return nil, fmt.Errorf("register gorm prometheus: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return sqlDB.Close()
			},
		})
	}

	return conn, nil
}
