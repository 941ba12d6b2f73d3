package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/clubpay/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures the zap logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	Debug       bool

	// FilePath enables a rotated JSON log file next to stdout.
	FilePath       string
	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int

	SamplingInitial     int
	SamplingThereafter  int
	SamplingWindow      time.Duration
	IncludeCaller       bool
	IncludeStackOnError bool
}

// New builds a structured zap.Logger and registers lifecycle hooks.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	levelText := strings.TrimSpace(cfg.Level)
	if levelText == "" {
		levelText = "info"
	}
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelText, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if normalizeFormat(cfg.Format) == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	var rotator *lumberjack.Logger
	if path := strings.TrimSpace(cfg.FilePath); path != "" {
		rotator = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    positiveOr(cfg.FileMaxSizeMB, 100),
			MaxBackups: positiveOr(cfg.FileMaxBackups, 7),
			MaxAge:     positiveOr(cfg.FileMaxAgeDays, 30),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(rotator), level))
	}

	initial := positiveOr(cfg.SamplingInitial, 100)
	thereafter := positiveOr(cfg.SamplingThereafter, 100)
	window := cfg.SamplingWindow
	if window == 0 {
		window = time.Second
	}
	core := zapcore.NewSamplerWithOptions(zapcore.NewTee(cores...), window, initial, thereafter)

	options := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if cfg.IncludeCaller {
		options = append(options, zap.AddCaller())
	}
	if cfg.IncludeStackOnError {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "clubpay"
	}

	logger := zap.New(core, options...).With(
		zap.String("service", serviceName),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	)
	zap.ReplaceGlobals(logger)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				_ = logger.Sync()
				if rotator != nil {
					return rotator.Close()
				}
				return nil
			},
		})
	}

	return logger, nil
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "console" {
		return "console"
	}
	return "json"
}

func positiveOr(value, def int) int {
	if value <= 0 {
		return def
	}
	return value
}

// FromContext returns the global logger enriched with request-scoped fields.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext enriches the provided logger with correlation fields.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.L()
	}
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 6)
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if runID := obscontext.RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	if period := obscontext.PayoutPeriodFromContext(ctx); period != "" {
		fields = append(fields, zap.String("period", period))
	}
	if actorType, actorID := obscontext.ActorFromContext(ctx); actorType != "" {
		fields = append(fields,
			zap.String("actor_type", actorType),
			zap.String("actor_id", actorID),
		)
	}
	fields = append(fields, traceFieldsFromContext(ctx)...)

	return base.With(fields...)
}

func traceFieldsFromContext(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
