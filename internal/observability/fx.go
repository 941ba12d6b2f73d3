package observability

import (
	"github.com/smallbiznis/clubpay/internal/observability/logger"
	"github.com/smallbiznis/clubpay/internal/observability/metrics"
	"github.com/smallbiznis/clubpay/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module wires logging, tracing and the payout instruments for every clubpay process.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.loggerConfig,
		Config.tracingConfig,
		Config.metricsConfig,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.SchedulerWithConfig,
	),
	// The tracer provider must exist before any payout span is opened.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func (c Config) loggerConfig() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		FilePath:            c.LogFile,
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) tracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceNamespace: c.ServiceNamespace,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) metricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
