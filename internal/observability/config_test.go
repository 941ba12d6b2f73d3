package observability

import (
	"testing"

	"github.com/smallbiznis/clubpay/internal/config"
	"github.com/stretchr/testify/assert"
)

func fakeEnv(values map[string]string) envSource {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadConfig(config.Config{AppVersion: "1.2.0", Environment: "production", OTLPEndpoint: "otel:4317"}, fakeEnv(nil))

	assert.Equal(t, "clubpay", cfg.ServiceName)
	assert.Equal(t, "payouts", cfg.ServiceNamespace)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, "otel:4317", cfg.OtelExporterEndpoint)
	assert.InDelta(t, 0.1, cfg.OtelSamplingRatio, 1e-9)
	assert.True(t, cfg.OtelEnabled)
	assert.True(t, cfg.TracePayoutAttributes)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg := loadConfig(config.Config{AppName: "clubpay-scheduler"}, fakeEnv(map[string]string{
		"OTEL_SERVICE_NAMESPACE":             "finance",
		"OTEL_EXPORTER_OTLP_PROTOCOL":        "grpc",
		"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL": "HTTP/protobuf",
		"OTEL_SAMPLING_RATIO":                "1",
		"OTEL_TRACE_PAYOUT_ATTRIBUTES":       "off",
		"LOG_LEVEL":                          " DEBUG ",
	}))

	assert.Equal(t, "clubpay-scheduler", cfg.ServiceName)
	assert.Equal(t, "finance", cfg.ServiceNamespace)
	assert.Equal(t, "http/protobuf", cfg.OtelExporterProtocol)
	assert.InDelta(t, 1.0, cfg.OtelSamplingRatio, 1e-9)
	assert.False(t, cfg.TracePayoutAttributes)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigRejectsOutOfRangeRatio(t *testing.T) {
	cfg := loadConfig(config.Config{}, fakeEnv(map[string]string{"OTEL_SAMPLING_RATIO": "7"}))
	assert.InDelta(t, 0.1, cfg.OtelSamplingRatio, 1e-9)

	cfg = loadConfig(config.Config{}, fakeEnv(map[string]string{"OTEL_SAMPLING_RATIO": "abc"}))
	assert.InDelta(t, 0.1, cfg.OtelSamplingRatio, 1e-9)
}
