package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/clubpay/internal/config"
)

const (
	defaultServiceName   = "clubpay"
	defaultNamespace     = "payouts"
	defaultSamplingRatio = 0.1
)

// Config holds logging and OpenTelemetry settings for the payout processes.
type Config struct {
	ServiceName      string
	ServiceNamespace string
	Environment      string
	Version          string

	LogLevel  string
	LogFormat string
	LogFile   string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	// TracePayoutAttributes copies run_id, payout_period, club and payout ids onto HTTP spans.
	TracePayoutAttributes bool
}

// LoadConfig derives observability settings from the app config and OTEL_* overrides.
func LoadConfig(cfg config.Config) Config {
	return loadConfig(cfg, os.LookupEnv)
}

type envSource func(key string) (string, bool)

func (e envSource) str(key, def string) string {
	if value, ok := e(key); ok {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return strings.TrimSpace(def)
}

func (e envSource) lower(key, def string) string {
	return strings.ToLower(e.str(key, def))
}

func (e envSource) boolean(key string, def bool) bool {
	switch e.lower(key, "") {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func (e envSource) ratio(key string, def float64) float64 {
	parsed, err := strconv.ParseFloat(e.str(key, ""), 64)
	if err != nil || parsed <= 0 || parsed > 1 {
		return def
	}
	return parsed
}

func loadConfig(cfg config.Config, lookup envSource) Config {
	protocol := lookup.lower("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	protocol = lookup.lower("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", protocol)

	return Config{
		ServiceName:           lookup.str("OTEL_SERVICE_NAME", firstNonEmpty(cfg.AppName, defaultServiceName)),
		ServiceNamespace:      lookup.str("OTEL_SERVICE_NAMESPACE", defaultNamespace),
		Environment:           lookup.str("DEPLOYMENT_ENV", cfg.Environment),
		Version:               lookup.str("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:              lookup.lower("LOG_LEVEL", "info"),
		LogFormat:             lookup.lower("LOG_FORMAT", "json"),
		LogFile:               lookup.str("LOG_FILE", ""),
		OtelEnabled:           lookup.boolean("OTEL_ENABLED", true),
		OtelExporterEndpoint:  lookup.str("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol:  protocol,
		OtelSamplingRatio:     lookup.ratio("OTEL_SAMPLING_RATIO", defaultSamplingRatio),
		TracePayoutAttributes: lookup.boolean("OTEL_TRACE_PAYOUT_ATTRIBUTES", true),
	}
}

// Debug enables verbose logging for debug level or local environments.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
