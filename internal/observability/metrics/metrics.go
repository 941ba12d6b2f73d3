package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes payout instruments.
type Metrics struct {
	payoutsGenerated   metric.Int64Counter
	payoutsSkipped     metric.Int64Counter
	validationFailures metric.Int64Counter
	dataWarnings       metric.Int64Counter
	transfers          metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the payout metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "clubpay"
	}
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(name)

	payoutsGenerated, err := meter.Int64Counter("clubpay_payouts_generated_total")
	if err != nil {
		return nil, err
	}
	payoutsSkipped, err := meter.Int64Counter("clubpay_payouts_upsert_skipped_total")
	if err != nil {
		return nil, err
	}
	validationFailures, err := meter.Int64Counter("clubpay_payout_validation_failures_total")
	if err != nil {
		return nil, err
	}
	dataWarnings, err := meter.Int64Counter("clubpay_usage_data_warnings_total")
	if err != nil {
		return nil, err
	}
	transfers, err := meter.Int64Counter("clubpay_transfers_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		payoutsGenerated:   payoutsGenerated,
		payoutsSkipped:     payoutsSkipped,
		validationFailures: validationFailures,
		dataWarnings:       dataWarnings,
		transfers:          transfers,
	}, nil
}

// RecordPayoutGenerated counts persisted payout rows by upsert mode.
func (m *Metrics) RecordPayoutGenerated(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("mode", strings.TrimSpace(mode)))
	m.payoutsGenerated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPayoutSkipped counts rows left untouched by an upsert.
func (m *Metrics) RecordPayoutSkipped(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.payoutsSkipped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordValidationFailure increments advisory validation failures.
func (m *Metrics) RecordValidationFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.validationFailures.Add(ctx, 1)
}

// RecordDataWarning increments usage data quality warnings.
func (m *Metrics) RecordDataWarning(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.dataWarnings.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTransfer increments transfer outcomes (succeeded, failed, skipped, retry).
func (m *Metrics) RecordTransfer(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.transfers.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"mode":        {},
	"outcome":     {},
	"reason":      {},
	"job":         {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
