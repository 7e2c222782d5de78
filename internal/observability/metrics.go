package observability

import (
	"context"

	"bugtracker/internal/config"
	contextutils "bugtracker/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes an OTLP MeterProvider
func InitMetrics(cfg *config.OpenTelemetryConfig) (result0 *metric.MeterProvider, err error) {
	ctx := context.Background()

	res, err := newResource(cfg)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otel resource: %w", err)
	}

	var exporter metric.Exporter
	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp grpc metric exporter: %w", err)
		}
		exporter = exp
	case "http":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithHeaders(cfg.Headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to create otlp http metric exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, contextutils.Detailf(contextutils.ErrInvalidInput, "unsupported otel protocol: %s", cfg.Protocol)
	}

	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(res),
	), nil
}

// BugMetrics holds the lifecycle counters
type BugMetrics struct {
	created     otelmetric.Int64Counter
	transitions otelmetric.Int64Counter
	batchItems  otelmetric.Int64Counter
}

// NewBugMetrics registers the lifecycle counters on the global MeterProvider.
// With no provider installed the counters are no-ops.
func NewBugMetrics() *BugMetrics {
	return NewBugMetricsWithMeter(otel.Meter("bugtracker"))
}

// NewBugMetricsWithMeter registers the lifecycle counters on meter
func NewBugMetricsWithMeter(meter otelmetric.Meter) *BugMetrics {
	m := &BugMetrics{}
	// instrument creation only fails on invalid names; the returned no-op instrument is still usable
	m.created, _ = meter.Int64Counter("bugs.created",
		otelmetric.WithDescription("Bug reports submitted"))
	m.transitions, _ = meter.Int64Counter("bugs.transitions",
		otelmetric.WithDescription("Bug status changes"))
	m.batchItems, _ = meter.Int64Counter("bugs.batch_items",
		otelmetric.WithDescription("Items processed by bulk operations"))
	return m
}

// RecordCreated counts one submitted report
func (m *BugMetrics) RecordCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.created.Add(ctx, 1)
}

// RecordTransition counts one status change
func (m *BugMetrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordBatchItem counts one bulk item; outcome is "applied", "unchanged" or "failed"
func (m *BugMetrics) RecordBatchItem(ctx context.Context, op, outcome string) {
	if m == nil {
		return
	}
	m.batchItems.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}
