package observability

import (
	"context"
	"errors"

	"bugtracker/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry holds the providers installed by SetupObservability
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	Logger         *Logger
}

// SetupObservability initializes tracing, metrics, and logging for a service.
// Disabled signals fall back to the OpenTelemetry no-op globals.
func SetupObservability(cfg *config.OpenTelemetryConfig, serviceName, logLevel string) (result0 *Telemetry, err error) {
	if serviceName != "" {
		cfg.ServiceName = serviceName
	}

	t := &Telemetry{Logger: NewLoggerWithLevel(cfg, ParseLevel(logLevel))}
	InitPropagation()

	if cfg.EnableTracing {
		tp, err := InitStandardTracing(cfg)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		t.TracerProvider = tp
		t.Logger.Info(context.Background(), "Tracing enabled", map[string]interface{}{"service_name": cfg.ServiceName, "endpoint": cfg.Endpoint})
	}
	InitGlobalTracer()

	if cfg.EnableMetrics {
		mp, err := InitMetrics(cfg)
		if err != nil {
			return nil, err
		}
		otel.SetMeterProvider(mp)
		t.MeterProvider = mp
	}

	return t, nil
}

// Shutdown flushes and stops every installed provider
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		errs = append(errs, t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		errs = append(errs, t.MeterProvider.Shutdown(ctx))
	}
	if t.Logger != nil {
		errs = append(errs, t.Logger.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
