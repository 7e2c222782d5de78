package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "bugtracker"

var globalTracer trace.Tracer

// InitGlobalTracer binds the package tracer to the current global TracerProvider.
func InitGlobalTracer() {
	globalTracer = otel.Tracer(tracerName)
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		globalTracer = otel.Tracer(tracerName)
	}
	return globalTracer
}

// TraceFunction starts a span named "<service>.<function>".
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return GetGlobalTracer().Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// FinishSpan ends a span and records any error pointed to by errPtr.
// Use with a named error return: `defer observability.FinishSpan(span, &err)`
func FinishSpan(span trace.Span, errPtr *error) {
	if span == nil {
		return
	}
	if errPtr != nil && *errPtr != nil {
		span.RecordError(*errPtr, trace.WithStackTrace(true))
		span.SetStatus(codes.Error, (*errPtr).Error())
	}
	span.End()
}

// TraceBugFunction starts a new span for a bug service function.
func TraceBugFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "bug", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// TraceIntegrationFunction starts a new span for an outbound integration (email, Linear, storage).
func TraceIntegrationFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "integration", functionName, attributes...)
}

// AttributeBugID returns a tracing attribute for a bug id.
func AttributeBugID(id string) attribute.KeyValue {
	return attribute.String("bug.id", id)
}

// AttributeActor returns a tracing attribute for the calling actor.
func AttributeActor(actor string) attribute.KeyValue {
	return attribute.String("actor", actor)
}

// AttributeStatus returns a tracing attribute for a bug status.
func AttributeStatus(status string) attribute.KeyValue {
	return attribute.String("bug.status", status)
}

// AttributeSeverity returns a tracing attribute for a bug severity.
func AttributeSeverity(severity string) attribute.KeyValue {
	return attribute.String("bug.severity", severity)
}

// AttributeLimit returns a tracing attribute for a limit value.
func AttributeLimit(limit int) attribute.KeyValue {
	return attribute.Int("limit", limit)
}

// AttributeBatchSize returns a tracing attribute for the item count of a bulk call.
func AttributeBatchSize(n int) attribute.KeyValue {
	return attribute.Int("batch.size", n)
}
