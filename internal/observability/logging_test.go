package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogWithContextAddsTraceInfo(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	tracer := tp.Tracer("test-tracer")

	core, observedLogs := observer.New(zap.InfoLevel)
	logger := NewLoggerFromCore(core)

	ctx, span := tracer.Start(context.Background(), "test-span")
	defer span.End()

	fields := map[string]interface{}{"bug_id": "b1"}
	logger.Info(ctx, "bug assigned", fields)

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	got := entries[0].ContextMap()
	assert.Equal(t, "b1", got["bug_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), got["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), got["span_id"])

	// the caller's map is not mutated
	assert.NotContains(t, fields, "trace_id")
}

func TestLogWithContextNoSpan(t *testing.T) {
	core, observedLogs := observer.New(zap.InfoLevel)
	logger := NewLoggerFromCore(core)

	logger.Info(context.Background(), "no span", nil)
	logger.Debug(context.Background(), "filtered out")

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].ContextMap(), "trace_id")
}

func TestLoggerError_AddsErrorField(t *testing.T) {
	core, observedLogs := observer.New(zap.InfoLevel)
	logger := NewLoggerFromCore(core)

	logger.Error(context.Background(), "store failed", assert.AnError, map[string]interface{}{"op": "assign"})

	entries := observedLogs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, assert.AnError.Error(), entries[0].ContextMap()["error"])
	assert.Equal(t, "assign", entries[0].ContextMap()["op"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}
