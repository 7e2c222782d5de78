package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	contextutils "bugtracker/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordedRouter(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	router := gin.New()
	router.Use(otelginMiddlewareWithProvider(tp), GinErrorAnnotator())
	return router, recorder
}

func TestGinErrorAnnotator_SuccessLeavesSpanUnset(t *testing.T) {
	router, recorder := newRecordedRouter(t)
	router.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestGinErrorAnnotator_RecordsAppError(t *testing.T) {
	router, recorder := newRecordedRouter(t)
	router.GET("/v1/bugs/:id", func(c *gin.Context) {
		_ = c.Error(contextutils.ErrRecordNotFound)
		c.JSON(http.StatusNotFound, gin.H{"error": "missing"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/bugs/abc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "RECORD_NOT_FOUND", attrs["error.code"].AsString())
	assert.Equal(t, "info", attrs["error.severity"].AsString())
	assert.Equal(t, "/v1/bugs/:id", attrs["http.path"].AsString())
}

func TestDetermineErrorSeverity(t *testing.T) {
	assert.Equal(t, "error", determineErrorSeverity(500, nil))
	assert.Equal(t, "warn", determineErrorSeverity(400, nil))
	assert.Equal(t, "warn", determineErrorSeverity(409, []*gin.Error{{Err: contextutils.ErrInvalidTransition}}))
}
