package observability

import (
	"errors"

	contextutils "bugtracker/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware creates OpenTelemetry middleware for Gin HTTP requests
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// GinErrorAnnotator marks the request span as failed for 4xx/5xx responses and
// copies AppError code and severity onto it. Install after GinMiddleware.
func GinErrorAnnotator() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		statusCode := c.Writer.Status()
		if statusCode < 400 {
			return
		}
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		severity := determineErrorSeverity(statusCode, c.Errors)
		errorMsg := "client error"
		if statusCode >= 500 {
			errorMsg = "server error"
		}

		attrs := []attribute.KeyValue{
			attribute.Int("http.status_code", statusCode),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.path", c.FullPath()),
			attribute.String("error.handler", c.HandlerName()),
			attribute.String("actor", contextutils.GetActorFromContext(c.Request.Context())),
		}
		for _, ginErr := range c.Errors {
			if appErr, ok := ginErr.Err.(*contextutils.AppError); ok {
				errorMsg = appErr.Message
				attrs = append(attrs,
					attribute.String("error.code", string(appErr.Code)),
					attribute.Bool("error.retryable", contextutils.IsRetryable(appErr)),
				)
				break
			}
			errorMsg = ginErr.Error()
		}
		attrs = append(attrs, attribute.String("error.severity", severity))

		span.RecordError(errors.New(errorMsg))
		span.SetStatus(codes.Error, errorMsg)
		span.SetAttributes(attrs...)
	}
}

// determineErrorSeverity determines the severity level based on status code and error types
func determineErrorSeverity(statusCode int, errs []*gin.Error) string {
	for _, err := range errs {
		if appErr, ok := err.Err.(*contextutils.AppError); ok {
			return string(appErr.Severity)
		}
	}

	switch {
	case statusCode >= 500:
		return string(contextutils.SeverityError)
	default:
		return string(contextutils.SeverityWarn)
	}
}

func otelginMiddlewareWithProvider(tp trace.TracerProvider) gin.HandlerFunc {
	return otelgin.Middleware(tracerName, otelgin.WithTracerProvider(tp))
}
