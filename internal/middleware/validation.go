package middleware

import (
	"bytes"
	"io"
	"net/http"

	"bugtracker/internal/observability"
	contextutils "bugtracker/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// RequestValidationMiddleware checks the request body against schemaName before the
// handler runs and restores the body for binding
func RequestValidationMiddleware(loader *SchemaLoader, schemaName string, logger *observability.Logger) gin.HandlerFunc {
	if loader == nil {
		panic("schema loader cannot be nil")
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	return func(c *gin.Context) {
		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_validation",
			attribute.String("schema.name", schemaName),
		)
		defer span.End()

		body, err := c.GetRawData()
		if err != nil {
			HandleAppError(c, contextutils.WrapWithCode(err, contextutils.ErrorCodeInvalidInput, "failed to read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if len(bytes.TrimSpace(body)) == 0 {
			HandleAppError(c, contextutils.Detailf(contextutils.ErrMissingRequired, "request body must not be empty"))
			c.Abort()
			return
		}

		if err := loader.ValidateJSON(body, schemaName); err != nil {
			logger.Warn(ctx, "Request validation failed", map[string]interface{}{
				"method":      c.Request.Method,
				"path":        c.Request.URL.Path,
				"schema_name": schemaName,
				"error":       err.Error(),
			})
			span.SetAttributes(attribute.Bool("schema.valid", false))
			HandleAppError(c, err)
			c.Abort()
			return
		}

		span.SetAttributes(attribute.Bool("schema.valid", true))
		c.Next()
	}
}

// MaxBodySize caps how many request body bytes handlers may read
func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
