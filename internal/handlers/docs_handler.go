package handlers

import (
	"net/http"

	"bugtracker/internal/docs"
	"bugtracker/internal/observability"

	"github.com/gin-gonic/gin"
)

// ListDocs handles GET /v1/docs
func ListDocs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"guides": docs.Names()})
}

// ReadDoc handles GET /v1/docs/:name?format=markdown|html
func ReadDoc(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "read_doc")
	defer observability.FinishSpan(span, nil)

	content, contentType, err := docs.Render(c.Param("name"), c.Query("format"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, []byte(content))
}
