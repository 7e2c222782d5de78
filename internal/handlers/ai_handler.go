package handlers

import (
	"net/http"

	"bugtracker/internal/middleware"
	"bugtracker/internal/models"
	"bugtracker/internal/observability"
	"bugtracker/internal/serviceinterfaces"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AIHandler serves the machine-readable feed and bulk updates for automated callers
type AIHandler struct {
	bugService serviceinterfaces.BugServiceInterface
	logger     *observability.Logger
}

// NewAIHandler creates an AIHandler
func NewAIHandler(bugService serviceinterfaces.BugServiceInterface, logger *observability.Logger) *AIHandler {
	if bugService == nil {
		panic("bug service cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &AIHandler{bugService: bugService, logger: logger}
}

// AIBulkUpdateRequest is the body of POST /v1/ai/bugs/updates
type AIBulkUpdateRequest struct {
	Updates []models.BugUpdate `json:"updates" binding:"required,min=1"`
}

// AIFeedResponse carries full records and the filter that produced them
type AIFeedResponse struct {
	Bugs     []models.BugReport `json:"bugs"`
	Count    int                `json:"count"`
	Statuses []models.Status    `json:"statuses"`
	Severity *string            `json:"severity"`
}

// Feed handles GET /v1/ai/bugs?status=New,Triaged&severity=High&limit=20
func (h *AIHandler) Feed(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "ai_feed")
	defer observability.FinishSpan(span, nil)

	filters := ParseFilters(c, "status", "severity")
	statuses, err := models.ParseStatusSet(filters["status"])
	if err != nil {
		HandleAppError(c, err)
		return
	}
	severity, err := models.ParseSeverityFilter(filters["severity"])
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if len(statuses) == 0 {
		statuses = []models.Status{models.StatusNew, models.StatusTriaged}
	}

	bugs, err := h.bugService.AIFeed(ctx, statuses, severity, ParseLimit(c))
	if err != nil {
		HandleAppError(c, err)
		return
	}

	resp := AIFeedResponse{Bugs: bugs, Count: len(bugs), Statuses: statuses}
	if severity != models.SeverityUnset {
		s := string(severity)
		resp.Severity = &s
	}
	c.JSON(http.StatusOK, resp)
}

// BulkUpdate handles POST /v1/ai/bugs/updates. The body has already passed the
// AIBulkUpdateRequest schema.
func (h *AIHandler) BulkUpdate(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "ai_bulk_update")
	defer observability.FinishSpan(span, nil)

	var req AIBulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	span.SetAttributes(attribute.Int("batch.size", len(req.Updates)))

	result, err := h.bugService.AIBulkUpdate(ctx, middleware.Actor(c), req.Updates)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBatchResponse(result))
}
