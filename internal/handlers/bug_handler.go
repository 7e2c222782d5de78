package handlers

import (
	"net/http"
	"strings"

	"bugtracker/internal/config"
	"bugtracker/internal/middleware"
	"bugtracker/internal/models"
	"bugtracker/internal/observability"
	"bugtracker/internal/serviceinterfaces"
	contextutils "bugtracker/internal/utils"

	"github.com/gin-gonic/gin"
)

// Views for GET /v1/bugs/mine
const (
	ViewCompact = "compact"
	ViewFull    = "full"
)

// BugHandler serves the reporter, triage, developer and tester endpoints
type BugHandler struct {
	bugService serviceinterfaces.BugServiceInterface
	config     *config.Config
	logger     *observability.Logger
}

// NewBugHandler creates a BugHandler
func NewBugHandler(bugService serviceinterfaces.BugServiceInterface, cfg *config.Config, logger *observability.Logger) *BugHandler {
	if bugService == nil {
		panic("bug service cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &BugHandler{
		bugService: bugService,
		config:     cfg,
		logger:     logger,
	}
}

// SubmitBugRequest is the body of POST /v1/bugs
type SubmitBugRequest struct {
	Title             string `json:"title" binding:"required"`
	Description       string `json:"description" binding:"required"`
	ReproductionSteps string `json:"reproduction_steps"`
	LogContext        string `json:"log_context"`
	ScreenshotData    string `json:"screenshot_data"`
	ScreenshotName    string `json:"screenshot_name"`
}

// SubmitBugResponse acknowledges a new report
type SubmitBugResponse struct {
	ID      string            `json:"bug_id"`
	Message string            `json:"message"`
	Summary models.BugSummary `json:"summary"`
}

// SeverityRequest is the body of PUT /v1/bugs/:id/severity
type SeverityRequest struct {
	Severity string `json:"severity" binding:"required,severity"`
}

// CategoryRequest is the body of PUT /v1/bugs/:id/category
type CategoryRequest struct {
	Category string `json:"category" binding:"required,category"`
}

// StatusRequest is the body of PUT /v1/bugs/:id/status
type StatusRequest struct {
	Status string `json:"status" binding:"required,status"`
}

// AssignRequest is the body of POST /v1/bugs/assign. Actor defaults to the caller.
type AssignRequest struct {
	IDs   []string `json:"ids" binding:"required,min=1"`
	Actor string   `json:"actor"`
}

// ProgressRequest is the body of POST /v1/bugs/progress
type ProgressRequest struct {
	Updates []models.ProgressUpdate `json:"updates" binding:"required,min=1"`
}

// FixRequest is the body of POST /v1/bugs/:id/fix
type FixRequest struct {
	Notes string `json:"notes"`
}

// ReasonRequest is the body of send-back and dismiss
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// BatchResponse is a bulk result plus the number of bugs changed
type BatchResponse struct {
	*models.BatchResult
	Count int `json:"count"`
}

func newBatchResponse(result *models.BatchResult) BatchResponse {
	return BatchResponse{BatchResult: result, Count: result.Count()}
}

// ListResponse wraps a list view
type ListResponse struct {
	Bugs  interface{} `json:"bugs"`
	Count int         `json:"count"`
}

// bindOptionalJSON binds the body when one was sent
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}

// SubmitReport handles POST /v1/bugs
func (h *BugHandler) SubmitReport(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_report")
	defer observability.FinishSpan(span, nil)

	var req SubmitBugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}

	bug, err := h.bugService.SubmitReport(ctx, middleware.Actor(c), middleware.Session(c), models.NewBugReport{
		Title:             req.Title,
		Description:       req.Description,
		ReproductionSteps: req.ReproductionSteps,
		LogContext:        req.LogContext,
		ScreenshotData:    req.ScreenshotData,
		ScreenshotName:    req.ScreenshotName,
	})
	if err != nil {
		h.logger.Error(ctx, "submit report failed", err, nil)
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SubmitBugResponse{
		ID:      bug.ID,
		Message: "Bug report " + bug.ID + " submitted",
		Summary: bug.Summary(),
	})
}

// ListOpen handles GET /v1/bugs
func (h *BugHandler) ListOpen(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_open")
	defer observability.FinishSpan(span, nil)

	status, severity, err := parseListFilters(c)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	bugs, err := h.bugService.ListOpen(ctx, status, severity, ParseLimit(c))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Bugs: models.Summaries(bugs), Count: len(bugs)})
}

// ListAssignable handles GET /v1/bugs/assignable
func (h *BugHandler) ListAssignable(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_assignable")
	defer observability.FinishSpan(span, nil)

	bugs, err := h.bugService.ListAssignable(ctx, ParseLimit(c))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Bugs: models.Summaries(bugs), Count: len(bugs)})
}

// MyOpenBugs handles GET /v1/bugs/mine?view=compact|full
func (h *BugHandler) MyOpenBugs(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "my_open_bugs")
	defer observability.FinishSpan(span, nil)

	view := strings.ToLower(strings.TrimSpace(c.DefaultQuery("view", ViewCompact)))
	if view != ViewCompact && view != ViewFull {
		HandleAppError(c, contextutils.Detailf(contextutils.ErrInvalidInput, "view must be %s or %s", ViewCompact, ViewFull))
		return
	}

	bugs, err := h.bugService.MyOpenBugs(ctx, middleware.Actor(c))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	if view == ViewFull {
		c.JSON(http.StatusOK, ListResponse{Bugs: bugs, Count: len(bugs)})
		return
	}
	c.JSON(http.StatusOK, ListResponse{Bugs: models.Summaries(bugs), Count: len(bugs)})
}

// TestingQueue handles GET /v1/bugs/testing
func (h *BugHandler) TestingQueue(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "testing_queue")
	defer observability.FinishSpan(span, nil)

	bugs, err := h.bugService.TestingQueue(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Bugs: models.Summaries(bugs), Count: len(bugs)})
}

// TeamDashboard handles GET /v1/bugs/dashboard
func (h *BugHandler) TeamDashboard(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "team_dashboard")
	defer observability.FinishSpan(span, nil)

	dash, err := h.bugService.TeamDashboard(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// AuditResolved handles GET /v1/bugs/audit
func (h *BugHandler) AuditResolved(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "audit_resolved")
	defer observability.FinishSpan(span, nil)

	entries, err := h.bugService.AuditResolved(ctx, ParseLimit(c))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Bugs: entries, Count: len(entries)})
}

// GetReport handles GET /v1/bugs/:id
func (h *BugHandler) GetReport(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_report",
		observability.AttributeBugID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	bug, err := h.bugService.GetReport(ctx, c.Param("id"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, bug)
}

// SetSeverity handles PUT /v1/bugs/:id/severity
func (h *BugHandler) SetSeverity(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "set_severity",
		observability.AttributeBugID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	var req SeverityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	severity, err := models.ParseSeverity(req.Severity)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	h.respondBug(c, "set severity", func() (*models.BugReport, error) {
		return h.bugService.SetSeverity(ctx, middleware.Actor(c), c.Param("id"), severity)
	})
}

// SetCategory handles PUT /v1/bugs/:id/category
func (h *BugHandler) SetCategory(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "set_category",
		observability.AttributeBugID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	h.respondBug(c, "set category", func() (*models.BugReport, error) {
		return h.bugService.SetCategory(ctx, middleware.Actor(c), c.Param("id"), category)
	})
}

// SetStatus handles PUT /v1/bugs/:id/status
func (h *BugHandler) SetStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "set_status",
		observability.AttributeBugID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	h.respondBug(c, "set status", func() (*models.BugReport, error) {
		return h.bugService.SetStatus(ctx, middleware.Actor(c), c.Param("id"), status)
	})
}

// AssignBulk handles POST /v1/bugs/assign
func (h *BugHandler) AssignBulk(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "assign_bulk")
	defer observability.FinishSpan(span, nil)

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	assignee := strings.TrimSpace(req.Actor)
	if assignee == "" {
		assignee = middleware.Actor(c)
	}

	result, err := h.bugService.AssignBulk(ctx, req.IDs, assignee)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBatchResponse(result))
}

// UpdateProgress handles POST /v1/bugs/progress
func (h *BugHandler) UpdateProgress(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_progress")
	defer observability.FinishSpan(span, nil)

	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}

	result, err := h.bugService.UpdateProgressBulk(ctx, middleware.Actor(c), req.Updates)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBatchResponse(result))
}

// MarkFixed handles POST /v1/bugs/:id/fix
func (h *BugHandler) MarkFixed(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "mark_fixed",
		observability.AttributeBugID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	var req FixRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		HandleBindError(c, err)
		return
	}
	h.respondBug(c, "mark fixed", func() (*models.BugReport, error) {
		return h.bugService.MarkFixed(ctx, middleware.Actor(c), c.Param("id"), req.Notes)
	})
}

// Resolve handles POST /v1/bugs/:id/resolve
func (h *BugHandler) Resolve(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "resolve",
		observability.AttributeBugID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	h.respondBug(c, "resolve", func() (*models.BugReport, error) {
		return h.bugService.Resolve(ctx, middleware.Actor(c), c.Param("id"))
	})
}

// SendBack handles POST /v1/bugs/:id/send-back
func (h *BugHandler) SendBack(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "send_back",
		observability.AttributeBugID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	var req ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		HandleBindError(c, err)
		return
	}
	h.respondBug(c, "send back", func() (*models.BugReport, error) {
		return h.bugService.SendBack(ctx, middleware.Actor(c), c.Param("id"), req.Reason)
	})
}

// Dismiss handles POST /v1/bugs/:id/dismiss
func (h *BugHandler) Dismiss(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "dismiss",
		observability.AttributeBugID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	var req ReasonRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		HandleBindError(c, err)
		return
	}
	h.respondBug(c, "dismiss", func() (*models.BugReport, error) {
		return h.bugService.Dismiss(ctx, middleware.Actor(c), c.Param("id"), req.Reason)
	})
}

// ExportLinear handles POST /v1/bugs/:id/linear
func (h *BugHandler) ExportLinear(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "export_linear",
		observability.AttributeBugID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	issue, err := h.bugService.ExportToTracker(ctx, middleware.Actor(c), c.Param("id"))
	if err != nil {
		if !contextutils.IsError(err, contextutils.ErrIntegrationDisabled) {
			h.logger.Error(ctx, "export to Linear failed", err, map[string]interface{}{"bug_id": c.Param("id")})
		}
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

// respondBug runs a single-record mutation and writes the updated bug
func (h *BugHandler) respondBug(c *gin.Context, op string, fn func() (*models.BugReport, error)) {
	bug, err := fn()
	if err != nil {
		if contextutils.GetErrorSeverity(err) == contextutils.SeverityError || contextutils.GetErrorSeverity(err) == contextutils.SeverityFatal {
			h.logger.Error(c.Request.Context(), op+" failed", err, map[string]interface{}{"bug_id": c.Param("id")})
		}
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, bug)
}
