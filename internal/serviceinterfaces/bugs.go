package serviceinterfaces

import (
	"context"

	"bugtracker/internal/models"
)

// IssueExporter pushes a bug into an external issue tracker
type IssueExporter interface {
	ExportBug(ctx context.Context, bug *models.BugReport) (*models.ExternalIssue, error)
	IsEnabled() bool
}

// BugServiceInterface is the lifecycle and query surface used by the transports
type BugServiceInterface interface {
	SubmitReport(ctx context.Context, reporter, sessionID string, in models.NewBugReport) (*models.BugReport, error)
	GetReport(ctx context.Context, id string) (*models.BugReport, error)

	SetSeverity(ctx context.Context, actor, id string, severity models.Severity) (*models.BugReport, error)
	SetCategory(ctx context.Context, actor, id string, category models.Category) (*models.BugReport, error)
	SetStatus(ctx context.Context, actor, id string, status models.Status) (*models.BugReport, error)
	AssignBulk(ctx context.Context, ids []string, assignee string) (*models.BatchResult, error)
	UpdateProgressBulk(ctx context.Context, actor string, updates []models.ProgressUpdate) (*models.BatchResult, error)
	MarkFixed(ctx context.Context, actor, id, notes string) (*models.BugReport, error)
	Resolve(ctx context.Context, actor, id string) (*models.BugReport, error)
	SendBack(ctx context.Context, actor, id, reason string) (*models.BugReport, error)
	Dismiss(ctx context.Context, actor, id, reason string) (*models.BugReport, error)
	AIBulkUpdate(ctx context.Context, actor string, updates []models.BugUpdate) (*models.BatchResult, error)
	ExportToTracker(ctx context.Context, actor, id string) (*models.ExternalIssue, error)

	ListOpen(ctx context.Context, status models.Status, severity models.Severity, limit int) ([]models.BugReport, error)
	ListAssignable(ctx context.Context, limit int) ([]models.BugReport, error)
	MyOpenBugs(ctx context.Context, actor string) ([]models.BugReport, error)
	TestingQueue(ctx context.Context) ([]models.BugReport, error)
	TeamDashboard(ctx context.Context) (*models.TeamDashboard, error)
	AuditResolved(ctx context.Context, limit int) ([]models.AuditEntry, error)
	AIFeed(ctx context.Context, statuses []models.Status, severity models.Severity, limit int) ([]models.BugReport, error)

	Purge(ctx context.Context, status models.Status) (int64, error)
	Stats(ctx context.Context) (*models.BugStats, error)
	Ping(ctx context.Context) error
}
