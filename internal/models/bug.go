package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// BugReport is one row of the bug store
type BugReport struct {
	ID                string         `json:"bug_id" db:"bug_id"`
	Reporter          string         `json:"reporter" db:"reporter"`
	SessionID         string         `json:"session_id" db:"session_id"`
	Title             string         `json:"title" db:"title"`
	Description       string         `json:"description" db:"description"`
	ReproductionSteps sql.NullString `json:"reproduction_steps" db:"reproduction_steps"`
	LogContext        sql.NullString `json:"log_context" db:"log_context"`
	Severity          Severity       `json:"severity" db:"severity"`
	Category          Category       `json:"category" db:"category"`
	Status            Status         `json:"status" db:"status"`
	AssignedTo        sql.NullString `json:"assigned_to" db:"assigned_to"`
	AssignedAt        sql.NullTime   `json:"assigned_at" db:"assigned_at"`
	ProgressNotes     string         `json:"progress_notes" db:"progress_notes"`
	ScreenshotPath    sql.NullString `json:"screenshot_path" db:"screenshot_path"`
	ScreenshotName    sql.NullString `json:"screenshot_name" db:"screenshot_name"`
	SystemInfo        string         `json:"system_info" db:"system_info"`
	ReportedAt        time.Time      `json:"reported_at" db:"reported_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// IsAssignedTo reports whether actor currently owns the bug
func (b *BugReport) IsAssignedTo(actor string) bool {
	return b.AssignedTo.Valid && b.AssignedTo.String == actor
}

// MarshalJSON renders unset optional fields as null
func (b BugReport) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID                string     `json:"bug_id"`
		Reporter          string     `json:"reporter"`
		SessionID         string     `json:"session_id"`
		Title             string     `json:"title"`
		Description       string     `json:"description"`
		ReproductionSteps *string    `json:"reproduction_steps"`
		LogContext        *string    `json:"log_context"`
		Severity          *string    `json:"severity"`
		Category          *string    `json:"category"`
		Status            Status     `json:"status"`
		AssignedTo        *string    `json:"assigned_to"`
		AssignedAt        *time.Time `json:"assigned_at"`
		ProgressNotes     string     `json:"progress_notes"`
		ScreenshotPath    *string    `json:"screenshot_path"`
		ScreenshotName    *string    `json:"screenshot_name"`
		SystemInfo        string     `json:"system_info"`
		ReportedAt        time.Time  `json:"reported_at"`
		UpdatedAt         time.Time  `json:"updated_at"`
	}{
		ID:                b.ID,
		Reporter:          b.Reporter,
		SessionID:         b.SessionID,
		Title:             b.Title,
		Description:       b.Description,
		ReproductionSteps: nullStringToPointer(b.ReproductionSteps),
		LogContext:        nullStringToPointer(b.LogContext),
		Severity:          stringToPointer(string(b.Severity)),
		Category:          stringToPointer(string(b.Category)),
		Status:            b.Status,
		AssignedTo:        nullStringToPointer(b.AssignedTo),
		AssignedAt:        nullTimeToPointer(b.AssignedAt),
		ProgressNotes:     b.ProgressNotes,
		ScreenshotPath:    nullStringToPointer(b.ScreenshotPath),
		ScreenshotName:    nullStringToPointer(b.ScreenshotName),
		SystemInfo:        b.SystemInfo,
		ReportedAt:        b.ReportedAt,
		UpdatedAt:         b.UpdatedAt,
	})
}

// BugSummary is the compact projection used by list views
type BugSummary struct {
	ID         string     `json:"bug_id"`
	Title      string     `json:"title"`
	Severity   *string    `json:"severity"`
	Category   *string    `json:"category"`
	Status     Status     `json:"status"`
	AssignedTo *string    `json:"assigned_to"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	ReportedAt time.Time  `json:"reported_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Summary projects the report onto its compact form
func (b *BugReport) Summary() BugSummary {
	return BugSummary{
		ID:         b.ID,
		Title:      b.Title,
		Severity:   stringToPointer(string(b.Severity)),
		Category:   stringToPointer(string(b.Category)),
		Status:     b.Status,
		AssignedTo: nullStringToPointer(b.AssignedTo),
		AssignedAt: nullTimeToPointer(b.AssignedAt),
		ReportedAt: b.ReportedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

// Summaries projects a slice of reports
func Summaries(bugs []BugReport) []BugSummary {
	out := make([]BugSummary, 0, len(bugs))
	for i := range bugs {
		out = append(out, bugs[i].Summary())
	}
	return out
}

// NewBugReport carries the fields a reporter supplies
type NewBugReport struct {
	Title             string
	Description       string
	ReproductionSteps string
	LogContext        string
	// ScreenshotData is base64, optionally as a data URL
	ScreenshotData string
	ScreenshotName string
}

// AuditEntry is one resolved bug in the audit view
type AuditEntry struct {
	ID         string    `json:"bug_id"`
	Title      string    `json:"title"`
	Severity   *string   `json:"severity"`
	Category   *string   `json:"category"`
	AssignedTo *string   `json:"assigned_to"`
	ReportedAt time.Time `json:"reported_at"`
	ResolvedAt time.Time `json:"resolved_at"`
	Notes      string    `json:"notes"`
}

// AssigneeLoad is one row of the team dashboard
type AssigneeLoad struct {
	Assignee   string         `json:"assignee"`
	Total      int            `json:"total_bugs"`
	ByStatus   map[Status]int `json:"by_status"`
	BySeverity map[string]int `json:"by_severity"`
	Bugs       []BugSummary   `json:"bugs"`
}

// DashboardTotals are team wide counts across all assignees
type DashboardTotals struct {
	Assigned   int `json:"assigned"`
	InProgress int `json:"in_progress"`
	GoodToTest int `json:"good_to_test"`
	Critical   int `json:"critical"`
	High       int `json:"high"`
}

// TeamDashboard groups assigned, non-terminal bugs by assignee
type TeamDashboard struct {
	Assignees []AssigneeLoad  `json:"assignees"`
	Totals    DashboardTotals `json:"totals"`
}

// BugStats counts stored bugs per status
type BugStats struct {
	Total    int            `json:"total"`
	ByStatus map[Status]int `json:"by_status"`
}

// ExternalIssue identifies a bug's copy in an external tracker
type ExternalIssue struct {
	ID    string `json:"issue_id"`
	URL   string `json:"issue_url"`
	Title string `json:"title"`
}
