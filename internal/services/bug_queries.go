package services

import (
	"context"
	"sort"
	"strings"

	"bugtracker/internal/models"
	"bugtracker/internal/observability"
	"bugtracker/internal/triage"
	contextutils "bugtracker/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// View limits. A limit <= 0 selects the view default; every limit is capped at MaxListLimit.
const (
	DefaultOpenLimit   = 20
	DefaultAuditLimit  = 50
	DefaultAIFeedLimit = 20
	DefaultPickerLimit = 50
	MaxListLimit       = 200
)

// UnsetSeverityLabel is the dashboard bucket for bugs without a severity
const UnsetSeverityLabel = "Unset"

func normalizeLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// placeholders returns "?, ?, ..." for n values
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func statusArgs(statuses []models.Status) []interface{} {
	args := make([]interface{}, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
	}
	return args
}

var terminalStatuses = []models.Status{models.StatusResolved, models.StatusDismissed}

// queryBugs runs SELECT <bugColumns> FROM bug_reports WHERE <where> <order> [LIMIT ?]
func (s *BugService) queryBugs(ctx context.Context, where string, args []interface{}, order string, limit int) ([]models.BugReport, error) {
	query := "SELECT " + bugColumns + " FROM bug_reports WHERE " + where + " " + order
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to query bug reports")
	}
	defer func() { _ = rows.Close() }()

	bugs := []models.BugReport{}
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to scan bug report")
		}
		bugs = append(bugs, *bug)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to read bug reports")
	}
	return bugs, nil
}

// ListOpen returns non-terminal bugs, newest first. Empty filters match everything.
func (s *BugService) ListOpen(ctx context.Context, status models.Status, severity models.Severity, limit int) (result0 []models.BugReport, err error) {
	limit = normalizeLimit(limit, DefaultOpenLimit)
	ctx, span := observability.TraceBugFunction(ctx, "list_open",
		observability.AttributeStatus(string(status)), observability.AttributeSeverity(string(severity)), observability.AttributeLimit(limit))
	defer observability.FinishSpan(span, &err)

	where := "status NOT IN (" + placeholders(len(terminalStatuses)) + ")"
	args := statusArgs(terminalStatuses)
	if status != "" {
		if status.IsTerminal() {
			return []models.BugReport{}, nil
		}
		where += " AND status = ?"
		args = append(args, string(status))
	}
	if severity != models.SeverityUnset {
		where += " AND severity = ?"
		args = append(args, string(severity))
	}
	return s.queryBugs(ctx, where, args, "ORDER BY reported_at DESC, bug_id ASC", limit)
}

// ListAssignable is the picker: unassigned New or Triaged bugs in triage order
func (s *BugService) ListAssignable(ctx context.Context, limit int) (result0 []models.BugReport, err error) {
	limit = normalizeLimit(limit, DefaultPickerLimit)
	ctx, span := observability.TraceBugFunction(ctx, "list_assignable", observability.AttributeLimit(limit))
	defer observability.FinishSpan(span, &err)

	return s.queryBugs(ctx, "status IN (?, ?) AND assigned_to IS NULL",
		statusArgs([]models.Status{models.StatusNew, models.StatusTriaged}), triage.OrderBy("reported_at"), limit)
}

// MyOpenBugs is the caller's to-do list in triage order
func (s *BugService) MyOpenBugs(ctx context.Context, actor string) (result0 []models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "my_open_bugs", observability.AttributeActor(actor))
	defer observability.FinishSpan(span, &err)

	actor = strings.TrimSpace(actor)
	if err := contextutils.RequireText("actor", actor); err != nil {
		return nil, err
	}
	args := append([]interface{}{actor}, statusArgs(terminalStatuses)...)
	return s.queryBugs(ctx, "assigned_to = ? AND status NOT IN ("+placeholders(len(terminalStatuses))+")",
		args, triage.OrderBy("assigned_at"), 0)
}

// TestingQueue lists fixes waiting for a tester in triage order
func (s *BugService) TestingQueue(ctx context.Context) (result0 []models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "testing_queue")
	defer observability.FinishSpan(span, &err)

	return s.queryBugs(ctx, "status = ?", []interface{}{string(models.StatusGoodToTest)}, triage.OrderBy("updated_at"), 0)
}

// TeamDashboard groups assigned, non-terminal bugs by assignee
func (s *BugService) TeamDashboard(ctx context.Context) (result0 *models.TeamDashboard, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "team_dashboard")
	defer observability.FinishSpan(span, &err)

	bugs, err := s.queryBugs(ctx, "assigned_to IS NOT NULL AND status NOT IN ("+placeholders(len(terminalStatuses))+")",
		statusArgs(terminalStatuses), "ORDER BY assigned_to ASC", 0)
	if err != nil {
		return nil, err
	}

	byAssignee := map[string]*models.AssigneeLoad{}
	var names []string
	dash := &models.TeamDashboard{Assignees: []models.AssigneeLoad{}}
	for i := range bugs {
		bug := &bugs[i]
		load, ok := byAssignee[bug.AssignedTo.String]
		if !ok {
			load = &models.AssigneeLoad{
				Assignee:   bug.AssignedTo.String,
				ByStatus:   map[models.Status]int{},
				BySeverity: map[string]int{},
				Bugs:       []models.BugSummary{},
			}
			byAssignee[bug.AssignedTo.String] = load
			names = append(names, bug.AssignedTo.String)
		}
		load.Total++
		load.ByStatus[bug.Status]++
		sev := string(bug.Severity)
		if sev == "" {
			sev = UnsetSeverityLabel
		}
		load.BySeverity[sev]++

		switch bug.Status {
		case models.StatusAssigned:
			dash.Totals.Assigned++
		case models.StatusInProgress:
			dash.Totals.InProgress++
		case models.StatusGoodToTest:
			dash.Totals.GoodToTest++
		}
		switch bug.Severity {
		case models.SeverityCritical:
			dash.Totals.Critical++
		case models.SeverityHigh:
			dash.Totals.High++
		}
	}

	sort.Strings(names)
	for _, name := range names {
		load := byAssignee[name]
		var own []models.BugReport
		for i := range bugs {
			if bugs[i].AssignedTo.String == name {
				own = append(own, bugs[i])
			}
		}
		triage.Sort(own, triage.ByAssigned)
		load.Bugs = models.Summaries(own)
		dash.Assignees = append(dash.Assignees, *load)
	}

	span.SetAttributes(attribute.Int("dashboard.assignees", len(dash.Assignees)), attribute.Int("dashboard.bugs", len(bugs)))
	return dash, nil
}

// AuditResolved lists resolved bugs, most recently resolved first, with their notes
func (s *BugService) AuditResolved(ctx context.Context, limit int) (result0 []models.AuditEntry, err error) {
	limit = normalizeLimit(limit, DefaultAuditLimit)
	ctx, span := observability.TraceBugFunction(ctx, "audit_resolved", observability.AttributeLimit(limit))
	defer observability.FinishSpan(span, &err)

	bugs, err := s.queryBugs(ctx, "status = ?", []interface{}{string(models.StatusResolved)}, "ORDER BY updated_at DESC, bug_id ASC", limit)
	if err != nil {
		return nil, err
	}
	entries := make([]models.AuditEntry, 0, len(bugs))
	for i := range bugs {
		summary := bugs[i].Summary()
		entries = append(entries, models.AuditEntry{
			ID:         bugs[i].ID,
			Title:      bugs[i].Title,
			Severity:   summary.Severity,
			Category:   summary.Category,
			AssignedTo: summary.AssignedTo,
			ReportedAt: bugs[i].ReportedAt,
			ResolvedAt: bugs[i].UpdatedAt,
			Notes:      bugs[i].ProgressNotes,
		})
	}
	return entries, nil
}

// AIFeed returns full records for automated callers. No statuses means New and Triaged.
func (s *BugService) AIFeed(ctx context.Context, statuses []models.Status, severity models.Severity, limit int) (result0 []models.BugReport, err error) {
	limit = normalizeLimit(limit, DefaultAIFeedLimit)
	if len(statuses) == 0 {
		statuses = []models.Status{models.StatusNew, models.StatusTriaged}
	}
	ctx, span := observability.TraceBugFunction(ctx, "ai_feed",
		attribute.Int("filter.statuses", len(statuses)), observability.AttributeSeverity(string(severity)), observability.AttributeLimit(limit))
	defer observability.FinishSpan(span, &err)

	where := "status IN (" + placeholders(len(statuses)) + ")"
	args := statusArgs(statuses)
	if severity != models.SeverityUnset {
		where += " AND severity = ?"
		args = append(args, string(severity))
	}
	return s.queryBugs(ctx, where, args, "ORDER BY reported_at DESC, bug_id ASC", limit)
}
