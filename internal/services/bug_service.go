package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"bugtracker/internal/config"
	"bugtracker/internal/database"
	"bugtracker/internal/models"
	"bugtracker/internal/observability"
	"bugtracker/internal/serviceinterfaces"
	contextutils "bugtracker/internal/utils"
	"bugtracker/internal/version"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// bugColumns is the column list every scanBug call expects, in order
const bugColumns = `bug_id, reporter, session_id, title, description, reproduction_steps, log_context,
	severity, category, status, assigned_to, assigned_at, progress_notes,
	screenshot_path, screenshot_name, system_info, reported_at, updated_at`

const insertBugSQL = `INSERT INTO bug_reports (
	bug_id, reporter, session_id, title, description, reproduction_steps, log_context,
	status, progress_notes, screenshot_path, screenshot_name, system_info, reported_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateBugSQL = `UPDATE bug_reports SET
	severity = ?, category = ?, status = ?, assigned_to = ?, assigned_at = ?,
	progress_notes = ?, updated_at = ?
WHERE bug_id = ?`

// Batch metric operation names
const (
	batchOpAssign   = "assign"
	batchOpProgress = "progress"
	batchOpAI       = "ai_update"
)

// BugService owns the bug store and applies every lifecycle transition
type BugService struct {
	db         *database.DB
	logger     *observability.Logger
	metrics    *observability.BugMetrics
	shots      *ScreenshotStore
	notifier   serviceinterfaces.Notifier
	exporter   serviceinterfaces.IssueExporter
	now        func() time.Time
	systemInfo string
}

// BugServiceOption configures optional collaborators of a BugService
type BugServiceOption func(*BugService)

// WithScreenshotStore enables screenshot persistence on submit
func WithScreenshotStore(store *ScreenshotStore) BugServiceOption {
	return func(s *BugService) { s.shots = store }
}

// WithNotifier sets who is told about assignments and send-backs
func WithNotifier(n serviceinterfaces.Notifier) BugServiceOption {
	return func(s *BugService) { s.notifier = n }
}

// WithIssueExporter enables export to an external tracker
func WithIssueExporter(e serviceinterfaces.IssueExporter) BugServiceOption {
	return func(s *BugService) { s.exporter = e }
}

// WithMetrics replaces the default global-meter instruments
func WithMetrics(m *observability.BugMetrics) BugServiceOption {
	return func(s *BugService) { s.metrics = m }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) BugServiceOption {
	return func(s *BugService) { s.now = now }
}

// WithSystemInfo overrides the system info recorded on new reports
func WithSystemInfo(info string) BugServiceOption {
	return func(s *BugService) { s.systemInfo = info }
}

// DefaultSystemInfo describes the running binary and platform
func DefaultSystemInfo() string {
	return fmt.Sprintf("%s %s/%s %s (commit %s)", config.DefaultServiceName+"/"+version.Version,
		runtime.GOOS, runtime.GOARCH, runtime.Version(), version.Commit)
}

// NewBugService creates a BugService over an open store
func NewBugService(db *database.DB, logger *observability.Logger, opts ...BugServiceOption) *BugService {
	if db == nil {
		panic("database connection cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	s := &BugService{
		db:         db,
		logger:     logger,
		metrics:    observability.NewBugMetrics(),
		now:        time.Now,
		systemInfo: DefaultSystemInfo(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp is the service clock in UTC at the precision both drivers keep
func (s *BugService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBug(row rowScanner) (*models.BugReport, error) {
	var (
		b        models.BugReport
		severity sql.NullString
		category sql.NullString
		status   string
	)
	err := row.Scan(
		&b.ID, &b.Reporter, &b.SessionID, &b.Title, &b.Description, &b.ReproductionSteps, &b.LogContext,
		&severity, &category, &status, &b.AssignedTo, &b.AssignedAt, &b.ProgressNotes,
		&b.ScreenshotPath, &b.ScreenshotName, &b.SystemInfo, &b.ReportedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Severity = models.Severity(severity.String)
	b.Category = models.Category(category.String)
	b.Status = models.Status(status)
	b.ReportedAt = b.ReportedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	if b.AssignedAt.Valid {
		b.AssignedAt.Time = b.AssignedAt.Time.UTC()
	}
	return &b, nil
}

// nullable maps an unset enum value to SQL NULL
func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func notFound(id string) error {
	return contextutils.Detailf(contextutils.ErrRecordNotFound, "bug %s not found", id)
}

// itemError converts a per-item failure into its batch form
func itemError(id string, err error) models.BatchItemError {
	item := models.BatchItemError{BugID: id, Code: string(contextutils.GetErrorCode(err)), Error: err.Error()}
	var appErr *contextutils.AppError
	if contextutils.AsError(err, &appErr) && appErr.Details != "" {
		item.Error = appErr.Details
	}
	return item
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// SubmitReport stores a new bug in status New. A screenshot that cannot be saved is
// logged and dropped; the report itself is still created.
func (s *BugService) SubmitReport(ctx context.Context, reporter, sessionID string, in models.NewBugReport) (result0 *models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "submit_report", observability.AttributeActor(reporter))
	defer observability.FinishSpan(span, &err)

	if err := contextutils.RequireText("title", in.Title); err != nil {
		return nil, err
	}
	if err := contextutils.RequireText("description", in.Description); err != nil {
		return nil, err
	}
	reporter = strings.TrimSpace(reporter)
	if reporter == "" {
		reporter = contextutils.UnknownActor
	}

	now := s.timestamp()
	bug := &models.BugReport{
		ID:                uuid.NewString(),
		Reporter:          reporter,
		SessionID:         strings.TrimSpace(sessionID),
		Title:             strings.TrimSpace(in.Title),
		Description:       strings.TrimSpace(in.Description),
		ReproductionSteps: nullable(strings.TrimSpace(in.ReproductionSteps)),
		LogContext:        nullable(strings.TrimSpace(in.LogContext)),
		Status:            models.StatusNew,
		SystemInfo:        s.systemInfo,
		ReportedAt:        now,
		UpdatedAt:         now,
	}
	span.SetAttributes(observability.AttributeBugID(bug.ID))

	if in.ScreenshotData != "" && s.shots != nil {
		path, name, shotErr := s.shots.Save(ctx, bug.ID, in.ScreenshotName, in.ScreenshotData)
		if shotErr != nil {
			s.logger.Warn(ctx, "Screenshot not saved; continuing without it", map[string]interface{}{
				"bug_id": bug.ID,
				"error":  shotErr.Error(),
			})
		} else {
			bug.ScreenshotPath = nullable(path)
			bug.ScreenshotName = nullable(name)
		}
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(insertBugSQL),
		bug.ID, bug.Reporter, bug.SessionID, bug.Title, bug.Description, bug.ReproductionSteps, bug.LogContext,
		string(bug.Status), bug.ProgressNotes, bug.ScreenshotPath, bug.ScreenshotName, bug.SystemInfo,
		bug.ReportedAt, bug.UpdatedAt,
	)
	if err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to insert bug report")
	}

	s.metrics.RecordCreated(ctx)
	s.logger.Info(ctx, "Bug report submitted", map[string]interface{}{
		"bug_id":   bug.ID,
		"actor":    reporter,
		"title":    contextutils.Truncate(bug.Title, 80),
		"to":       string(bug.Status),
		"has_shot": bug.ScreenshotPath.Valid,
	})
	return bug, nil
}

// GetReport returns the full record
func (s *BugService) GetReport(ctx context.Context, id string) (result0 *models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "get_report", observability.AttributeBugID(id))
	defer observability.FinishSpan(span, &err)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, contextutils.Detailf(contextutils.ErrMissingRequired, "bug_id must not be empty")
	}
	bug, err := scanBug(s.db.QueryRowContext(ctx, s.db.Rebind("SELECT "+bugColumns+" FROM bug_reports WHERE bug_id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to load bug report")
	}
	return bug, nil
}

// mutation edits a loaded bug in place and reports whether anything changed.
// now is the timestamp the write will carry.
type mutation func(bug *models.BugReport, now time.Time) (changed bool, err error)

// mutate runs read-validate-write for one bug inside a transaction
func (s *BugService) mutate(ctx context.Context, op, actor, id string, fn mutation) (result0 *models.BugReport, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, contextutils.Detailf(contextutils.ErrMissingRequired, "bug_id must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseTransaction, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := "SELECT " + bugColumns + " FROM bug_reports WHERE bug_id = ?"
	if s.db.Driver() == config.DriverPostgres {
		query += " FOR UPDATE"
	}
	bug, err := scanBug(tx.QueryRowContext(ctx, s.db.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to load bug report")
	}

	from := bug.Status
	now := s.timestamp()
	changed, err := fn(bug, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		if err = tx.Rollback(); err != nil {
			return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseTransaction, "failed to end read transaction")
		}
		return bug, nil
	}

	if bug.AssignedTo.Valid != bug.AssignedAt.Valid {
		return nil, contextutils.ErrorWithContextf("bug %s: assignee and assigned_at must be set together", id)
	}
	bug.UpdatedAt = now

	_, err = tx.ExecContext(ctx, s.db.Rebind(updateBugSQL),
		nullable(string(bug.Severity)), nullable(string(bug.Category)), string(bug.Status),
		bug.AssignedTo, bug.AssignedAt, bug.ProgressNotes, bug.UpdatedAt, bug.ID,
	)
	if err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to update bug report")
	}
	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseTransaction, "failed to commit bug update")
	}

	if from != bug.Status {
		s.metrics.RecordTransition(ctx, string(from), string(bug.Status))
	}
	s.logger.Info(ctx, "Bug updated", map[string]interface{}{
		"op":     op,
		"bug_id": bug.ID,
		"actor":  actor,
		"from":   string(from),
		"to":     string(bug.Status),
	})
	return bug, nil
}

// moveTo applies a status write through the lifecycle table
func moveTo(bug *models.BugReport, to models.Status) (bool, error) {
	write, err := models.PlanTransition(bug.Status, to)
	if err != nil {
		return false, err
	}
	if to == models.StatusAssigned && write && !bug.AssignedTo.Valid {
		return false, contextutils.Detailf(contextutils.ErrValidationFailed, "bug %s has no assignee; assign it instead", bug.ID)
	}
	if write {
		bug.Status = to
	}
	return write, nil
}

// triageOnClassify moves a New bug to Triaged once it gets a severity or category
func triageOnClassify(bug *models.BugReport) bool {
	if bug.Status == models.StatusNew {
		bug.Status = models.StatusTriaged
		return true
	}
	return false
}

func appendNote(bug *models.BugReport, now time.Time, verb models.NoteVerb, actor, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	bug.ProgressNotes = models.AppendNote(bug.ProgressNotes, models.FormatNote(now, verb, actor, text))
	return true
}

// SetSeverity classifies a bug. A New bug becomes Triaged.
func (s *BugService) SetSeverity(ctx context.Context, actor, id string, severity models.Severity) (result0 *models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "set_severity",
		observability.AttributeBugID(id), observability.AttributeActor(actor), observability.AttributeSeverity(string(severity)))
	defer observability.FinishSpan(span, &err)

	if severity, err = models.ParseSeverity(string(severity)); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "set_severity", actor, id, func(bug *models.BugReport, _ time.Time) (bool, error) {
		changed := bug.Severity != severity
		bug.Severity = severity
		return triageOnClassify(bug) || changed, nil
	})
}

// SetCategory classifies a bug. A New bug becomes Triaged.
func (s *BugService) SetCategory(ctx context.Context, actor, id string, category models.Category) (result0 *models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "set_category",
		observability.AttributeBugID(id), observability.AttributeActor(actor), attribute.String("bug.category", string(category)))
	defer observability.FinishSpan(span, &err)

	if category, err = models.ParseCategory(string(category)); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "set_category", actor, id, func(bug *models.BugReport, _ time.Time) (bool, error) {
		changed := bug.Category != category
		bug.Category = category
		return triageOnClassify(bug) || changed, nil
	})
}

// SetStatus writes a status directly. The move must be a lifecycle edge.
func (s *BugService) SetStatus(ctx context.Context, actor, id string, status models.Status) (result0 *models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "set_status",
		observability.AttributeBugID(id), observability.AttributeActor(actor), observability.AttributeStatus(string(status)))
	defer observability.FinishSpan(span, &err)

	if status, err = models.ParseStatus(string(status)); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "set_status", actor, id, func(bug *models.BugReport, _ time.Time) (bool, error) {
		return moveTo(bug, status)
	})
}

// AssignBulk gives each bug to assignee. Re-assigning to the same actor is a no-op;
// a different actor takes over an Assigned bug. Bugs already being worked are skipped.
func (s *BugService) AssignBulk(ctx context.Context, ids []string, assignee string) (result0 *models.BatchResult, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "assign_bulk",
		observability.AttributeActor(assignee), observability.AttributeBatchSize(len(ids)))
	defer observability.FinishSpan(span, &err)

	assignee = strings.TrimSpace(assignee)
	if err := contextutils.RequireText("assignee", assignee); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, contextutils.Detailf(contextutils.ErrMissingRequired, "bug_ids must not be empty")
	}

	result := models.NewBatchResult()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true

		assigned := false
		bug, itemErr := s.mutate(ctx, "assign", assignee, id, func(bug *models.BugReport, now time.Time) (bool, error) {
			switch bug.Status {
			case models.StatusNew, models.StatusTriaged, models.StatusAssigned:
				if bug.Status == models.StatusAssigned && bug.IsAssignedTo(assignee) {
					return false, nil
				}
			default:
				return false, contextutils.Detailf(contextutils.ErrConflict, "bug %s is %s and cannot be reassigned", bug.ID, bug.Status)
			}
			bug.AssignedTo = sql.NullString{String: assignee, Valid: true}
			bug.AssignedAt = sql.NullTime{Time: now, Valid: true}
			if bug.Status != models.StatusAssigned {
				if _, err := moveTo(bug, models.StatusAssigned); err != nil {
					return false, err
				}
			}
			assigned = true
			return true, nil
		})
		if itemErr != nil {
			result.Errors = append(result.Errors, itemError(id, itemErr))
			s.metrics.RecordBatchItem(ctx, batchOpAssign, "failed")
			continue
		}
		if !assigned {
			result.Unchanged = append(result.Unchanged, bug.ID)
			s.metrics.RecordBatchItem(ctx, batchOpAssign, "unchanged")
			continue
		}
		result.Applied = append(result.Applied, fmt.Sprintf("Bug %s assigned to %s", shortID(bug.ID), assignee))
		result.AppliedIDs = append(result.AppliedIDs, bug.ID)
		s.metrics.RecordBatchItem(ctx, batchOpAssign, "applied")
		s.notifyAssigned(ctx, bug)
	}

	span.SetAttributes(attribute.Int("batch.applied", result.Count()))
	return result, nil
}

// UpdateProgressBulk records the assignee's progress on their own bugs
func (s *BugService) UpdateProgressBulk(ctx context.Context, actor string, updates []models.ProgressUpdate) (result0 *models.BatchResult, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "update_progress_bulk",
		observability.AttributeActor(actor), observability.AttributeBatchSize(len(updates)))
	defer observability.FinishSpan(span, &err)

	if len(updates) == 0 {
		return nil, contextutils.Detailf(contextutils.ErrMissingRequired, "updates must not be empty")
	}

	result := models.NewBatchResult()
	for _, u := range updates {
		applied, changed, itemErr := s.applyProgress(ctx, actor, u)
		if itemErr != nil {
			result.Errors = append(result.Errors, itemError(u.BugID, itemErr))
			s.metrics.RecordBatchItem(ctx, batchOpProgress, "failed")
			continue
		}
		if !changed {
			result.Unchanged = append(result.Unchanged, u.BugID)
			s.metrics.RecordBatchItem(ctx, batchOpProgress, "unchanged")
			continue
		}
		result.Applied = append(result.Applied, applied...)
		result.AppliedIDs = append(result.AppliedIDs, u.BugID)
		s.metrics.RecordBatchItem(ctx, batchOpProgress, "applied")
	}

	span.SetAttributes(attribute.Int("batch.applied", result.Count()))
	return result, nil
}

func (s *BugService) applyProgress(ctx context.Context, actor string, u models.ProgressUpdate) (applied []string, changed bool, err error) {
	var target models.Status
	if raw, ok := u.Status.Get(); ok {
		if target, err = models.ParseStatus(raw); err != nil {
			return nil, false, err
		}
	}
	notes, hasNotes := u.Notes.Get()
	hasNotes = hasNotes && strings.TrimSpace(notes) != ""
	if target == "" && !hasNotes {
		return nil, false, contextutils.Detailf(contextutils.ErrMissingRequired, "update for %s carries neither status nor notes", u.BugID)
	}

	_, err = s.mutate(ctx, "update_progress", actor, u.BugID, func(bug *models.BugReport, now time.Time) (bool, error) {
		if !bug.IsAssignedTo(actor) {
			return false, contextutils.Detailf(contextutils.ErrConflict, "bug %s is not assigned to %s", bug.ID, actor)
		}
		verb := models.NoteProgress
		if target != "" {
			write, err := moveTo(bug, target)
			if err != nil {
				return false, err
			}
			if write {
				changed = true
				applied = append(applied, fmt.Sprintf("Bug %s status -> %s", shortID(bug.ID), target))
			}
			if target == models.StatusGoodToTest {
				verb = models.NoteFixed
			}
		}
		if hasNotes && appendNote(bug, now, verb, actor, notes) {
			changed = true
			applied = append(applied, fmt.Sprintf("Bug %s notes appended", shortID(bug.ID)))
		}
		return changed, nil
	})
	if err != nil {
		return nil, false, err
	}
	return applied, changed, nil
}

// MarkFixed moves an In Progress bug to Good-to-Test with the fix summary
func (s *BugService) MarkFixed(ctx context.Context, actor, id, notes string) (result0 *models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "mark_fixed",
		observability.AttributeBugID(id), observability.AttributeActor(actor))
	defer observability.FinishSpan(span, &err)

	if err := contextutils.RequireText("fix notes", notes); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "mark_fixed", actor, id, func(bug *models.BugReport, now time.Time) (bool, error) {
		if bug.Status != models.StatusInProgress {
			return false, contextutils.Detailf(contextutils.ErrInvalidTransition,
				"%s -> %s: only bugs In Progress can be marked fixed", bug.Status, models.StatusGoodToTest)
		}
		if _, err := moveTo(bug, models.StatusGoodToTest); err != nil {
			return false, err
		}
		appendNote(bug, now, models.NoteFixed, actor, notes)
		return true, nil
	})
}

// Resolve approves a fix under test
func (s *BugService) Resolve(ctx context.Context, actor, id string) (result0 *models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "resolve",
		observability.AttributeBugID(id), observability.AttributeActor(actor))
	defer observability.FinishSpan(span, &err)

	return s.mutate(ctx, "resolve", actor, id, func(bug *models.BugReport, _ time.Time) (bool, error) {
		return moveTo(bug, models.StatusResolved)
	})
}

// SendBack rejects a fix under test. The bug returns to its assignee with the reason appended.
func (s *BugService) SendBack(ctx context.Context, actor, id, reason string) (result0 *models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "send_back",
		observability.AttributeBugID(id), observability.AttributeActor(actor))
	defer observability.FinishSpan(span, &err)

	if err := contextutils.RequireText("reason", reason); err != nil {
		return nil, err
	}
	bug, err := s.mutate(ctx, "send_back", actor, id, func(bug *models.BugReport, now time.Time) (bool, error) {
		if bug.Status != models.StatusGoodToTest {
			return false, contextutils.Detailf(contextutils.ErrInvalidTransition,
				"%s -> %s: only bugs in %s can be sent back", bug.Status, models.StatusAssigned, models.StatusGoodToTest)
		}
		if _, err := moveTo(bug, models.StatusAssigned); err != nil {
			return false, err
		}
		appendNote(bug, now, models.NoteSentBack, actor, reason)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil && s.notifier.IsEnabled() {
		if nErr := s.notifier.NotifySentBack(ctx, bug, actor, reason); nErr != nil {
			s.logger.Warn(ctx, "Send-back notification failed", map[string]interface{}{"bug_id": bug.ID, "error": nErr.Error()})
		}
	}
	return bug, nil
}

// Dismiss closes a bug without a fix. A non-empty reason is kept as a note.
func (s *BugService) Dismiss(ctx context.Context, actor, id, reason string) (result0 *models.BugReport, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "dismiss",
		observability.AttributeBugID(id), observability.AttributeActor(actor))
	defer observability.FinishSpan(span, &err)

	return s.mutate(ctx, "dismiss", actor, id, func(bug *models.BugReport, now time.Time) (bool, error) {
		write, err := moveTo(bug, models.StatusDismissed)
		if err != nil || !write {
			return false, err
		}
		appendNote(bug, now, models.NoteGeneral, actor, reason)
		return true, nil
	})
}

// AIBulkUpdate applies partial updates from automated callers. Each item is validated
// and written on its own; failures are reported per item and never stop the batch.
func (s *BugService) AIBulkUpdate(ctx context.Context, actor string, updates []models.BugUpdate) (result0 *models.BatchResult, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "ai_bulk_update",
		observability.AttributeActor(actor), observability.AttributeBatchSize(len(updates)))
	defer observability.FinishSpan(span, &err)

	if len(updates) == 0 {
		return nil, contextutils.Detailf(contextutils.ErrMissingRequired, "updates must not be empty")
	}

	result := models.NewBatchResult()
	for _, u := range updates {
		applied, changed, itemErr := s.applyBugUpdate(ctx, actor, u)
		if itemErr != nil {
			result.Errors = append(result.Errors, itemError(u.BugID, itemErr))
			s.metrics.RecordBatchItem(ctx, batchOpAI, "failed")
			continue
		}
		if !changed {
			result.Unchanged = append(result.Unchanged, u.BugID)
			s.metrics.RecordBatchItem(ctx, batchOpAI, "unchanged")
			continue
		}
		result.Applied = append(result.Applied, applied...)
		result.AppliedIDs = append(result.AppliedIDs, u.BugID)
		s.metrics.RecordBatchItem(ctx, batchOpAI, "applied")
	}

	span.SetAttributes(attribute.Int("batch.applied", result.Count()), attribute.Int("batch.failed", len(result.Errors)))
	s.logger.Info(ctx, "AI bulk update finished", map[string]interface{}{
		"actor":   actor,
		"items":   len(updates),
		"applied": result.Count(),
		"failed":  len(result.Errors),
	})
	return result, nil
}

// applyBugUpdate validates every present field before touching the store, then applies
// severity, category, status and notes in that order in one transaction.
func (s *BugService) applyBugUpdate(ctx context.Context, actor string, u models.BugUpdate) (applied []string, changed bool, err error) {
	if strings.TrimSpace(u.BugID) == "" {
		return nil, false, contextutils.Detailf(contextutils.ErrMissingRequired, "bug_id must not be empty")
	}
	if u.IsEmpty() {
		return nil, false, contextutils.Detailf(contextutils.ErrValidationFailed, "update for %s carries no fields", u.BugID)
	}

	var (
		severity models.Severity
		category models.Category
		status   models.Status
	)
	if raw, ok := u.Severity.Get(); ok {
		if severity, err = models.ParseSeverity(raw); err != nil {
			return nil, false, err
		}
	}
	if raw, ok := u.Category.Get(); ok {
		if category, err = models.ParseCategory(raw); err != nil {
			return nil, false, err
		}
	}
	if raw, ok := u.Status.Get(); ok {
		if status, err = models.ParseStatus(raw); err != nil {
			return nil, false, err
		}
	}

	_, err = s.mutate(ctx, "ai_update", actor, u.BugID, func(bug *models.BugReport, now time.Time) (bool, error) {
		short := shortID(bug.ID)
		if severity != "" && bug.Severity != severity {
			bug.Severity = severity
			changed = true
			applied = append(applied, fmt.Sprintf("Bug %s severity -> %s", short, severity))
		}
		if category != "" && bug.Category != category {
			bug.Category = category
			changed = true
			applied = append(applied, fmt.Sprintf("Bug %s category -> %s", short, category))
		}
		if (severity != "" || category != "") && status == "" && triageOnClassify(bug) {
			changed = true
			applied = append(applied, fmt.Sprintf("Bug %s status -> %s", short, models.StatusTriaged))
		}
		if status != "" {
			write, err := moveTo(bug, status)
			if err != nil {
				return false, err
			}
			if write {
				changed = true
				applied = append(applied, fmt.Sprintf("Bug %s status -> %s", short, status))
			}
		}
		if notes, ok := u.Notes.Get(); ok && appendNote(bug, now, models.NoteGeneral, actor, notes) {
			changed = true
			applied = append(applied, fmt.Sprintf("Bug %s notes appended", short))
		}
		return changed, nil
	})
	if err != nil {
		return nil, false, err
	}
	return applied, changed, nil
}

// ExportToTracker creates an external issue for the bug and notes its link on the bug
func (s *BugService) ExportToTracker(ctx context.Context, actor, id string) (result0 *models.ExternalIssue, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "export_to_tracker",
		observability.AttributeBugID(id), observability.AttributeActor(actor))
	defer observability.FinishSpan(span, &err)

	if s.exporter == nil || !s.exporter.IsEnabled() {
		return nil, contextutils.Detailf(contextutils.ErrIntegrationDisabled, "issue tracker export is not configured")
	}
	bug, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	issue, err := s.exporter.ExportBug(ctx, bug)
	if err != nil {
		return nil, err
	}

	note := fmt.Sprintf("Exported as %s: %s", issue.ID, issue.URL)
	if _, err := s.mutate(ctx, "export", actor, bug.ID, func(b *models.BugReport, now time.Time) (bool, error) {
		return appendNote(b, now, models.NoteGeneral, actor, note), nil
	}); err != nil {
		// the issue exists; only the back-reference failed
		s.logger.Error(ctx, "Failed to record exported issue on bug", err, map[string]interface{}{"bug_id": bug.ID, "issue_id": issue.ID})
	}
	return issue, nil
}

func (s *BugService) notifyAssigned(ctx context.Context, bug *models.BugReport) {
	if s.notifier == nil || !s.notifier.IsEnabled() {
		return
	}
	if err := s.notifier.NotifyAssigned(ctx, bug); err != nil {
		s.logger.Warn(ctx, "Assignment notification failed", map[string]interface{}{"bug_id": bug.ID, "error": err.Error()})
	}
}

// Purge physically deletes bugs in a terminal status and their screenshots
func (s *BugService) Purge(ctx context.Context, status models.Status) (result0 int64, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "purge", observability.AttributeStatus(string(status)))
	defer observability.FinishSpan(span, &err)

	if !status.IsTerminal() {
		return 0, contextutils.Detailf(contextutils.ErrInvalidInput, "only %s or %s bugs can be purged", models.StatusResolved, models.StatusDismissed)
	}

	rows, err := s.db.QueryContext(ctx, s.db.Rebind("SELECT screenshot_path FROM bug_reports WHERE status = ? AND screenshot_path IS NOT NULL"), string(status))
	if err != nil {
		return 0, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to list screenshots")
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			_ = rows.Close()
			return 0, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to scan screenshot path")
		}
		paths = append(paths, p)
	}
	if err := rows.Close(); err != nil {
		return 0, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to list screenshots")
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM bug_reports WHERE status = ?"), string(status))
	if err != nil {
		return 0, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to purge bugs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to count purged bugs")
	}

	if s.shots != nil {
		for _, p := range paths {
			_ = s.shots.Remove(ctx, p)
		}
	}
	s.logger.Info(ctx, "Bugs purged", map[string]interface{}{"status": string(status), "count": n, "screenshots": len(paths)})
	return n, nil
}

// Stats counts stored bugs per status
func (s *BugService) Stats(ctx context.Context) (result0 *models.BugStats, err error) {
	ctx, span := observability.TraceBugFunction(ctx, "stats")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM bug_reports GROUP BY status")
	if err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to count bugs")
	}
	defer func() { _ = rows.Close() }()

	stats := &models.BugStats{ByStatus: make(map[models.Status]int, len(models.AllStatuses))}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to scan bug counts")
		}
		stats.ByStatus[models.Status(status)] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseQuery, "failed to count bugs")
	}
	return stats, nil
}

// Ping verifies the store is reachable
func (s *BugService) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return contextutils.WrapWithCode(err, contextutils.ErrorCodeDatabaseConnection, "database is unreachable")
	}
	return nil
}

var _ serviceinterfaces.BugServiceInterface = (*BugService)(nil)
