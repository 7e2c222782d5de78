package models

import (
	"strings"
)

// BugUpdate is a partial update keyed by bug id. Only present fields are applied.
type BugUpdate struct {
	BugID    string           `json:"bug_id"`
	Severity Optional[string] `json:"severity"`
	Category Optional[string] `json:"category"`
	Status   Optional[string] `json:"status"`
	Notes    Optional[string] `json:"notes"`
}

// IsEmpty reports whether the update carries no field besides the id
func (u BugUpdate) IsEmpty() bool {
	return !u.Severity.Set && !u.Category.Set && !u.Status.Set &&
		(!u.Notes.Set || strings.TrimSpace(u.Notes.Value) == "")
}

// ProgressUpdate is an assignee's report on one of their bugs
type ProgressUpdate struct {
	BugID  string           `json:"bug_id"`
	Status Optional[string] `json:"status"`
	Notes  Optional[string] `json:"notes"`
}

// BatchItemError is one failed item of a bulk operation
type BatchItemError struct {
	BugID string `json:"bug_id"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// BatchResult aggregates a bulk operation. One failed item never aborts the others.
type BatchResult struct {
	Applied    []string         `json:"applied"`
	Errors     []BatchItemError `json:"errors"`
	AppliedIDs []string         `json:"applied_ids"`
	// Unchanged lists ids that were valid but already in the requested state
	Unchanged []string `json:"unchanged"`
}

// NewBatchResult returns a result with non-nil slices so JSON renders [] not null
func NewBatchResult() *BatchResult {
	return &BatchResult{Applied: []string{}, Errors: []BatchItemError{}, AppliedIDs: []string{}, Unchanged: []string{}}
}

// Count is the number of bugs that were changed
func (r *BatchResult) Count() int {
	return len(r.AppliedIDs)
}
