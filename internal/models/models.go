// Package models defines data structures used throughout the bug tracker.
package models

import (
	"database/sql"
	"strings"
	"time"

	contextutils "bugtracker/internal/utils"
)

// Status is the lifecycle position of a bug report
type Status string

// Lifecycle statuses. The string values are the wire and storage form.
const (
	StatusNew        Status = "New"
	StatusTriaged    Status = "Triaged"
	StatusAssigned   Status = "Assigned"
	StatusInProgress Status = "In Progress"
	StatusGoodToTest Status = "Good-to-Test"
	StatusResolved   Status = "Resolved"
	StatusDismissed  Status = "Dismissed"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []Status{
	StatusNew, StatusTriaged, StatusAssigned, StatusInProgress,
	StatusGoodToTest, StatusResolved, StatusDismissed,
}

// OpenStatuses are the statuses shown by default listings
var OpenStatuses = []Status{
	StatusNew, StatusTriaged, StatusAssigned, StatusInProgress, StatusGoodToTest,
}

// IsTerminal reports whether the status is excluded from default views
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// Severity of a bug. The zero value means unset.
type Severity string

// Severity levels
const (
	SeverityUnset    Severity = ""
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Category of a bug. The zero value means unset.
type Category string

// Categories
const (
	CategoryUnset       Category = ""
	CategoryUI          Category = "UI"
	CategoryPerformance Category = "Performance"
	CategoryCrash       Category = "Crash"
	CategoryData        Category = "Data"
	CategoryNetwork     Category = "Network"
	CategoryOther       Category = "Other"
)

var (
	statusByKey = keyed(AllStatuses)
	severityKey = keyed([]Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical})
	categoryKey = keyed([]Category{
		CategoryUI, CategoryPerformance, CategoryCrash, CategoryData, CategoryNetwork, CategoryOther,
	})
)

// normalizeKey folds case and drops separators so "in_progress", "In Progress"
// and "inprogress" all compare equal.
func normalizeKey(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(raw)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func keyed[T ~string](values []T) map[string]T {
	m := make(map[string]T, len(values))
	for _, v := range values {
		m[normalizeKey(string(v))] = v
	}
	return m
}

func isNoneFilter(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || strings.EqualFold(raw, "none")
}

// ParseStatus normalizes a caller supplied status
func ParseStatus(raw string) (Status, error) {
	if s, ok := statusByKey[normalizeKey(raw)]; ok {
		return s, nil
	}
	return "", contextutils.Detailf(contextutils.ErrInvalidInput, "unknown status %q", raw)
}

// ParseSeverity normalizes a caller supplied severity. Unset is rejected.
func ParseSeverity(raw string) (Severity, error) {
	if s, ok := severityKey[normalizeKey(raw)]; ok {
		return s, nil
	}
	return SeverityUnset, contextutils.Detailf(contextutils.ErrInvalidInput, "unknown severity %q", raw)
}

// ParseCategory normalizes a caller supplied category. Unset is rejected.
func ParseCategory(raw string) (Category, error) {
	if c, ok := categoryKey[normalizeKey(raw)]; ok {
		return c, nil
	}
	return CategoryUnset, contextutils.Detailf(contextutils.ErrInvalidInput, "unknown category %q", raw)
}

// ParseStatusFilter returns the empty status for "" and "none", meaning no filter
func ParseStatusFilter(raw string) (Status, error) {
	if isNoneFilter(raw) {
		return "", nil
	}
	return ParseStatus(raw)
}

// ParseSeverityFilter returns SeverityUnset for "" and "none", meaning no filter
func ParseSeverityFilter(raw string) (Severity, error) {
	if isNoneFilter(raw) {
		return SeverityUnset, nil
	}
	return ParseSeverity(raw)
}

// ParseStatusSet parses a comma separated status list such as "New,Triaged".
// An empty list yields nil.
func ParseStatusSet(raw string) ([]Status, error) {
	if isNoneFilter(raw) {
		return nil, nil
	}
	var out []Status
	seen := make(map[Status]bool)
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		s, err := ParseStatus(part)
		if err != nil {
			return nil, err
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

func stringToPointer(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
