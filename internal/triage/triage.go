// Package triage holds the severity ordering policy shared by every queue view.
package triage

import (
	"fmt"
	"sort"
	"time"

	"bugtracker/internal/models"
)

// UnsetRank is the rank of a bug with no severity
const UnsetRank = 5

var ranks = map[models.Severity]int{
	models.SeverityCritical: 1,
	models.SeverityHigh:     2,
	models.SeverityMedium:   3,
	models.SeverityLow:      4,
}

// Rank returns 1 for Critical through 4 for Low, and UnsetRank otherwise
func Rank(s models.Severity) int {
	if r, ok := ranks[s]; ok {
		return r
	}
	return UnsetRank
}

// Less orders by severity rank ascending, then timestamp descending
func Less(sevA models.Severity, tsA time.Time, sevB models.Severity, tsB time.Time) bool {
	ra, rb := Rank(sevA), Rank(sevB)
	if ra != rb {
		return ra < rb
	}
	return tsA.After(tsB)
}

// Timestamp selects which time a view orders by
type Timestamp func(b *models.BugReport) time.Time

// Timestamp selectors for each view
var (
	ByReported Timestamp = func(b *models.BugReport) time.Time { return b.ReportedAt }
	ByUpdated  Timestamp = func(b *models.BugReport) time.Time { return b.UpdatedAt }
	ByAssigned Timestamp = func(b *models.BugReport) time.Time {
		if b.AssignedAt.Valid {
			return b.AssignedAt.Time
		}
		return time.Time{}
	}
)

// Sort orders bugs in place by triage policy
func Sort(bugs []models.BugReport, ts Timestamp) {
	sort.SliceStable(bugs, func(i, j int) bool {
		return Less(bugs[i].Severity, ts(&bugs[i]), bugs[j].Severity, ts(&bugs[j]))
	})
}

// RankExpr is the SQL expression computing Rank from the severity column
const RankExpr = `CASE severity WHEN 'Critical' THEN 1 WHEN 'High' THEN 2 WHEN 'Medium' THEN 3 WHEN 'Low' THEN 4 ELSE 5 END`

// OrderBy renders the policy as an ORDER BY clause over timeColumn.
// timeColumn must be one of the fixed column names, never caller input.
func OrderBy(timeColumn string) string {
	return fmt.Sprintf("ORDER BY %s ASC, %s DESC, bug_id ASC", RankExpr, timeColumn)
}
