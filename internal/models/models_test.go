package models

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	contextutils "bugtracker/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"new", StatusNew},
		{"TRIAGED", StatusTriaged},
		{"in_progress", StatusInProgress},
		{"inprogress", StatusInProgress},
		{"In Progress", StatusInProgress},
		{"good to test", StatusGoodToTest},
		{"Good-to-Test", StatusGoodToTest},
		{" resolved ", StatusResolved},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseStatus("closed")
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
}

func TestParseSeverityAndCategory(t *testing.T) {
	sev, err := ParseSeverity("critical")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, sev)

	_, err = ParseSeverity("")
	assert.Error(t, err)
	_, err = ParseSeverity("urgent")
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))

	cat, err := ParseCategory("ui")
	require.NoError(t, err)
	assert.Equal(t, CategoryUI, cat)

	_, err = ParseCategory("security")
	assert.Error(t, err)
}

func TestParseFilters(t *testing.T) {
	sev, err := ParseSeverityFilter("none")
	require.NoError(t, err)
	assert.Equal(t, SeverityUnset, sev)

	st, err := ParseStatusFilter("")
	require.NoError(t, err)
	assert.Equal(t, Status(""), st)

	set, err := ParseStatusSet("New, triaged,new")
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusNew, StatusTriaged}, set)

	set, err = ParseStatusSet("")
	require.NoError(t, err)
	assert.Nil(t, set)

	_, err = ParseStatusSet("New,Bogus")
	assert.Error(t, err)
}

func TestPlanTransition(t *testing.T) {
	tests := []struct {
		name      string
		from, to  Status
		wantWrite bool
		wantErr   bool
	}{
		{"triage", StatusNew, StatusTriaged, true, false},
		{"retriage", StatusTriaged, StatusTriaged, true, false},
		{"assign from new", StatusNew, StatusAssigned, true, false},
		{"start work", StatusAssigned, StatusInProgress, true, false},
		{"fix", StatusInProgress, StatusGoodToTest, true, false},
		{"approve", StatusGoodToTest, StatusResolved, true, false},
		{"send back", StatusGoodToTest, StatusAssigned, true, false},
		{"dismiss open", StatusInProgress, StatusDismissed, true, false},
		{"same status ack", StatusInProgress, StatusInProgress, false, false},
		{"skip to resolved", StatusNew, StatusResolved, false, true},
		{"reopen resolved", StatusResolved, StatusAssigned, false, true},
		{"dismiss dismissed ack", StatusDismissed, StatusDismissed, false, false},
		{"resolve dismissed", StatusDismissed, StatusResolved, false, true},
		{"back to new", StatusTriaged, StatusNew, false, true},
		{"new to new", StatusNew, StatusNew, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			write, err := PlanTransition(tt.from, tt.to)
			assert.Equal(t, tt.wantWrite, write)
			if tt.wantErr {
				assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidTransition))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, s := range AllStatuses {
		if s.IsTerminal() {
			assert.Empty(t, NextStatuses(s), s)
		} else {
			assert.Contains(t, NextStatuses(s), StatusDismissed, s)
		}
	}
}

func TestNotes(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	block := FormatNote(at, NoteSentBack, "bob", " still crashes \n")
	assert.Equal(t, "[2024-03-05 14:07:09] Sent back by bob:\nstill crashes", block)

	assert.Equal(t, block, AppendNote("", block))
	assert.Equal(t, "first\n\n"+block, AppendNote("first", block))
}

func TestOptionalJSON(t *testing.T) {
	var u BugUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"bug_id":"b1","severity":"High","status":null}`), &u))

	assert.Equal(t, "b1", u.BugID)
	v, ok := u.Severity.Get()
	assert.True(t, ok)
	assert.Equal(t, "High", v)
	assert.False(t, u.Status.Set)
	assert.False(t, u.Category.Set)
	assert.False(t, u.IsEmpty())

	require.NoError(t, json.Unmarshal([]byte(`{"bug_id":"b2","notes":"  "}`), &u))
	assert.True(t, BugUpdate{BugID: "b2", Notes: Some("  ")}.IsEmpty())

	out, err := json.Marshal(Some(3))
	require.NoError(t, err)
	assert.Equal(t, "3", string(out))
	out, err = json.Marshal(Optional[int]{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestBugReport_MarshalJSON(t *testing.T) {
	reported := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bug := BugReport{
		ID:          "b1",
		Reporter:    "carol",
		Title:       "Crash",
		Description: "App crashes",
		Status:      StatusNew,
		ReportedAt:  reported,
		UpdatedAt:   reported,
	}

	data, err := json.Marshal(bug)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["severity"])
	assert.Nil(t, decoded["assigned_to"])
	assert.Nil(t, decoded["assigned_at"])
	assert.Equal(t, "New", decoded["status"])

	bug.Severity = SeverityHigh
	bug.AssignedTo = sql.NullString{String: "alice", Valid: true}
	bug.AssignedAt = sql.NullTime{Time: reported, Valid: true}
	summary := bug.Summary()
	require.NotNil(t, summary.Severity)
	assert.Equal(t, "High", *summary.Severity)
	assert.Equal(t, "alice", *summary.AssignedTo)
	assert.True(t, bug.IsAssignedTo("alice"))
	assert.False(t, bug.IsAssignedTo("bob"))
}

func TestBatchResult(t *testing.T) {
	r := NewBatchResult()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"applied":[],"errors":[],"applied_ids":[],"unchanged":[]}`, string(data))
	assert.Equal(t, 0, r.Count())
}
