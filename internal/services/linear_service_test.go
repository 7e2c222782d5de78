package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bugtracker/internal/config"
	"bugtracker/internal/models"
	"bugtracker/internal/observability"
	contextutils "bugtracker/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func newLinearTestService(t *testing.T, team string, handler http.HandlerFunc) *LinearService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	cfg.Linear = config.LinearConfig{Enabled: true, APIKey: "linear-token", TeamID: team}
	return NewLinearServiceWithURL(cfg, observability.NewNopLogger(), server.URL)
}

func linearTestBug() *models.BugReport {
	return &models.BugReport{
		ID:                "0b7f4f0e-1111-4222-8333-444455556666",
		Reporter:          "carol",
		Title:             "Crash on save",
		Description:       "App crashes when saving",
		ReproductionSteps: sql.NullString{String: "1. open\n2. save", Valid: true},
		Severity:          models.SeverityHigh,
		Category:          models.CategoryCrash,
		Status:            models.StatusTriaged,
		ReportedAt:        time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestLinearService_ExportBug_ByTeamName(t *testing.T) {
	var created graphQLRequest
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "linear-token", r.Header.Get("Authorization"))
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if strings.Contains(req.Query, "teams") {
			writeJSON(t, w, map[string]interface{}{"data": map[string]interface{}{"teams": map[string]interface{}{
				"nodes": []map[string]string{
					{"id": "team-other", "name": "Other", "key": "OTH"},
					{"id": "team-eng", "name": "Engineering", "key": "ENG"},
				},
			}}})
			return
		}
		created = req
		writeJSON(t, w, map[string]interface{}{"data": map[string]interface{}{"issueCreate": map[string]interface{}{
			"success": true,
			"issue":   map[string]string{"id": "uuid-1", "identifier": "ENG-42", "title": "Crash on save", "url": "https://linear.app/acme/issue/ENG-42"},
		}}})
	}

	service := newLinearTestService(t, "engineering", handler)
	require.True(t, service.IsEnabled())

	issue, err := service.ExportBug(context.Background(), linearTestBug())
	require.NoError(t, err)
	assert.Equal(t, "ENG-42", issue.ID)
	assert.Equal(t, "https://linear.app/acme/issue/ENG-42", issue.URL)

	input, ok := created.Variables["input"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "team-eng", input["teamId"])
	assert.Equal(t, float64(2), input["priority"])
	assert.Contains(t, input["description"], "## Steps to reproduce")
	assert.Contains(t, input["description"], "Category: Crash")
}

func TestLinearService_ExportBug_TeamUUIDSkipsLookup(t *testing.T) {
	teamID := "9cfb482a-81e3-4154-b5b9-2c805e70a02d"
	calls := 0
	handler := func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Query, "issueCreate")
		writeJSON(t, w, map[string]interface{}{"data": map[string]interface{}{"issueCreate": map[string]interface{}{
			"success": true,
			"issue":   map[string]string{"id": "uuid-2", "url": "https://linear.app/acme/issue/uuid-2"},
		}}})
	}

	service := newLinearTestService(t, teamID, handler)
	issue, err := service.ExportBug(context.Background(), linearTestBug())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "uuid-2", issue.ID, "falls back to the raw id without an identifier")
}

func TestLinearService_Errors(t *testing.T) {
	teamID := "9cfb482a-81e3-4154-b5b9-2c805e70a02d"

	t.Run("graphql error", func(t *testing.T) {
		service := newLinearTestService(t, teamID, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]interface{}{"errors": []map[string]string{{"message": "bad input"}}})
		})
		_, err := service.ExportBug(context.Background(), linearTestBug())
		assert.True(t, contextutils.IsError(err, contextutils.ErrIntegrationFailed))
		assert.Contains(t, err.Error(), "bad input")
	})

	t.Run("http status", func(t *testing.T) {
		service := newLinearTestService(t, teamID, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := service.ExportBug(context.Background(), linearTestBug())
		assert.True(t, contextutils.IsError(err, contextutils.ErrIntegrationFailed))
	})

	t.Run("unknown team", func(t *testing.T) {
		service := newLinearTestService(t, "nope", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]interface{}{"data": map[string]interface{}{"teams": map[string]interface{}{"nodes": []interface{}{}}}})
		})
		_, err := service.ExportBug(context.Background(), linearTestBug())
		assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
	})

	t.Run("disabled", func(t *testing.T) {
		service := NewLinearService(&config.Config{}, observability.NewNopLogger())
		assert.False(t, service.IsEnabled())
		_, err := service.ExportBug(context.Background(), linearTestBug())
		assert.True(t, contextutils.IsError(err, contextutils.ErrIntegrationDisabled))
	})
}

func TestIssueDescription(t *testing.T) {
	bug := linearTestBug()
	bug.LogContext = sql.NullString{String: "panic: nil map", Valid: true}
	desc := issueDescription(bug)
	assert.True(t, strings.HasPrefix(desc, "App crashes when saving"))
	assert.Contains(t, desc, "```\npanic: nil map\n```")
	assert.Contains(t, desc, "Reporter: carol")
	assert.Contains(t, desc, "Reported: 2024-03-01 09:00:00")
}
