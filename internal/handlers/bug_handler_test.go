package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"bugtracker/internal/config"
	"bugtracker/internal/database"
	"bugtracker/internal/docs"
	"bugtracker/internal/observability"
	"bugtracker/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// BugAPITestSuite drives the HTTP API against a real service on a temp SQLite store
type BugAPITestSuite struct {
	suite.Suite
	router *gin.Engine
	db     *database.DB
}

func TestBugAPITestSuite(t *testing.T) {
	suite.Run(t, new(BugAPITestSuite))
}

func (s *BugAPITestSuite) SetupTest() {
	cfg := config.Default()
	cfg.Database.URL = filepath.Join(s.T().TempDir(), "bugs.db")
	cfg.Database.AutoMigrate = true
	cfg.Storage.ScreenshotDir = filepath.Join(s.T().TempDir(), "shots")
	cfg.Server.DefaultActor = "anonymous"

	logger := observability.NewNopLogger()
	db, err := database.NewManager(logger).Open(context.Background(), cfg.Database)
	s.Require().NoError(err)
	s.db = db

	clock := &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := services.NewBugService(db, logger,
		services.WithScreenshotStore(services.NewScreenshotStore(cfg.Storage, logger)),
		services.WithClock(clock.Now),
	)
	s.router = NewRouter(RouterDeps{Config: cfg, BugService: svc, Logger: logger})
}

func (s *BugAPITestSuite) TearDownTest() {
	_ = s.db.Close()
}

func (s *BugAPITestSuite) do(method, path, actor string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set(config.ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *BugAPITestSuite) decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *BugAPITestSuite) submit(title string) string {
	w := s.do(http.MethodPost, "/v1/bugs", "reporter", gin.H{"title": title, "description": "it broke"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return s.decode(w)["bug_id"].(string)
}

func (s *BugAPITestSuite) TestSubmitAndGet() {
	w := s.do(http.MethodPost, "/v1/bugs", "carol", gin.H{
		"title":              "Crash on save",
		"description":        "The editor closes",
		"reproduction_steps": "1. open 2. save",
	})
	s.Require().Equal(http.StatusCreated, w.Code)
	created := s.decode(w)
	id := created["bug_id"].(string)
	s.Contains(created["message"], id)
	s.Equal("New", created["summary"].(map[string]interface{})["status"])

	w = s.do(http.MethodGet, "/v1/bugs/"+id, "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	bug := s.decode(w)
	s.Equal("carol", bug["reporter"])
	s.Equal("New", bug["status"])
	s.Nil(bug["severity"])
	s.Nil(bug["assigned_to"])
	s.Nil(bug["assigned_at"])
	s.Equal("1. open 2. save", bug["reproduction_steps"])
}

func (s *BugAPITestSuite) TestSubmitUsesDefaultActor() {
	w := s.do(http.MethodPost, "/v1/bugs", "", gin.H{"title": "t", "description": "d"})
	s.Require().Equal(http.StatusCreated, w.Code)
	id := s.decode(w)["bug_id"].(string)

	bug := s.decode(s.do(http.MethodGet, "/v1/bugs/"+id, "", nil))
	s.Equal("anonymous", bug["reporter"])
}

func (s *BugAPITestSuite) TestSubmitValidation() {
	w := s.do(http.MethodPost, "/v1/bugs", "carol", gin.H{"description": "no title"})
	s.Equal(http.StatusBadRequest, w.Code)
	body := s.decode(w)
	s.Equal("VALIDATION_FAILED", body["code"])
	s.Contains(body["error"], "title is required")

	w = s.do(http.MethodPost, "/v1/bugs", "carol", gin.H{"title": "   ", "description": "blank title"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("MISSING_REQUIRED_FIELD", s.decode(w)["code"])

	w = s.do(http.MethodPost, "/v1/bugs", "carol", `{"title":`)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *BugAPITestSuite) TestNotFound() {
	w := s.do(http.MethodGet, "/v1/bugs/does-not-exist", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("RECORD_NOT_FOUND", s.decode(w)["code"])

	w = s.do(http.MethodPost, "/v1/bugs/does-not-exist/resolve", "tess", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *BugAPITestSuite) TestSetSeverityTriagesNewBug() {
	id := s.submit("Slow list")

	w := s.do(http.MethodPut, "/v1/bugs/"+id+"/severity", "triager", gin.H{"severity": "bogus"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_FAILED", s.decode(w)["code"])

	w = s.do(http.MethodPut, "/v1/bugs/"+id+"/severity", "triager", gin.H{"severity": "critical"})
	s.Require().Equal(http.StatusOK, w.Code)
	bug := s.decode(w)
	s.Equal("Critical", bug["severity"])
	s.Equal("Triaged", bug["status"])

	w = s.do(http.MethodPut, "/v1/bugs/"+id+"/category", "triager", gin.H{"category": "performance"})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Performance", s.decode(w)["category"])
}

func (s *BugAPITestSuite) TestInvalidTransitionIsConflict() {
	id := s.submit("Wrong move")

	w := s.do(http.MethodPut, "/v1/bugs/"+id+"/status", "triager", gin.H{"status": "Resolved"})
	s.Equal(http.StatusConflict, w.Code)
	s.Equal("INVALID_TRANSITION", s.decode(w)["code"])

	bug := s.decode(s.do(http.MethodGet, "/v1/bugs/"+id, "", nil))
	s.Equal("New", bug["status"])
}

func (s *BugAPITestSuite) TestScenarioAssignAndSendBack() {
	id := s.submit("B1")
	s.Require().Equal(http.StatusOK, s.do(http.MethodPut, "/v1/bugs/"+id+"/severity", "triager", gin.H{"severity": "Critical"}).Code)

	w := s.do(http.MethodPost, "/v1/bugs/assign", "manager", gin.H{"ids": []string{id}, "actor": "alice"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	result := s.decode(w)
	s.Equal(float64(1), result["count"])
	s.Empty(result["errors"])

	bug := s.decode(s.do(http.MethodGet, "/v1/bugs/"+id, "", nil))
	s.Equal("Assigned", bug["status"])
	s.Equal("alice", bug["assigned_to"])
	s.NotNil(bug["assigned_at"])
	s.Equal("Critical", bug["severity"])

	w = s.do(http.MethodPost, "/v1/bugs/progress", "alice", gin.H{"updates": []gin.H{{"bug_id": id, "status": "In Progress", "notes": "looking"}}})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal(float64(1), s.decode(w)["count"])

	w = s.do(http.MethodPost, "/v1/bugs/"+id+"/fix", "alice", gin.H{"notes": "null check added"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("Good-to-Test", s.decode(w)["status"])

	queue := s.decode(s.do(http.MethodGet, "/v1/bugs/testing", "bob", nil))
	s.Equal(float64(1), queue["count"])

	w = s.do(http.MethodPost, "/v1/bugs/"+id+"/send-back", "bob", gin.H{})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("MISSING_REQUIRED_FIELD", s.decode(w)["code"])

	w = s.do(http.MethodPost, "/v1/bugs/"+id+"/send-back", "bob", gin.H{"reason": "still crashes"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	bug = s.decode(w)
	s.Equal("Assigned", bug["status"])
	s.Contains(bug["progress_notes"], "still crashes")
	s.Contains(bug["progress_notes"], "bob")
}

func (s *BugAPITestSuite) TestAssignDefaultsToCaller() {
	id := s.submit("Mine")

	w := s.do(http.MethodPost, "/v1/bugs/assign", "dave", gin.H{"ids": []string{id}})
	s.Require().Equal(http.StatusOK, w.Code)

	mine := s.decode(s.do(http.MethodGet, "/v1/bugs/mine", "dave", nil))
	s.Equal(float64(1), mine["count"])
	first := mine["bugs"].([]interface{})[0].(map[string]interface{})
	s.Equal(id, first["bug_id"])
	s.NotContains(first, "description")

	full := s.decode(s.do(http.MethodGet, "/v1/bugs/mine?view=full", "dave", nil))
	s.Contains(full["bugs"].([]interface{})[0], "description")

	w = s.do(http.MethodGet, "/v1/bugs/mine?view=huge", "dave", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *BugAPITestSuite) TestAssignSchema() {
	w := s.do(http.MethodPost, "/v1/bugs/assign", "dave", gin.H{"ids": []string{}})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("VALIDATION_FAILED", s.decode(w)["code"])
}

func (s *BugAPITestSuite) TestListOpenExcludesTerminal() {
	open := s.submit("open")
	closed := s.submit("closed")
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/v1/bugs/"+closed+"/dismiss", "manager", gin.H{"reason": "duplicate"}).Code)

	list := s.decode(s.do(http.MethodGet, "/v1/bugs", "", nil))
	s.Equal(float64(1), list["count"])
	s.Equal(open, list["bugs"].([]interface{})[0].(map[string]interface{})["bug_id"])

	list = s.decode(s.do(http.MethodGet, "/v1/bugs?status=dismissed", "", nil))
	s.Equal(float64(0), list["count"])

	w := s.do(http.MethodGet, "/v1/bugs?severity=urgent", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("INVALID_INPUT", s.decode(w)["code"])
}

func (s *BugAPITestSuite) TestDismissWithoutBody() {
	id := s.submit("noise")
	w := s.do(http.MethodPost, "/v1/bugs/"+id+"/dismiss", "manager", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Dismissed", s.decode(w)["status"])
}

func (s *BugAPITestSuite) TestDashboardAndAudit() {
	id := s.submit("dash")
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/v1/bugs/assign", "manager", gin.H{"ids": []string{id}, "actor": "erin"}).Code)

	dash := s.decode(s.do(http.MethodGet, "/v1/bugs/dashboard", "manager", nil))
	assignees := dash["assignees"].([]interface{})
	s.Require().Len(assignees, 1)
	s.Equal("erin", assignees[0].(map[string]interface{})["assignee"])
	s.Equal(float64(1), dash["totals"].(map[string]interface{})["assigned"])

	audit := s.decode(s.do(http.MethodGet, "/v1/bugs/audit?limit=5", "manager", nil))
	s.Equal(float64(0), audit["count"])
	s.NotNil(audit["bugs"])
}

func (s *BugAPITestSuite) TestAssignable() {
	a := s.submit("low")
	b := s.submit("critical")
	s.Require().Equal(http.StatusOK, s.do(http.MethodPut, "/v1/bugs/"+a+"/severity", "t", gin.H{"severity": "Low"}).Code)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPut, "/v1/bugs/"+b+"/severity", "t", gin.H{"severity": "Critical"}).Code)

	list := s.decode(s.do(http.MethodGet, "/v1/bugs/assignable", "", nil))
	bugs := list["bugs"].([]interface{})
	s.Require().Len(bugs, 2)
	s.Equal(b, bugs[0].(map[string]interface{})["bug_id"])
	s.Equal(a, bugs[1].(map[string]interface{})["bug_id"])
}

func (s *BugAPITestSuite) TestAIFeedAndBulkUpdate() {
	id := s.submit("for the agent")

	feed := s.decode(s.do(http.MethodGet, "/v1/ai/bugs", "agent", nil))
	s.Equal(float64(1), feed["count"])
	s.Equal([]interface{}{"New", "Triaged"}, feed["statuses"])
	s.Nil(feed["severity"])

	w := s.do(http.MethodPost, "/v1/ai/bugs/updates", "agent", gin.H{"updates": []gin.H{
		{"bug_id": id, "severity": "high", "notes": "looks like a race"},
		{"bug_id": "missing-id", "status": "Triaged"},
	}})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	result := s.decode(w)
	s.Equal(float64(1), result["count"])
	s.Len(result["errors"], 1)
	itemErr := result["errors"].([]interface{})[0].(map[string]interface{})
	s.Equal("missing-id", itemErr["bug_id"])
	s.Equal("RECORD_NOT_FOUND", itemErr["code"])

	bug := s.decode(s.do(http.MethodGet, "/v1/bugs/"+id, "", nil))
	s.Equal("High", bug["severity"])
	s.Equal("Triaged", bug["status"])
	s.Contains(bug["progress_notes"], "looks like a race")

	w = s.do(http.MethodGet, "/v1/ai/bugs?status=New,bogus", "agent", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *BugAPITestSuite) TestAIBulkUpdateSchema() {
	w := s.do(http.MethodPost, "/v1/ai/bugs/updates", "agent", gin.H{"updates": []gin.H{{"bug_id": "x", "priority": 1}}})
	s.Equal(http.StatusBadRequest, w.Code)
	body := s.decode(w)
	s.Equal("VALIDATION_FAILED", body["code"])
	s.Contains(body["details"], "schema validation failed")
}

func (s *BugAPITestSuite) TestExportLinearDisabled() {
	id := s.submit("export me")
	w := s.do(http.MethodPost, "/v1/bugs/"+id+"/linear", "manager", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal("INTEGRATION_DISABLED", s.decode(w)["code"])
}

func (s *BugAPITestSuite) TestDocs() {
	w := s.do(http.MethodGet, "/v1/docs/bug-report?format=html", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Type"), "text/html")
	s.Contains(w.Body.String(), "<h1")

	w = s.do(http.MethodGet, "/v1/docs/ai-resolver", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Type"), "text/markdown")

	w = s.do(http.MethodGet, "/v1/docs/nope", "", nil)
	s.Equal(http.StatusNotFound, w.Code)

	list := s.decode(s.do(http.MethodGet, "/v1/docs", "", nil))
	s.ElementsMatch([]interface{}{"ai-resolver", "api", "bug-report"}, list["guides"])
}

func (s *BugAPITestSuite) TestHealthVersionAndRoutes() {
	w := s.do(http.MethodGet, "/health", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("ok", s.decode(w)["status"])

	w = s.do(http.MethodGet, "/v1/version", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("bugtracker", s.decode(w)["service"])

	w = s.do(http.MethodGet, "/v1/routes", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"/v1/bugs/:id/send-back"`)

	w = s.do(http.MethodGet, "/v1/nothing-here", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

// TestEveryRouteIsDocumented keeps the API reference guide in step with the router
func (s *BugAPITestSuite) TestEveryRouteIsDocumented() {
	guide, err := docs.Markdown(docs.APIRef)
	s.Require().NoError(err)

	w := s.do(http.MethodGet, "/v1/routes", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var listing struct {
		Routes []RouteInfo `json:"routes"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &listing))
	s.Require().NotEmpty(listing.Routes)

	param := regexp.MustCompile(`:(\w+)`)
	for _, r := range listing.Routes {
		entry := r.Method + " " + param.ReplaceAllString(r.Path, "{$1}")
		s.Contains(guide, "`"+entry+"`", "route %s is missing from the API guide", entry)
	}
}

func (s *BugAPITestSuite) TestHealthReportsStoreDown() {
	s.Require().NoError(s.db.Close())

	w := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal("DATABASE_CONNECTION_ERROR", s.decode(w)["code"])
}

func TestParseLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := map[string]int{
		"/x":            0,
		"/x?limit=abc":  0,
		"/x?limit=-3":   0,
		"/x?limit=0":    0,
		"/x?limit=15":   15,
		"/x?limit=5000": 5000,
	}
	for target, want := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, target, nil)
		require.Equal(t, want, ParseLimit(c), target)
	}
}
