package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bugtracker/internal/config"
	"bugtracker/internal/database"
	"bugtracker/internal/models"
	"bugtracker/internal/observability"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newSQLiteTestDB opens a migrated store in a temp directory
func newSQLiteTestDB(t *testing.T) *database.DB {
	t.Helper()
	cfg := config.Config{Database: config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		URL:         filepath.Join(t.TempDir(), "bugs.db"),
		AutoMigrate: true,
	}}
	require.NoError(t, cfg.Validate())

	db, err := database.NewManager(observability.NewNopLogger()).Open(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// stepClock advances one second per reading so timestamps are strictly ordered
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// mockNotifier implements serviceinterfaces.Notifier for testing
type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyAssigned(ctx context.Context, bug *models.BugReport) error {
	args := m.Called(ctx, bug)
	return args.Error(0)
}

func (m *mockNotifier) NotifySentBack(ctx context.Context, bug *models.BugReport, tester, reason string) error {
	args := m.Called(ctx, bug, tester, reason)
	return args.Error(0)
}

func (m *mockNotifier) IsEnabled() bool {
	args := m.Called()
	return args.Bool(0)
}

// mockExporter implements serviceinterfaces.IssueExporter for testing
type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) ExportBug(ctx context.Context, bug *models.BugReport) (*models.ExternalIssue, error) {
	args := m.Called(ctx, bug)
	issue, _ := args.Get(0).(*models.ExternalIssue)
	return issue, args.Error(1)
}

func (m *mockExporter) IsEnabled() bool {
	args := m.Called()
	return args.Bool(0)
}
