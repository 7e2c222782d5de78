// Package serviceinterfaces defines service interfaces for dependency injection and testing.
package serviceinterfaces

import (
	"context"

	"bugtracker/internal/models"
)

// Notifier tells people about lifecycle events that need their attention
type Notifier interface {
	// NotifyAssigned tells the assignee a bug is now theirs
	NotifyAssigned(ctx context.Context, bug *models.BugReport) error

	// NotifySentBack tells the assignee a tester rejected the fix
	NotifySentBack(ctx context.Context, bug *models.BugReport, tester, reason string) error

	// IsEnabled returns whether notifications are sent at all
	IsEnabled() bool
}
