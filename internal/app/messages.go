package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/services"
)

// TickMsg is sent periodically to trigger state refresh.
type TickMsg struct {
	Time time.Time
}

// InitialLoadCompleteMsg signals that initial data loading is complete.
type InitialLoadCompleteMsg struct{}

// SnapshotsLoadedMsg carries the snapshot and credential state for all
// providers, loaded at startup.
type SnapshotsLoadedMsg struct {
	Snapshots      map[string]*models.QuotaSnapshot
	HasCredentials map[string]bool
}

// RefreshRequestedMsg asks the service manager for a refresh.
type RefreshRequestedMsg struct {
	Provider string // empty means all providers
}

// AddNotificationMsg requests adding a new notification.
type AddNotificationMsg struct {
	Type     NotificationType
	Message  string
	Duration time.Duration
}

// RemoveNotificationMsg requests removal of a notification.
type RemoveNotificationMsg struct {
	ID string
}

// ClearNotificationsMsg requests clearing all notifications.
type ClearNotificationsMsg struct{}

// NotificationAddedMsg confirms a notification was added.
type NotificationAddedMsg struct {
	ID string
}

// ServiceEventMsg wraps a service event from the service manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// ErrorMsg represents a general error.
type ErrorMsg struct {
	Error   error
	Context string
}

// TabSwitchMsg requests switching to a specific tab.
type TabSwitchMsg struct {
	Tab TabID
}

// ToggleHelpMsg toggles the help display.
type ToggleHelpMsg struct{}

// SubscriptionEventMsg is the callback wrapper for service subscription.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ClearExpiredNotificationsMsg triggers clearing of expired notifications.
type ClearExpiredNotificationsMsg struct{}

// DelayedMsg wraps a message to be sent after a delay.
type DelayedMsg struct {
	Delay time.Duration
	Msg   tea.Msg
}

// SelectedProviderChangedMsg signals that the selected provider changed.
type SelectedProviderChangedMsg struct {
	Index    int
	Provider string
}
