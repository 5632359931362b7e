package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/services"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// QuickNotificationDuration is for brief notifications.
	QuickNotificationDuration = 3 * time.Second

	// LongNotificationDuration is for important notifications.
	LongNotificationDuration = 10 * time.Second
)

// tickCmd returns a command that sends a TickMsg after the specified interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// defaultTickCmd returns a command that sends a TickMsg after the default interval.
func defaultTickCmd() tea.Cmd {
	return tickCmd(DefaultTickInterval)
}

// loadSnapshotsCmd returns a command that loads the current snapshot and
// credential state for every provider.
func loadSnapshotsCmd(mgr *services.Manager) tea.Cmd {
	return func() tea.Msg {
		snapshots := make(map[string]*models.QuotaSnapshot)
		creds := make(map[string]bool)
		if mgr == nil {
			return SnapshotsLoadedMsg{Snapshots: snapshots, HasCredentials: creds}
		}
		for _, id := range mgr.ProviderIDs() {
			snapshots[id] = mgr.Snapshot(id)
			creds[id] = mgr.HasCredential(id)
		}
		return SnapshotsLoadedMsg{
			Snapshots:      snapshots,
			HasCredentials: creds,
		}
	}
}

// refreshProviderCmd returns a command that triggers a user-initiated
// refresh for one provider, or all providers when id is empty.
func refreshProviderCmd(mgr *services.Manager, id string) tea.Cmd {
	return func() tea.Msg {
		if mgr == nil {
			return nil
		}
		if id == "" {
			mgr.RefreshAll(true)
		} else {
			mgr.Refresh(id, true)
		}
		return nil
	}
}

// subscribeToServicesCmd returns a command that subscribes to service events.
func subscribeToServicesCmd(mgr *services.Manager) tea.Cmd {
	ch, _ := mgr.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

// waitForServiceEventCmd returns a command that waits for the next service event.
func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// WaitForServiceEvent is the public version for use in models.
func WaitForServiceEvent(ch <-chan services.ServiceEvent) tea.Cmd {
	return services.WaitForEvent(ch)
}

// clearNotificationCmd returns a command that removes a notification after a delay.
func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}

// notifySuccessCmd returns a command that adds a success notification.
func notifySuccessCmd(message string) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{
			Type:     NotificationSuccess,
			Message:  message,
			Duration: DefaultNotificationDuration,
		}
	}
}

// notifyErrorCmd returns a command that adds an error notification.
func notifyErrorCmd(message string) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{
			Type:     NotificationError,
			Message:  message,
			Duration: LongNotificationDuration,
		}
	}
}

// notifyWarningCmd returns a command that adds a warning notification.
func notifyWarningCmd(message string) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{
			Type:     NotificationWarning,
			Message:  message,
			Duration: DefaultNotificationDuration,
		}
	}
}

// notifyInfoCmd returns a command that adds an info notification.
func notifyInfoCmd(message string) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{
			Type:     NotificationInfo,
			Message:  message,
			Duration: QuickNotificationDuration,
		}
	}
}

// delayedCmd returns a command that sends a message after a delay.
func delayedCmd(delay time.Duration, msg tea.Msg) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return msg
	})
}

// batchCmds combines multiple commands into one.
func batchCmds(cmds ...tea.Cmd) tea.Cmd {
	return tea.Batch(cmds...)
}

// Commands provides a public interface to the command functions.
type Commands struct {
	manager *services.Manager
}

// NewCommands creates a new Commands instance.
func NewCommands(mgr *services.Manager) *Commands {
	return &Commands{manager: mgr}
}

// Tick returns a tick command with the specified interval.
func (c *Commands) Tick(interval time.Duration) tea.Cmd {
	return tickCmd(interval)
}

// DefaultTick returns a tick command with the default interval.
func (c *Commands) DefaultTick() tea.Cmd {
	return defaultTickCmd()
}

// LoadSnapshots returns a command that loads provider snapshots.
func (c *Commands) LoadSnapshots() tea.Cmd {
	return loadSnapshotsCmd(c.manager)
}

// RefreshProvider returns a command that refreshes one provider.
func (c *Commands) RefreshProvider(id string) tea.Cmd {
	return refreshProviderCmd(c.manager, id)
}

// RefreshAll returns a command that refreshes all providers.
func (c *Commands) RefreshAll() tea.Cmd {
	return refreshProviderCmd(c.manager, "")
}

// SubscribeToServices returns a command that subscribes to service events.
func (c *Commands) SubscribeToServices() tea.Cmd {
	return subscribeToServicesCmd(c.manager)
}

// NotifySuccess returns a command that adds a success notification.
func (c *Commands) NotifySuccess(message string) tea.Cmd {
	return notifySuccessCmd(message)
}

// NotifyError returns a command that adds an error notification.
func (c *Commands) NotifyError(message string) tea.Cmd {
	return notifyErrorCmd(message)
}

// NotifyWarning returns a command that adds a warning notification.
func (c *Commands) NotifyWarning(message string) tea.Cmd {
	return notifyWarningCmd(message)
}

// NotifyInfo returns a command that adds an info notification.
func (c *Commands) NotifyInfo(message string) tea.Cmd {
	return notifyInfoCmd(message)
}

// ClearNotification returns a command that removes a notification after a delay.
func (c *Commands) ClearNotification(id string, delay time.Duration) tea.Cmd {
	return clearNotificationCmd(id, delay)
}

// Quit returns a command that quits the application.
func (c *Commands) Quit() tea.Cmd {
	return tea.Quit
}

// Delayed returns a command that sends a message after a delay.
func (c *Commands) Delayed(delay time.Duration, msg tea.Msg) tea.Cmd {
	return delayedCmd(delay, msg)
}

// Batch combines multiple commands into one.
func (c *Commands) Batch(cmds ...tea.Cmd) tea.Cmd {
	return batchCmds(cmds...)
}
