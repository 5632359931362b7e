package refresh

import "github.com/quotabar/quotabar/internal/models"

// EventType defines the type of machine event.
type EventType int

const (
	// EventStateChanged fires on every phase transition.
	EventStateChanged EventType = iota
	// EventSnapshot fires when a fetch completes and its snapshot is
	// committed.
	EventSnapshot
	// EventOpenSettings fires when a click pair resolves to the settings
	// action.
	EventOpenSettings
	// EventRefreshFailed fires only for user-visible failures: a manual
	// refresh that exhausted its retries or was reset by the watchdog.
	// Background failures never produce it.
	EventRefreshFailed
)

// Event is one machine notification. Provider and Phase are filled in by
// the machine at send time.
type Event struct {
	Type     EventType
	Error    error
	Snapshot *models.QuotaSnapshot
	Provider string
	Phase    Phase
}
