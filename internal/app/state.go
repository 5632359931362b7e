// Package app provides the main Bubble Tea application model and state management.
package app

import (
	"sync"
	"time"

	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/refresh"
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
	// NotificationLoading represents a loading notification with spinner.
	NotificationLoading
)

const (
	// LoadingNotificationID is the fixed ID for loading notifications.
	LoadingNotificationID = "__loading__"
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Notification represents a user-facing notification message.
type Notification struct {
	ID        string
	Type      NotificationType
	Message   string
	CreatedAt time.Time
	Duration  time.Duration
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired() bool {
	if n.Duration <= 0 {
		return false
	}
	return time.Since(n.CreatedAt) > n.Duration
}

// State holds per-provider data shared by all tabs.
type State struct {
	mu sync.RWMutex

	providers      []string
	snapshots      map[string]*models.QuotaSnapshot
	refreshStates  map[string]refresh.State
	hasCredential  map[string]bool
	lastUpdated    map[string]time.Time
	selectedIndex  int
	initialLoading bool

	notifications   []Notification
	notificationSeq int
}

// NewState creates empty shared state for the given provider order.
func NewState(providers []string) *State {
	return &State{
		providers:      providers,
		snapshots:      make(map[string]*models.QuotaSnapshot),
		refreshStates:  make(map[string]refresh.State),
		hasCredential:  make(map[string]bool),
		lastUpdated:    make(map[string]time.Time),
		notifications:  make([]Notification, 0),
		initialLoading: true,
	}
}

// Providers returns the provider ids in display order.
func (s *State) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.providers))
	copy(out, s.providers)
	return out
}

// ProviderCount returns the number of tracked providers.
func (s *State) ProviderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.providers)
}

// SetSnapshot records the latest snapshot for a provider.
func (s *State) SetSnapshot(provider string, snapshot *models.QuotaSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[provider] = snapshot
	s.lastUpdated[provider] = time.Now()
	s.initialLoading = false
}

// Snapshot returns the latest snapshot for a provider, or nil.
func (s *State) Snapshot(provider string) *models.QuotaSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[provider]
}

// SetRefreshState records a provider's refresh machine state.
func (s *State) SetRefreshState(provider string, st refresh.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStates[provider] = st
}

// RefreshState returns a provider's refresh machine state.
func (s *State) RefreshState(provider string) refresh.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshStates[provider]
}

// AnyLoading reports whether any provider has a fetch in flight.
func (s *State) AnyLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.refreshStates {
		if st.Phase == refresh.PhaseLoading {
			return true
		}
	}
	return false
}

// IsInitialLoading returns true until the first snapshot arrives.
func (s *State) IsInitialLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialLoading
}

// SetInitialLoaded marks initial loading as complete.
func (s *State) SetInitialLoaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialLoading = false
}

// SetHasCredential records whether a provider has a stored credential.
func (s *State) SetHasCredential(provider string, has bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasCredential[provider] = has
}

// HasCredential reports whether a provider has a stored credential.
func (s *State) HasCredential(provider string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasCredential[provider]
}

// SelectedIndex returns the currently selected provider index.
func (s *State) SelectedIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedIndex
}

// SetSelectedIndex updates the selected provider index, clamped to range.
func (s *State) SetSelectedIndex(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 {
		idx = 0
	}
	if n := len(s.providers); n > 0 && idx >= n {
		idx = n - 1
	}
	s.selectedIndex = idx
}

// SelectedProvider returns the provider id at the selected index.
func (s *State) SelectedProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.providers) == 0 {
		return ""
	}
	idx := s.selectedIndex
	if idx < 0 || idx >= len(s.providers) {
		idx = 0
	}
	return s.providers[idx]
}

// LastUpdated returns when a provider last produced a snapshot.
func (s *State) LastUpdated(provider string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated[provider]
}

// TimeSinceUpdate returns the duration since any provider updated.
func (s *State) TimeSinceUpdate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest time.Time
	for _, t := range s.lastUpdated {
		if t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		return 0
	}
	return time.Since(latest)
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := time.Now().Format("20060102150405") + "-" + string(rune('A'+s.notificationSeq%26))

	notification := Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  duration,
	}

	s.notifications = append(s.notifications, notification)

	// Keep only the last 10 notifications
	if len(s.notifications) > 10 {
		s.notifications = s.notifications[len(s.notifications)-10:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}
	s.notifications = active
}

// GetNotifications returns a copy of all active notifications.
func (s *State) GetNotifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Clear expired inline when reading
	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired() {
			active = append(active, n)
		}
	}

	return active
}

// ClearAllNotifications removes all notifications.
func (s *State) ClearAllNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]Notification, 0)
}

// SetLoadingNotification sets a loading notification message.
func (s *State) SetLoadingNotification(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications[i].Message = message
			return
		}
	}

	s.notifications = append(s.notifications, Notification{
		ID:        LoadingNotificationID,
		Type:      NotificationLoading,
		Message:   message,
		CreatedAt: time.Now(),
		Duration:  0,
	})
}

// ClearLoadingNotification removes the loading notification.
func (s *State) ClearLoadingNotification() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == LoadingNotificationID {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}
