// Package refresh implements the per-provider polling state machine. A
// machine owns when its provider's usage data is fetched, shown as loading,
// retried after failure, and force-recovered after a fetch hangs; it also
// resolves the single-click/double-click ambiguity of the status display.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quotabar/quotabar/internal/logger"
	"github.com/quotabar/quotabar/internal/models"
)

// Phase is the machine's externally visible state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseError
)

// String returns the phase name used in logs and the UI.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// ErrFetchTimeout marks a fetch that never completed before the watchdog
// deadline fired.
var ErrFetchTimeout = errors.New("refresh: fetch timed out")

// FetchFunc retrieves a fresh snapshot for one provider. It runs on its own
// goroutine; the context carries the fetch deadline.
type FetchFunc func(ctx context.Context) (*models.QuotaSnapshot, error)

// Default timings for the machine. All of them are overridable through
// Config so deployments can tune them without a rebuild.
const (
	DefaultFetchTimeout   = 15 * time.Second
	DefaultRetryDelay     = 2 * time.Second
	DefaultDebounceWindow = 300 * time.Millisecond
	DefaultFocusDelay     = 2 * time.Second
	DefaultMaxAttempts    = 3
)

// Config holds the machine's timing knobs. Zero fields fall back to the
// package defaults.
type Config struct {
	// FetchTimeout bounds one fetch attempt; the watchdog armed on entering
	// Loading fires after this long and force-resets the machine.
	FetchTimeout time.Duration
	// RetryDelay is the fixed pause between failed attempts.
	RetryDelay time.Duration
	// DebounceWindow is how long a first click waits for a second one.
	DebounceWindow time.Duration
	// FocusDelay is the pause between a window-focus event and the
	// stuck-state check.
	FocusDelay time.Duration
	// StuckThreshold is how old a Loading state must be before the focus
	// check treats it as stuck. Defaults to FetchTimeout.
	StuckThreshold time.Duration
	// MaxAttempts is the total number of fetch attempts per cycle,
	// including the first.
	MaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = DefaultDebounceWindow
	}
	if c.FocusDelay <= 0 {
		c.FocusDelay = DefaultFocusDelay
	}
	if c.StuckThreshold <= 0 {
		c.StuckThreshold = c.FetchTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// State is a point-in-time copy of the fields the UI renders from.
type State struct {
	Phase         Phase
	Attempts      int
	UserInitiated bool
	Err           error
}

// Machine drives refresh scheduling for a single provider. All exported
// methods are safe for concurrent use. Timer callbacks re-enter through the
// same mutex; at most one timer of each kind is ever live.
type Machine struct {
	mu            sync.RWMutex
	provider      string
	cfg           Config
	fetch         FetchFunc
	phase         Phase
	generation    uint64
	attempts      int
	userInitiated bool
	loadingSince  time.Time
	lastSnapshot  *models.QuotaSnapshot
	lastErr       error
	clickWaiting  bool
	clickTimer    *time.Timer
	retryTimer    *time.Timer
	timeoutTimer  *time.Timer
	focusTimer    *time.Timer
	eventChan     chan Event
	disposed      bool
}

// NewMachine builds a machine for one provider. fetch must not be nil.
func NewMachine(provider string, fetch FetchFunc, cfg Config) *Machine {
	return &Machine{
		provider:  provider,
		cfg:       cfg.withDefaults(),
		fetch:     fetch,
		eventChan: make(chan Event, 100),
	}
}

// Events returns the machine's notification channel. It is never closed;
// when full, the oldest pending event is dropped to make room.
func (m *Machine) Events() <-chan Event {
	return m.eventChan
}

// Provider returns the provider id this machine drives.
func (m *Machine) Provider() string {
	return m.provider
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// State returns a copy of the externally relevant state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return State{
		Phase:         m.phase,
		Attempts:      m.attempts,
		UserInitiated: m.userInitiated,
		Err:           m.lastErr,
	}
}

// Snapshot returns a copy of the last committed snapshot, or nil if no
// fetch has ever succeeded.
func (m *Machine) Snapshot() *models.QuotaSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSnapshot.Clone()
}

// Refresh starts a fetch cycle unless one is already in flight. A request
// made while Loading is dropped, not queued.
func (m *Machine) Refresh(userInitiated bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || m.phase == PhaseLoading {
		return
	}
	m.startFetchLocked(userInitiated, 1)
}

// Click resolves the refresh/settings ambiguity of a status click: the
// first click arms the debounce window, a second click inside it opens
// settings, silence resolves to a user-initiated refresh. Clicks are
// ignored entirely while a fetch is in flight.
func (m *Machine) Click() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || m.phase == PhaseLoading {
		return
	}

	if m.clickWaiting {
		m.clickWaiting = false
		m.stopTimersLocked(&m.clickTimer)
		m.sendEventLocked(Event{Type: EventOpenSettings})
		return
	}

	m.clickWaiting = true
	m.stopTimersLocked(&m.clickTimer)
	m.clickTimer = time.AfterFunc(m.cfg.DebounceWindow, m.handleClickTimeout)
}

// WindowFocused schedules a stuck-state check shortly after the window
// regains focus. This watchdog is independent of the fetch deadline timer;
// it covers the case where timers themselves were suspended, e.g. by
// system sleep.
func (m *Machine) WindowFocused() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.stopTimersLocked(&m.focusTimer)
	m.focusTimer = time.AfterFunc(m.cfg.FocusDelay, m.handleFocusCheck)
}

// Dispose permanently stops the machine. It is idempotent, clears every
// timer, and orphans any in-flight fetch. The event channel stays open but
// receives nothing further.
func (m *Machine) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	m.generation++
	m.clickWaiting = false
	m.phase = PhaseIdle
	m.stopTimersLocked(&m.clickTimer, &m.retryTimer, &m.timeoutTimer, &m.focusTimer)
}

// startFetchLocked enters Loading and launches a fetch attempt. Bumping the
// generation here orphans any older in-flight fetch; its late result will
// fail the generation check and be discarded. The caller holds mu.
func (m *Machine) startFetchLocked(userInitiated bool, attempt int) {
	m.stopTimersLocked(&m.retryTimer, &m.timeoutTimer)

	m.generation++
	gen := m.generation
	m.phase = PhaseLoading
	m.attempts = attempt
	m.userInitiated = userInitiated
	m.loadingSince = time.Now()

	m.timeoutTimer = time.AfterFunc(m.cfg.FetchTimeout, func() {
		m.handleTimeout(gen)
	})

	m.sendEventLocked(Event{Type: EventStateChanged})

	go m.runFetch(gen)
}

// runFetch executes one fetch attempt and commits the result only if this
// generation still owns the machine.
func (m *Machine) runFetch(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.FetchTimeout)
	defer cancel()

	snapshot, err := m.fetch(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || gen != m.generation {
		// A watchdog or a newer cycle took over while we were out.
		return
	}
	m.stopTimersLocked(&m.timeoutTimer)

	if err != nil {
		m.handleFailureLocked(gen, err)
		return
	}

	m.phase = PhaseIdle
	m.attempts = 0
	m.userInitiated = false
	m.lastErr = nil
	m.lastSnapshot = snapshot
	m.sendEventLocked(Event{Type: EventSnapshot, Snapshot: snapshot})
}

// handleFailureLocked applies the retry policy after a failed attempt. The
// caller holds mu.
func (m *Machine) handleFailureLocked(gen uint64, err error) {
	m.lastErr = err

	if m.attempts >= m.cfg.MaxAttempts {
		// Retries exhausted: settle back to Idle with no data update so the
		// last-known display persists.
		wasUser := m.userInitiated
		logger.Warn("refresh giving up", "provider", m.provider, "attempts", m.attempts, "error", err)
		m.phase = PhaseIdle
		m.attempts = 0
		m.userInitiated = false
		m.sendEventLocked(Event{Type: EventStateChanged, Error: err})
		if wasUser {
			m.sendEventLocked(Event{Type: EventRefreshFailed, Error: err})
		}
		return
	}

	m.phase = PhaseError
	logger.Debug("refresh attempt failed", "provider", m.provider, "attempt", m.attempts, "error", err)
	m.sendEventLocked(Event{Type: EventStateChanged, Error: err})

	m.stopTimersLocked(&m.retryTimer)
	m.retryTimer = time.AfterFunc(m.cfg.RetryDelay, func() {
		m.handleRetry(gen)
	})
}

// handleRetry fires after the retry delay and starts the next attempt if
// the failed cycle is still the current one.
func (m *Machine) handleRetry(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || gen != m.generation || m.phase != PhaseError {
		return
	}
	m.startFetchLocked(m.userInitiated, m.attempts+1)
}

// handleTimeout fires when a Loading cycle outlives the fetch deadline: the
// machine resets to Idle and bumps the generation so the hung fetch's
// eventual result is not applied.
func (m *Machine) handleTimeout(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || gen != m.generation || m.phase != PhaseLoading {
		return
	}

	wasUser := m.userInitiated
	m.generation++
	m.phase = PhaseIdle
	m.attempts = 0
	m.userInitiated = false
	m.lastErr = ErrFetchTimeout
	logger.Warn("refresh stuck past deadline, resetting", "provider", m.provider)
	m.sendEventLocked(Event{Type: EventStateChanged, Error: ErrFetchTimeout})
	if wasUser {
		m.sendEventLocked(Event{Type: EventRefreshFailed, Error: ErrFetchTimeout})
	}
}

// handleClickTimeout fires when the debounce window closes with exactly one
// click registered.
func (m *Machine) handleClickTimeout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || !m.clickWaiting {
		return
	}
	m.clickWaiting = false
	if m.phase == PhaseLoading {
		return
	}
	m.startFetchLocked(true, 1)
}

// handleFocusCheck force-recovers a machine still Loading past the stuck
// threshold, then retries in the background.
func (m *Machine) handleFocusCheck() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || m.phase != PhaseLoading {
		return
	}
	if time.Since(m.loadingSince) <= m.cfg.StuckThreshold {
		return
	}
	logger.Warn("refresh still loading after focus, recovering", "provider", m.provider)
	m.startFetchLocked(false, 1)
}

// stopTimersLocked stops and clears the given timers. The caller holds mu.
// Clearing before re-arming keeps at most one live timer of each kind.
func (m *Machine) stopTimersLocked(timers ...**time.Timer) {
	for _, t := range timers {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

// sendEventLocked sends an event without blocking. The caller holds mu.
func (m *Machine) sendEventLocked(event Event) {
	event.Provider = m.provider
	event.Phase = m.phase
	select {
	case m.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-m.eventChan:
		default:
		}
		select {
		case m.eventChan <- event:
		default:
		}
	}
}
