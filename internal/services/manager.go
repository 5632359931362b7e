// Package services wires the per-provider refresh machines to the
// credential store, snapshot history, relay client and desktop notifier,
// and fans machine events out to UI subscribers.
package services

import (
	"fmt"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gen2brain/beeep"

	"github.com/quotabar/quotabar/internal/config"
	"github.com/quotabar/quotabar/internal/credentials"
	"github.com/quotabar/quotabar/internal/db"
	"github.com/quotabar/quotabar/internal/logger"
	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/protoscan"
	"github.com/quotabar/quotabar/internal/providers"
	"github.com/quotabar/quotabar/internal/providers/antigravity"
	"github.com/quotabar/quotabar/internal/providers/cursor"
	"github.com/quotabar/quotabar/internal/providers/trae"
	"github.com/quotabar/quotabar/internal/refresh"
	"github.com/quotabar/quotabar/internal/relay"
)

type (
	// SnapshotEvent is emitted when a provider commits a fresh snapshot.
	SnapshotEvent struct {
		Provider string
		Snapshot *models.QuotaSnapshot
	}

	// RefreshStateEvent is emitted on every machine phase transition.
	RefreshStateEvent struct {
		Provider string
		State    refresh.State
	}

	// SettingsRequestedEvent is emitted when a status click pair resolves
	// to the settings action.
	SettingsRequestedEvent struct {
		Provider string
	}

	// RefreshFailedEvent is emitted only for user-visible failures: a
	// manual refresh that exhausted its retries or hit the watchdog.
	RefreshFailedEvent struct {
		Provider string
		Error    error
	}

	// CredentialsChangedEvent is emitted when the credential store changes.
	CredentialsChangedEvent struct{}

	// ErrorEvent is emitted when a background service fails.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (SnapshotEvent) isServiceEvent()           {}
func (RefreshStateEvent) isServiceEvent()       {}
func (SettingsRequestedEvent) isServiceEvent()  {}
func (RefreshFailedEvent) isServiceEvent()      {}
func (CredentialsChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()              {}

// pruneInterval is how often old history rows are swept.
const pruneInterval = 6 * time.Hour

// Manager owns one refresh machine per provider plus the shared services
// around them. Machine events are routed here: snapshots are persisted,
// relayed and broadcast; everything else is forwarded to subscribers.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	creds       *credentials.Service
	database    *db.DB
	relayClient *relay.Client
	providers   map[string]providers.Provider
	machines    map[string]*refresh.Machine
	order       []string
	seeded      map[string]*models.QuotaSnapshot
	notified    map[string]map[string]bool
	subscribers []chan<- ServiceEvent
	stopChan    chan struct{}
	closeOnce   sync.Once
}

// NewManager builds the service graph and starts the background loops.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		cfg:       cfg,
		providers: make(map[string]providers.Provider),
		machines:  make(map[string]*refresh.Machine),
		seeded:    make(map[string]*models.QuotaSnapshot),
		notified:  make(map[string]map[string]bool),
		stopChan:  make(chan struct{}),
	}

	var err error
	m.creds, err = credentials.New(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}

	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	m.relayClient = relay.New(relay.Config{
		Endpoint: cfg.RelayEndpoint,
		APIKey:   cfg.RelayAPIKey,
	})

	scanner := protoscan.NewScanner(loadScanRules(cfg.RulesPath))

	machineCfg := refresh.Config{
		FetchTimeout:   cfg.FetchTimeout,
		RetryDelay:     cfg.RetryDelay,
		DebounceWindow: cfg.DebounceWindow,
		FocusDelay:     cfg.FocusDelay,
		MaxAttempts:    cfg.MaxAttempts,
	}

	providerList := []providers.Provider{
		antigravity.New(m.creds, scanner, antigravity.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
		}),
		cursor.New(m.creds, cursor.Config{}),
		trae.New(m.creds, trae.Config{}),
	}

	for _, p := range providerList {
		id := p.ID()
		m.providers[id] = p
		m.order = append(m.order, id)
		m.machines[id] = refresh.NewMachine(id, p.Fetch, machineCfg)

		// Seed the UI with the last persisted snapshot so a restart does
		// not blank the display until the first live fetch lands.
		if snap, err := m.database.LatestSnapshot(id); err != nil {
			logger.Warn("failed to load last snapshot", "provider", id, "error", err)
		} else if snap != nil {
			m.seeded[id] = snap
		}
	}

	for _, machine := range m.machines {
		go m.routeMachineEvents(machine)
	}
	go m.routeCredentialEvents()
	go m.pollLoop()

	return m, nil
}

// loadScanRules merges an optional YAML rule file over the built-in table.
// A missing file is the normal case; a broken one is logged and skipped.
func loadScanRules(path string) []protoscan.Rule {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	rules, err := protoscan.LoadRulesFile(path)
	if err != nil {
		logger.Warn("ignoring scanner rules file", "path", path, "error", err)
		return nil
	}
	logger.Info("loaded scanner rules", "path", path, "rules", len(rules))
	return rules
}

// routeMachineEvents forwards one machine's events until shutdown.
func (m *Manager) routeMachineEvents(machine *refresh.Machine) {
	for {
		select {
		case event := <-machine.Events():
			m.handleMachineEvent(event)
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleMachineEvent(event refresh.Event) {
	switch event.Type {
	case refresh.EventSnapshot:
		m.handleSnapshot(event.Provider, event.Snapshot)
		m.broadcast(RefreshStateEvent{
			Provider: event.Provider,
			State:    m.machines[event.Provider].State(),
		})

	case refresh.EventStateChanged:
		m.broadcast(RefreshStateEvent{
			Provider: event.Provider,
			State:    m.machines[event.Provider].State(),
		})

	case refresh.EventOpenSettings:
		m.broadcast(SettingsRequestedEvent{Provider: event.Provider})

	case refresh.EventRefreshFailed:
		m.broadcast(RefreshFailedEvent{Provider: event.Provider, Error: event.Error})
	}
}

// handleSnapshot persists, relays and broadcasts a committed snapshot. The
// relay sits off the critical path: Submit returns immediately and its
// outcome is only logged.
func (m *Manager) handleSnapshot(provider string, snapshot *models.QuotaSnapshot) {
	if snapshot == nil {
		return
	}

	if _, err := m.database.InsertSnapshot(snapshot); err != nil {
		logger.Error("failed to persist snapshot", "provider", provider, "error", err)
		m.broadcast(ErrorEvent{Service: "db", Error: err})
	}

	m.relayClient.Submit(snapshot)
	m.checkNotifications(provider, snapshot)

	m.broadcast(SnapshotEvent{Provider: provider, Snapshot: snapshot})
}

// checkNotifications sends a desktop notification the first time a model
// shows up exhausted, and rearms once it recovers.
func (m *Manager) checkNotifications(provider string, snapshot *models.QuotaSnapshot) {
	if !m.cfg.NotifyExhausted {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := m.notified[provider]
	if seen == nil {
		seen = make(map[string]bool)
		m.notified[provider] = seen
	}

	for i := range snapshot.Models {
		mq := &snapshot.Models[i]
		if mq.IsExhausted() {
			if !seen[mq.ModelID] {
				seen[mq.ModelID] = true
				title := fmt.Sprintf("Quota exhausted: %s", mq.Label)
				body := fmt.Sprintf("%s has no remaining quota. Resets in %s.",
					mq.Label, mq.FormatReset(time.Now()))
				if err := beeep.Notify(title, body, ""); err != nil {
					logger.Debug("desktop notification failed", "error", err)
				}
			}
		} else {
			seen[mq.ModelID] = false
		}
	}
}

// routeCredentialEvents reacts to credential store changes: the UI is told
// to re-render and every machine refreshes in the background so new tokens
// take effect immediately.
func (m *Manager) routeCredentialEvents() {
	for {
		select {
		case event := <-m.creds.Events():
			switch event.Type {
			case credentials.EventCredentialsChanged,
				credentials.EventCredentialUpdated,
				credentials.EventCredentialDeleted:
				m.broadcast(CredentialsChangedEvent{})
				m.RefreshAll(false)
			case credentials.EventError:
				m.broadcast(ErrorEvent{Service: "credentials", Error: event.Error})
			}
		case <-m.stopChan:
			return
		}
	}
}

// pollLoop drives the periodic background refresh and history pruning.
func (m *Manager) pollLoop() {
	interval := m.cfg.RefreshInterval
	if interval <= 0 {
		interval = time.Minute
	}
	refreshTicker := time.NewTicker(interval)
	defer refreshTicker.Stop()
	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	m.RefreshAll(false)
	m.pruneHistory()

	for {
		select {
		case <-refreshTicker.C:
			m.RefreshAll(false)
		case <-pruneTicker.C:
			m.pruneHistory()
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) pruneHistory() {
	if m.cfg.HistoryRetention <= 0 {
		return
	}
	cutoff := time.Now().Add(-m.cfg.HistoryRetention)
	pruned, err := m.database.PruneOlderThan(cutoff)
	if err != nil {
		logger.Error("failed to prune history", "error", err)
		return
	}
	if pruned > 0 {
		logger.Info("pruned old snapshots", "rows", pruned)
	}
}

// ProviderIDs returns the provider ids in display order.
func (m *Manager) ProviderIDs() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Provider returns one provider integration, or nil.
func (m *Manager) Provider(id string) providers.Provider {
	return m.providers[id]
}

// Machine returns one provider's refresh machine, or nil.
func (m *Manager) Machine(id string) *refresh.Machine {
	return m.machines[id]
}

// Snapshot returns a provider's latest snapshot: the machine's committed
// one, or the persisted seed from before this run, or nil.
func (m *Manager) Snapshot(id string) *models.QuotaSnapshot {
	machine, ok := m.machines[id]
	if !ok {
		return nil
	}
	if snap := machine.Snapshot(); snap != nil {
		return snap
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seeded[id].Clone()
}

// RefreshState returns a provider's current machine state.
func (m *Manager) RefreshState(id string) refresh.State {
	machine, ok := m.machines[id]
	if !ok {
		return refresh.State{}
	}
	return machine.State()
}

// HasCredential reports whether a provider has a usable secret.
func (m *Manager) HasCredential(id string) bool {
	_, ok := m.creds.Credential(id)
	return ok
}

// ClickStatus forwards a status-bar click to the provider's machine, which
// resolves single vs. double click internally.
func (m *Manager) ClickStatus(id string) {
	if machine, ok := m.machines[id]; ok {
		machine.Click()
	}
}

// WindowFocused arms the stuck-state check on every machine.
func (m *Manager) WindowFocused() {
	for _, machine := range m.machines {
		machine.WindowFocused()
	}
}

// Refresh starts a fetch cycle for one provider. A manual refresh first
// clears the provider's caches so everything re-resolves from scratch.
func (m *Manager) Refresh(id string, userInitiated bool) {
	machine, ok := m.machines[id]
	if !ok {
		return
	}
	if userInitiated {
		m.providers[id].ClearCache()
	}
	machine.Refresh(userInitiated)
}

// RefreshAll starts a fetch cycle on every provider.
func (m *Manager) RefreshAll(userInitiated bool) {
	for _, id := range m.order {
		m.Refresh(id, userInitiated)
	}
}

// Credentials returns the credential store.
func (m *Manager) Credentials() *credentials.Service {
	return m.creds
}

// Database returns the history store.
func (m *Manager) Database() *db.DB {
	return m.database
}

// RelayEnabled reports whether snapshots are being forwarded to a relay.
func (m *Manager) RelayEnabled() bool {
	return m.relayClient != nil
}

// RelayInstanceID identifies this process in relay reports, or "".
func (m *Manager) RelayInstanceID() string {
	return m.relayClient.InstanceID()
}

// ProviderEmail returns the account email for a provider when known.
func (m *Manager) ProviderEmail(id string) string {
	if cred, ok := m.creds.Credential(id); ok && cred.Email != "" {
		return cred.Email
	}
	if p, ok := m.providers[id].(interface{ Email() string }); ok {
		return p.Email()
	}
	return ""
}

// broadcast sends an event to all subscribers without blocking.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events. The returned
// command waits for the first event.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a command that delivers the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return event
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Close shuts everything down: machines disposed, watcher and database
// closed, subscriber channels closed. Idempotent.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		close(m.stopChan)

		for _, machine := range m.machines {
			machine.Dispose()
		}

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if err := m.creds.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	})

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
