// Package credentials stores provider secrets in a watched JSON file with
// environment-variable overrides.
package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quotabar/quotabar/internal/logger"
	"github.com/quotabar/quotabar/internal/models"
)

// Event represents a credential service event.
type Event struct {
	Type     EventType
	Error    error
	Provider string
}

// EventType defines the type of credential event.
type EventType int

const (
	EventCredentialsLoaded EventType = iota
	EventCredentialsChanged
	EventCredentialUpdated
	EventCredentialDeleted
	EventError
)

// envOverrides maps provider ids to the environment variable that, when
// set, supersedes the credentials file for that provider.
var envOverrides = map[string]string{
	models.ProviderCursor:      "QUOTABAR_CURSOR_SESSION",
	models.ProviderTrae:        "QUOTABAR_TRAE_SESSION",
	models.ProviderAntigravity: "QUOTABAR_ANTIGRAVITY_REFRESH_TOKEN",
}

// Service manages provider credentials with file watching and change
// notifications. It satisfies the credential source interface the provider
// integrations consume.
type Service struct {
	mu            sync.RWMutex
	creds         map[string]models.Credential
	filePath      string
	watcher       *fsnotify.Watcher
	eventChan     chan Event
	stopChan      chan struct{}
	debounceTimer *time.Timer
}

// defaultCredentialsPath returns the default credentials file path.
func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "quotabar", "credentials.json")
}

// New creates a credentials service and starts file watching.
func New(filePath string) (*Service, error) {
	if filePath == "" {
		filePath = defaultCredentialsPath()
	}

	s := &Service{
		creds:     make(map[string]models.Credential),
		filePath:  filePath,
		eventChan: make(chan Event, 100),
		stopChan:  make(chan struct{}),
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := s.loadCredentials(); err != nil {
		// A missing file is the fresh-install state; create it empty.
		if os.IsNotExist(err) {
			if err := s.saveCredentials(); err != nil {
				return nil, fmt.Errorf("failed to create credentials file: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to load credentials: %w", err)
		}
	}

	if err := s.startWatcher(); err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}

	s.sendEvent(Event{Type: EventCredentialsLoaded})

	return s, nil
}

// Events returns the event channel for subscribing to credential changes.
func (s *Service) Events() <-chan Event {
	return s.eventChan
}

// Credential resolves a provider's secret. Environment overrides win over
// the file so a token exported in the shell never touches disk.
func (s *Service) Credential(provider string) (models.Credential, bool) {
	if envVar, ok := envOverrides[provider]; ok {
		if value := os.Getenv(envVar); value != "" {
			return credentialFromEnv(provider, value), true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.creds[provider]
	if !ok || cred.IsZero() {
		return models.Credential{}, false
	}
	return cred.Clone(), true
}

// All returns every stored credential ordered by provider id, with
// environment overrides applied. Used by the settings view.
func (s *Service) All() []models.Credential {
	s.mu.RLock()
	providers := make(map[string]struct{}, len(s.creds))
	for provider := range s.creds {
		providers[provider] = struct{}{}
	}
	s.mu.RUnlock()

	for provider, envVar := range envOverrides {
		if os.Getenv(envVar) != "" {
			providers[provider] = struct{}{}
		}
	}

	ids := make([]string, 0, len(providers))
	for provider := range providers {
		ids = append(ids, provider)
	}
	sort.Strings(ids)

	out := make([]models.Credential, 0, len(ids))
	for _, id := range ids {
		if cred, ok := s.Credential(id); ok {
			out = append(out, cred)
		}
	}
	return out
}

// Count returns the number of providers with a usable credential.
func (s *Service) Count() int {
	return len(s.All())
}

// SetCredential stores a provider's credential and persists the file.
func (s *Service) SetCredential(cred models.Credential) error {
	if cred.Provider == "" {
		return fmt.Errorf("credential missing provider id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = time.Now()
	}
	cred.Source = models.CredentialSourceFile

	prev, existed := s.creds[cred.Provider]
	s.creds[cred.Provider] = cred

	if err := s.saveCredentialsLocked(); err != nil {
		// Rollback
		if existed {
			s.creds[cred.Provider] = prev
		} else {
			delete(s.creds, cred.Provider)
		}
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	s.sendEvent(Event{Type: EventCredentialUpdated, Provider: cred.Provider})
	return nil
}

// DeleteCredential removes a provider's credential and persists the file.
func (s *Service) DeleteCredential(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.creds[provider]
	if !ok {
		return fmt.Errorf("no credential stored for %s", provider)
	}

	delete(s.creds, provider)

	if err := s.saveCredentialsLocked(); err != nil {
		s.creds[provider] = prev
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	s.sendEvent(Event{Type: EventCredentialDeleted, Provider: provider})
	return nil
}

// parseCredentials parses the credentials file handling both the versioned
// format and the legacy flat provider map.
func parseCredentials(data []byte) (map[string]models.Credential, error) {
	var file models.RawCredentialsFile
	if err := json.Unmarshal(data, &file); err == nil && file.Providers != nil {
		out := make(map[string]models.Credential, len(file.Providers))
		for provider, raw := range file.Providers {
			out[provider] = raw.ToCredential(provider)
		}
		return out, nil
	}

	var flat map[string]models.RawCredentialData
	if err := json.Unmarshal(data, &flat); err == nil {
		out := make(map[string]models.Credential, len(flat))
		for provider, raw := range flat {
			out[provider] = raw.ToCredential(provider)
		}
		return out, nil
	}

	return nil, fmt.Errorf("failed to parse credentials file: invalid format")
}

// loadCredentials loads credentials from the JSON file.
func (s *Service) loadCredentials() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	creds, err := parseCredentials(data)
	if err != nil {
		return err
	}

	s.creds = creds
	return nil
}

// saveCredentials saves credentials to the JSON file (public version).
func (s *Service) saveCredentials() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCredentialsLocked()
}

// saveCredentialsLocked saves credentials to the JSON file (must hold lock).
func (s *Service) saveCredentialsLocked() error {
	file := models.RawCredentialsFile{
		Providers: make(map[string]models.RawCredentialData, len(s.creds)),
		Version:   1,
	}
	for provider, cred := range s.creds {
		entry := models.RawCredentialData{
			Email:        cred.Email,
			SessionToken: cred.SessionToken,
			RefreshToken: cred.RefreshToken,
		}
		if !cred.UpdatedAt.IsZero() {
			stamp, err := json.Marshal(cred.UpdatedAt.Format(time.RFC3339))
			if err == nil {
				entry.UpdatedAt = stamp
			}
		}
		file.Providers[provider] = entry
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	// Write to temp file first, then rename
	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpFile, s.filePath); err != nil {
		if removeErr := os.Remove(tmpFile); removeErr != nil {
			logger.Error("failed to remove temp file", "error", removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// startWatcher starts the file system watcher.
func (s *Service) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Watch the directory (to catch file creation/deletion)
	dir := filepath.Dir(s.filePath)
	if err := watcher.Add(dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return err
	}

	go s.watchLoop()
	return nil
}

// watchLoop handles file system events with debouncing.
func (s *Service) watchLoop() {
	const debounceInterval = 100 * time.Millisecond

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			// Only care about our credentials file
			if filepath.Base(event.Name) != filepath.Base(s.filePath) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				// Debounce rapid changes
				if s.debounceTimer != nil {
					s.debounceTimer.Stop()
				}
				s.debounceTimer = time.AfterFunc(debounceInterval, func() {
					s.handleFileChange()
				})
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.sendEvent(Event{Type: EventError, Error: err})

		case <-s.stopChan:
			return
		}
	}
}

// handleFileChange reloads credentials after an external change. A deleted
// file means every file-sourced credential is gone, which is a legitimate
// signed-out state rather than an error.
func (s *Service) handleFileChange() {
	s.mu.Lock()
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.creds = make(map[string]models.Credential)
			s.mu.Unlock()
			s.sendEvent(Event{Type: EventCredentialsChanged})
			return
		}
		s.mu.Unlock()
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}

	creds, err := parseCredentials(data)
	if err != nil {
		s.mu.Unlock()
		s.sendEvent(Event{Type: EventError, Error: err})
		return
	}

	s.creds = creds
	s.mu.Unlock()

	s.sendEvent(Event{Type: EventCredentialsChanged})
}

// sendEvent sends an event to the event channel non-blocking.
func (s *Service) sendEvent(event Event) {
	select {
	case s.eventChan <- event:
	default:
		// Channel full, drop oldest event
		select {
		case <-s.eventChan:
		default:
		}
		select {
		case s.eventChan <- event:
		default:
		}
	}
}

// Close stops the file watcher and cleans up resources.
func (s *Service) Close() error {
	close(s.stopChan)

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}

	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// credentialFromEnv builds a credential from an environment override. The
// Antigravity secret is an OAuth refresh token; the others are dashboard
// session tokens.
func credentialFromEnv(provider, value string) models.Credential {
	cred := models.Credential{
		Provider: provider,
		Source:   models.CredentialSourceEnv,
	}
	if provider == models.ProviderAntigravity {
		cred.RefreshToken = value
	} else {
		cred.SessionToken = value
	}
	return cred
}
