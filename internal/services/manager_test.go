package services

import (
	"testing"
	"time"

	"github.com/quotabar/quotabar/internal/config"
	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/refresh"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()
	return &config.Config{
		DatabasePath:     tmpDir + "/test.db",
		CredentialsPath:  tmpDir + "/credentials.json",
		RefreshInterval:  time.Minute,
		FetchTimeout:     5 * time.Second,
		RetryDelay:       10 * time.Millisecond,
		DebounceWindow:   20 * time.Millisecond,
		FocusDelay:       10 * time.Millisecond,
		HistoryRetention: 30 * 24 * time.Hour,
		MaxAttempts:      3,
	}
}

func TestNewManager(t *testing.T) {
	mgr, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer func() { _ = mgr.Close() }()

	if mgr.Credentials() == nil {
		t.Error("Credentials service should be initialized")
	}
	if mgr.Database() == nil {
		t.Error("Database should be initialized")
	}

	ids := mgr.ProviderIDs()
	want := []string{models.ProviderAntigravity, models.ProviderCursor, models.ProviderTrae}
	if len(ids) != len(want) {
		t.Fatalf("ProviderIDs = %v, want %v", ids, want)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("ProviderIDs[%d] = %q, want %q", i, ids[i], id)
		}
	}

	for _, id := range ids {
		if mgr.Provider(id) == nil {
			t.Errorf("Provider(%q) = nil", id)
		}
		if mgr.Machine(id) == nil {
			t.Errorf("Machine(%q) = nil", id)
		}
	}
}

func TestManager_RelayDisabledByDefault(t *testing.T) {
	mgr, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer func() { _ = mgr.Close() }()

	if mgr.RelayEnabled() {
		t.Error("relay should be disabled without an endpoint")
	}
	if id := mgr.RelayInstanceID(); id != "" {
		t.Errorf("RelayInstanceID = %q, want empty", id)
	}
}

func TestManager_SnapshotWithoutData(t *testing.T) {
	mgr, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer func() { _ = mgr.Close() }()

	if snap := mgr.Snapshot(models.ProviderCursor); snap != nil {
		t.Errorf("Snapshot with no history = %+v, want nil", snap)
	}
	if snap := mgr.Snapshot("unknown"); snap != nil {
		t.Errorf("Snapshot for unknown provider = %+v, want nil", snap)
	}
}

func TestManager_SnapshotSeededFromHistory(t *testing.T) {
	cfg := testConfig(t)

	// Persist a snapshot, then build a fresh manager over the same
	// database; it must seed from the stored history.
	{
		mgr, err := NewManager(cfg)
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		fraction := 0.5
		_, err = mgr.Database().InsertSnapshot(&models.QuotaSnapshot{
			Timestamp: time.Now(),
			Provider:  models.ProviderCursor,
			Models: []models.ModelQuotaInfo{
				{Label: "GPT-5", ModelID: "gpt-5", RemainingFraction: &fraction},
			},
		})
		if err != nil {
			t.Fatalf("InsertSnapshot failed: %v", err)
		}
		if err := mgr.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer func() { _ = mgr.Close() }()

	snap := mgr.Snapshot(models.ProviderCursor)
	if snap == nil {
		t.Fatal("Snapshot should be seeded from history")
	}
	if len(snap.Models) != 1 || snap.Models[0].ModelID != "gpt-5" {
		t.Errorf("seeded snapshot models = %+v", snap.Models)
	}
}

func TestManager_RefreshStateUnknownProvider(t *testing.T) {
	mgr, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer func() { _ = mgr.Close() }()

	state := mgr.RefreshState("unknown")
	if state.Phase != refresh.PhaseIdle {
		t.Errorf("RefreshState for unknown provider = %v, want Idle", state.Phase)
	}
}

func TestManager_Subscription(t *testing.T) {
	mgr, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer func() { _ = mgr.Close() }()

	ch, cmd := mgr.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe returned nil channel")
	}
	if cmd == nil {
		t.Error("Subscribe returned nil command")
	}

	mgr.broadcast(CredentialsChangedEvent{})

	select {
	case event := <-ch:
		if _, ok := event.(CredentialsChangedEvent); !ok {
			t.Errorf("received %T, want CredentialsChangedEvent", event)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered to subscriber")
	}

	mgr.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestManager_HasCredential(t *testing.T) {
	mgr, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	defer func() { _ = mgr.Close() }()

	if mgr.HasCredential(models.ProviderCursor) {
		t.Error("HasCredential should be false with an empty store")
	}

	err = mgr.Credentials().SetCredential(models.Credential{
		Provider:     models.ProviderCursor,
		SessionToken: "session-token",
	})
	if err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}

	if !mgr.HasCredential(models.ProviderCursor) {
		t.Error("HasCredential should be true after SetCredential")
	}
}

func TestManager_CloseIdempotent(t *testing.T) {
	mgr, err := NewManager(testConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	if err := mgr.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
