package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quotabar/quotabar/internal/models"
)

// clearEnv blanks every override so host environment variables cannot leak
// into the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, envVar := range envOverrides {
		t.Setenv(envVar, "")
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	clearEnv(t)
	s, err := New(filepath.Join(t.TempDir(), "credentials.json"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func waitEvent(t *testing.T, events <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event type %d", want)
			return Event{}
		}
	}
}

func TestNewCreatesEmptyFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "credentials.json")

	s, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("credentials file not created: %v", err)
	}
	if got := s.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
	if _, ok := s.Credential(models.ProviderCursor); ok {
		t.Error("Credential() = ok for empty store, want signed-out state")
	}
}

func TestSetAndResolveCredential(t *testing.T) {
	s := newTestService(t)

	err := s.SetCredential(models.Credential{
		Provider:     models.ProviderCursor,
		SessionToken: "sess-1",
		Email:        "dev@example.com",
	})
	if err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	cred, ok := s.Credential(models.ProviderCursor)
	if !ok {
		t.Fatal("Credential() not found after SetCredential")
	}
	if cred.SessionToken != "sess-1" || cred.Email != "dev@example.com" {
		t.Errorf("credential = %+v", cred)
	}
	if cred.Source != models.CredentialSourceFile {
		t.Errorf("source = %q, want file", cred.Source)
	}
	if cred.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}

	// The file on disk should round-trip through the versioned format.
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var file models.RawCredentialsFile
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("unmarshal file: %v", err)
	}
	if file.Version != 1 {
		t.Errorf("file version = %d, want 1", file.Version)
	}
	if file.Providers[models.ProviderCursor].SessionToken != "sess-1" {
		t.Errorf("persisted entry = %+v", file.Providers[models.ProviderCursor])
	}
}

func TestEnvOverrideWinsOverFile(t *testing.T) {
	s := newTestService(t)

	if err := s.SetCredential(models.Credential{
		Provider:     models.ProviderCursor,
		SessionToken: "file-token",
	}); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}

	t.Setenv("QUOTABAR_CURSOR_SESSION", "env-token")

	cred, ok := s.Credential(models.ProviderCursor)
	if !ok {
		t.Fatal("Credential() not found")
	}
	if cred.SessionToken != "env-token" {
		t.Errorf("session token = %q, want env override", cred.SessionToken)
	}
	if cred.Source != models.CredentialSourceEnv {
		t.Errorf("source = %q, want env", cred.Source)
	}
}

func TestEnvOverrideMapsAntigravityToRefreshToken(t *testing.T) {
	s := newTestService(t)
	t.Setenv("QUOTABAR_ANTIGRAVITY_REFRESH_TOKEN", "rt-env")

	cred, ok := s.Credential(models.ProviderAntigravity)
	if !ok {
		t.Fatal("Credential() not found")
	}
	if cred.RefreshToken != "rt-env" || cred.SessionToken != "" {
		t.Errorf("credential = %+v, want refresh token only", cred)
	}
}

func TestDeleteCredential(t *testing.T) {
	s := newTestService(t)

	if err := s.SetCredential(models.Credential{
		Provider:     models.ProviderTrae,
		SessionToken: "sess-1",
	}); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}
	if err := s.DeleteCredential(models.ProviderTrae); err != nil {
		t.Fatalf("DeleteCredential() error = %v", err)
	}
	if _, ok := s.Credential(models.ProviderTrae); ok {
		t.Error("Credential() still resolves after delete")
	}
	if err := s.DeleteCredential(models.ProviderTrae); err == nil {
		t.Error("DeleteCredential() on missing entry should fail")
	}
}

func TestAllSortedByProvider(t *testing.T) {
	s := newTestService(t)

	for _, provider := range []string{models.ProviderTrae, models.ProviderAntigravity, models.ProviderCursor} {
		cred := models.Credential{Provider: provider, SessionToken: "sess"}
		if provider == models.ProviderAntigravity {
			cred = models.Credential{Provider: provider, RefreshToken: "rt"}
		}
		if err := s.SetCredential(cred); err != nil {
			t.Fatalf("SetCredential(%s) error = %v", provider, err)
		}
	}

	all := s.All()
	if len(all) != 3 {
		t.Fatalf("All() = %d entries, want 3", len(all))
	}
	want := []string{models.ProviderAntigravity, models.ProviderCursor, models.ProviderTrae}
	for i, provider := range want {
		if all[i].Provider != provider {
			t.Errorf("All()[%d] = %q, want %q", i, all[i].Provider, provider)
		}
	}
}

func TestEntryWithoutSecretIsNotResolvable(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "credentials.json")
	body := `{"version": 1, "providers": {"cursor": {"email": "dev@example.com"}}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	s, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if _, ok := s.Credential(models.ProviderCursor); ok {
		t.Error("Credential() resolved an entry with no secret material")
	}
}

func TestParseLegacyFlatFormat(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "credentials.json")
	body := `{"cursor": {"sessionToken": "sess-legacy"}, "antigravity": {"refreshToken": "rt-legacy"}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	s, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	cursor, ok := s.Credential(models.ProviderCursor)
	if !ok || cursor.SessionToken != "sess-legacy" {
		t.Errorf("cursor credential = %+v, ok = %v", cursor, ok)
	}
	anti, ok := s.Credential(models.ProviderAntigravity)
	if !ok || anti.RefreshToken != "rt-legacy" {
		t.Errorf("antigravity credential = %+v, ok = %v", anti, ok)
	}
}

func TestWatcherPicksUpExternalWrite(t *testing.T) {
	s := newTestService(t)

	body := `{"version": 1, "providers": {"trae": {"sessionToken": "written-behind"}}}`
	if err := os.WriteFile(s.filePath, []byte(body), 0600); err != nil {
		t.Fatalf("external write: %v", err)
	}

	waitEvent(t, s.Events(), EventCredentialsChanged)

	cred, ok := s.Credential(models.ProviderTrae)
	if !ok || cred.SessionToken != "written-behind" {
		t.Errorf("credential after reload = %+v, ok = %v", cred, ok)
	}
}

func TestWatcherTreatsDeletedFileAsSignedOut(t *testing.T) {
	s := newTestService(t)

	if err := s.SetCredential(models.Credential{
		Provider:     models.ProviderCursor,
		SessionToken: "sess-1",
	}); err != nil {
		t.Fatalf("SetCredential() error = %v", err)
	}
	if err := os.Remove(s.filePath); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	// The save performed by SetCredential arms its own reload, so wait on
	// the observable state instead of counting change events.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := s.Credential(models.ProviderCursor); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("credential still resolves after the file was deleted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
