package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if info == "" {
		t.Fatal("Info() returned empty string")
	}
	if !strings.HasPrefix(info, "quotabar ") {
		t.Errorf("Info() should start with the program name, got %q", info)
	}
	if !strings.Contains(info, "commit:") {
		t.Errorf("Info() should include the commit, got %q", info)
	}
}

func TestInfoInitializesDefaults(t *testing.T) {
	Info()

	// A build without ldflags still produces usable values.
	if Version == "" {
		t.Error("Version should be initialized")
	}
	if Commit == "" {
		t.Error("Commit should be initialized")
	}
	if Date == "" {
		t.Error("Date should be initialized")
	}
}

func TestLdflagsValuesWin(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	Version, Commit, Date = "1.2.3", "abc1234", "2026-01-01"

	info := Info()
	for _, want := range []string{"1.2.3", "abc1234", "2026-01-01"} {
		if !strings.Contains(info, want) {
			t.Errorf("Info() = %q, missing %q", info, want)
		}
	}
}
