// Package version provides build version information and runtime metadata.
package version

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	// These are set via ldflags at build time
	Version = ""
	Commit  = ""
	Date    = ""

	once sync.Once
)

func ensureInitialized() {
	once.Do(func() {
		if Date == "" {
			Date = time.Now().Format("2006-01-02")
		}
		if Commit == "" {
			if out := gitOutput("describe", "--always", "--dirty"); out != "" {
				Commit = out
			} else {
				Commit = "unknown"
			}
		}
		if Version == "" {
			if out := gitOutput("describe", "--tags", "--abbrev=0"); out != "" {
				Version = strings.TrimPrefix(out, "v")
			} else {
				Version = "dev"
			}
		}
	})
}

// gitOutput runs git and returns trimmed stdout, or "" when git is
// unavailable or the command fails.
func gitOutput(args ...string) string {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Info returns a single-line version banner.
func Info() string {
	ensureInitialized()
	return fmt.Sprintf("quotabar %s (commit: %s, built: %s, %s/%s)",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
