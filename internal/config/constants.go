// Package config contains everything related to configuration
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values
const (
	defaultRefreshInterval  = 60 * time.Second
	defaultFetchTimeout     = 15 * time.Second
	defaultRetryDelay       = 2 * time.Second
	defaultDebounceWindow   = 300 * time.Millisecond
	defaultFocusDelay       = 2 * time.Second
	defaultHistoryRetention = 30 * 24 * time.Hour
	defaultMaxAttempts      = 3
	defaultNotifyExhausted  = true
)

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "usage.db"
	}
	return filepath.Join(home, ".config", "quotabar", "usage.db")
}

// getDefaultCredentialsPath returns the default path for the credentials JSON file.
func getDefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.json"
	}
	return filepath.Join(home, ".config", "quotabar", "credentials.json")
}

// getDefaultRulesPath returns the default path for the optional scanner
// rules file. The file does not have to exist.
func getDefaultRulesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "quotabar", "rules.yaml")
}
