// Package config contains everything related to configuration
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath       string
	CredentialsPath    string
	RulesPath          string
	GoogleClientID     string
	GoogleClientSecret string
	RelayEndpoint      string
	RelayAPIKey        string
	RefreshInterval    time.Duration
	FetchTimeout       time.Duration
	RetryDelay         time.Duration
	DebounceWindow     time.Duration
	FocusDelay         time.Duration
	HistoryRetention   time.Duration
	MaxAttempts        int
	NotifyExhausted    bool
}

// Load reads configuration from .env files and environment variables.
// Nothing is mandatory: a missing OAuth client or relay endpoint disables
// the features that need them rather than failing startup.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		DatabasePath:       getEnvString("QUOTABAR_DB_PATH", getDefaultDatabasePath()),
		CredentialsPath:    getEnvString("QUOTABAR_CREDENTIALS_PATH", getDefaultCredentialsPath()),
		RulesPath:          getEnvString("QUOTABAR_RULES_PATH", getDefaultRulesPath()),
		GoogleClientID:     getEnvString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnvString("GOOGLE_CLIENT_SECRET", ""),
		RelayEndpoint:      getEnvString("QUOTABAR_RELAY_ENDPOINT", ""),
		RelayAPIKey:        getEnvString("QUOTABAR_RELAY_API_KEY", ""),
		RefreshInterval:    getEnvDuration("QUOTABAR_REFRESH_INTERVAL", defaultRefreshInterval),
		FetchTimeout:       getEnvDuration("QUOTABAR_FETCH_TIMEOUT", defaultFetchTimeout),
		RetryDelay:         getEnvDuration("QUOTABAR_RETRY_DELAY", defaultRetryDelay),
		DebounceWindow:     getEnvDuration("QUOTABAR_DEBOUNCE_WINDOW", defaultDebounceWindow),
		FocusDelay:         getEnvDuration("QUOTABAR_FOCUS_DELAY", defaultFocusDelay),
		HistoryRetention:   getEnvDuration("QUOTABAR_HISTORY_RETENTION", defaultHistoryRetention),
		MaxAttempts:        getEnvInt("QUOTABAR_MAX_ATTEMPTS", defaultMaxAttempts),
		NotifyExhausted:    getEnvBool("QUOTABAR_NOTIFY", defaultNotifyExhausted),
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	// Ensure credentials directory exists
	if err := ensureDir(filepath.Dir(cfg.CredentialsPath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "quotabar", ".env"),
			filepath.Join(home, ".quotabar", ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
		grandparent := filepath.Dir(parent)
		paths = append(paths, filepath.Join(grandparent, ".env"))
	}

	return paths
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
