package db

import (
	"context"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version records how many
// have run. Each entry must be safe to run exactly once.
var migrations = []string{
	// v1: snapshot history
	`
	CREATE TABLE snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		plan_name TEXT DEFAULT '',
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX idx_snapshots_provider_time ON snapshots(provider, timestamp);

	CREATE TABLE model_quotas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		model_id TEXT NOT NULL,
		label TEXT NOT NULL,
		remaining_fraction REAL,
		reset_time DATETIME
	);
	CREATE INDEX idx_model_quotas_snapshot ON model_quotas(snapshot_id);
	CREATE INDEX idx_model_quotas_model ON model_quotas(model_id);
	`,
}

// migrate brings the schema up to the latest version.
func (db *DB) migrate() error {
	ctx := context.Background()

	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", version, len(migrations))
	}

	for version < len(migrations) {
		if _, err := db.ExecContext(ctx, migrations[version]); err != nil {
			return fmt.Errorf("migration %d failed: %w", version+1, err)
		}
		version++
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", version, err)
		}
	}

	return nil
}
