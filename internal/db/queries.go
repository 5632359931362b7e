package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quotabar/quotabar/internal/logger"
	"github.com/quotabar/quotabar/internal/models"
)

// InsertSnapshot records a point-in-time quota reading with all of its
// per-model rows. Returns the new snapshot id.
func (db *DB) InsertSnapshot(snapshot *models.QuotaSnapshot) (int64, error) {
	timestamp := snapshot.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(context.Background(),
		"INSERT INTO snapshots (provider, plan_name, timestamp) VALUES (?, ?, ?)",
		snapshot.Provider,
		snapshot.PlanName,
		formatDBTime(timestamp),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot id: %w", err)
	}

	for i := range snapshot.Models {
		m := &snapshot.Models[i]
		_, err := tx.ExecContext(context.Background(),
			`INSERT INTO model_quotas (snapshot_id, model_id, label, remaining_fraction, reset_time)
			 VALUES (?, ?, ?, ?, ?)`,
			id,
			m.ModelID,
			m.Label,
			nullFloat(m.RemainingFraction),
			nullTime(m.ResetTime),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert model quota: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return id, nil
}

// LatestSnapshot returns the most recent stored snapshot for a provider, or
// nil when none exists. Used to seed the UI before the first live fetch.
func (db *DB) LatestSnapshot(provider string) (*models.QuotaSnapshot, error) {
	var (
		id        int64
		planName  string
		timestamp string
	)
	err := db.QueryRowContext(context.Background(),
		"SELECT id, plan_name, timestamp FROM snapshots WHERE provider = ? ORDER BY timestamp DESC, id DESC LIMIT 1",
		provider,
	).Scan(&id, &planName, &timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	snapshot := &models.QuotaSnapshot{
		Timestamp: parseDBTime(timestamp),
		PlanName:  planName,
		Provider:  provider,
		Models:    []models.ModelQuotaInfo{},
	}

	rows, err := db.QueryContext(context.Background(),
		`SELECT model_id, label, remaining_fraction, reset_time
		 FROM model_quotas WHERE snapshot_id = ? ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query model quotas: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	for rows.Next() {
		var (
			info     models.ModelQuotaInfo
			fraction sql.NullFloat64
			reset    sql.NullString
		)
		if err := rows.Scan(&info.ModelID, &info.Label, &fraction, &reset); err != nil {
			return nil, fmt.Errorf("failed to scan model quota: %w", err)
		}
		if fraction.Valid {
			f := fraction.Float64
			info.RemainingFraction = &f
		}
		if reset.Valid && reset.String != "" {
			t := parseDBTime(reset.String)
			info.ResetTime = &t
		}
		snapshot.Models = append(snapshot.Models, info)
	}

	return snapshot, rows.Err()
}

// PruneOlderThan deletes snapshots recorded before the cutoff. Model rows go
// with them through the cascading foreign key.
func (db *DB) PruneOlderThan(cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(context.Background(),
		"DELETE FROM snapshots WHERE timestamp < ?",
		formatDBTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.RowsAffected()
}

// CountSnapshots returns the number of stored snapshots for a provider.
func (db *DB) CountSnapshots(provider string) (int, error) {
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM snapshots WHERE provider = ?",
		provider,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// formatDBTime renders a timestamp for storage. Everything is stored in UTC
// so comparisons against datetime('now') behave.
func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

// parseDBTime parses a stored timestamp. Unparseable values yield the zero
// time rather than an error; the columns are written by formatDBTime only.
func parseDBTime(s string) time.Time {
	t, err := time.ParseInLocation(dbTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullFloat returns a sql.NullFloat64 from an optional float.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// nullTime returns a sql.NullString from an optional timestamp.
func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDBTime(*t), Valid: true}
}
