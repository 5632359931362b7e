package db

import (
	"context"
	"fmt"
	"time"

	"github.com/quotabar/quotabar/internal/logger"
	"github.com/quotabar/quotabar/internal/models"
)

// GetFractionSeries returns the per-model remaining-fraction history for a
// provider within the selected range, ordered by model then time. Ranges of
// a week or more are averaged into hourly buckets so long histories stay
// chartable.
func (db *DB) GetFractionSeries(provider string, rng models.TimeRange) ([]models.ModelSeries, error) {
	days := rng.Days()
	bucketed := days == 0 || days >= 7

	var (
		query string
		args  []any
	)
	if bucketed {
		query = `
			SELECT mq.model_id, mq.label,
				   strftime('%Y-%m-%d %H:00:00', s.timestamp) AS bucket,
				   AVG(mq.remaining_fraction)
			FROM model_quotas mq
			JOIN snapshots s ON s.id = mq.snapshot_id
			WHERE s.provider = ? AND mq.remaining_fraction IS NOT NULL
		`
	} else {
		query = `
			SELECT mq.model_id, mq.label, s.timestamp, mq.remaining_fraction
			FROM model_quotas mq
			JOIN snapshots s ON s.id = mq.snapshot_id
			WHERE s.provider = ? AND mq.remaining_fraction IS NOT NULL
		`
	}
	args = append(args, provider)

	if days > 0 {
		query += " " + sqlSinceClause
		args = append(args, fmt.Sprintf("-%d days", days))
	}
	if bucketed {
		query += " GROUP BY mq.model_id, mq.label, bucket ORDER BY mq.model_id, bucket"
	} else {
		query += " ORDER BY mq.model_id, s.timestamp, mq.id"
	}

	rows, err := db.QueryContext(context.Background(), query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fraction series: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var series []models.ModelSeries
	for rows.Next() {
		var (
			modelID  string
			label    string
			stamp    string
			fraction float64
		)
		if err := rows.Scan(&modelID, &label, &stamp, &fraction); err != nil {
			return nil, fmt.Errorf("failed to scan series point: %w", err)
		}

		if len(series) == 0 || series[len(series)-1].ModelID != modelID {
			series = append(series, models.ModelSeries{
				Provider: provider,
				ModelID:  modelID,
				Label:    label,
			})
		}
		current := &series[len(series)-1]
		current.Points = append(current.Points, models.FractionPoint{
			Timestamp: parseDBTime(stamp),
			Fraction:  fraction,
		})
	}

	return series, rows.Err()
}

// EstimateBurnRate estimates how fast a model's quota was consumed inside
// the window, in percentage points per hour. Drops between consecutive
// samples are summed so a mid-window reset does not cancel earlier use.
// Returns nil when fewer than two observations exist.
func (db *DB) EstimateBurnRate(provider, modelID string, window time.Duration) (*models.BurnRate, error) {
	query := `
		SELECT s.timestamp, mq.remaining_fraction
		FROM model_quotas mq
		JOIN snapshots s ON s.id = mq.snapshot_id
		WHERE s.provider = ? AND mq.model_id = ? AND mq.remaining_fraction IS NOT NULL
		` + sqlSinceClause + `
		ORDER BY s.timestamp, mq.id
	`

	rows, err := db.QueryContext(context.Background(), query,
		provider, modelID, fmt.Sprintf("-%d seconds", int(window.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("failed to query burn rate samples: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var points []models.FractionPoint
	for rows.Next() {
		var (
			stamp    string
			fraction float64
		)
		if err := rows.Scan(&stamp, &fraction); err != nil {
			return nil, fmt.Errorf("failed to scan burn rate sample: %w", err)
		}
		points = append(points, models.FractionPoint{
			Timestamp: parseDBTime(stamp),
			Fraction:  fraction,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(points) < 2 {
		return nil, nil
	}
	elapsed := points[len(points)-1].Timestamp.Sub(points[0].Timestamp)
	if elapsed <= 0 {
		return nil, nil
	}

	var consumed float64
	for i := 1; i < len(points); i++ {
		if drop := points[i-1].Fraction - points[i].Fraction; drop > 0 {
			consumed += drop
		}
	}

	return &models.BurnRate{
		Provider:     provider,
		ModelID:      modelID,
		PercentPerHr: consumed * 100 / elapsed.Hours(),
		Window:       elapsed,
		Samples:      len(points),
	}, nil
}

// GetHistorySummary describes the stored history for a provider.
func (db *DB) GetHistorySummary(provider string) (*models.HistorySummary, error) {
	query := `
		SELECT COUNT(*), COALESCE(MIN(timestamp), ''), COALESCE(MAX(timestamp), '')
		FROM snapshots
		WHERE provider = ?
	`

	var (
		summary models.HistorySummary
		first   string
		last    string
	)
	err := db.QueryRowContext(context.Background(), query, provider).Scan(
		&summary.TotalSnapshots,
		&first,
		&last,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history summary: %w", err)
	}

	summary.Provider = provider
	if first != "" {
		summary.FirstSnapshot = parseDBTime(first)
	}
	if last != "" {
		summary.LastSnapshot = parseDBTime(last)
	}

	return &summary, nil
}
