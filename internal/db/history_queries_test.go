package db

import (
	"testing"
	"time"

	"github.com/quotabar/quotabar/internal/models"
)

func seriesSnapshot(provider string, ts time.Time, modelID, label string, fraction float64) *models.QuotaSnapshot {
	return &models.QuotaSnapshot{
		Timestamp: ts,
		Provider:  provider,
		Models: []models.ModelQuotaInfo{
			{Label: label, ModelID: modelID, RemainingFraction: fracPtr(fraction)},
		},
	}
}

func mustInsert(t *testing.T, database *DB, snapshot *models.QuotaSnapshot) {
	t.Helper()
	if _, err := database.InsertSnapshot(snapshot); err != nil {
		t.Fatalf("InsertSnapshot() error = %v", err)
	}
}

func TestGetFractionSeriesRaw(t *testing.T) {
	database := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now.Add(-2*time.Hour), "gemini-3-pro", "Gemini 3 Pro", 0.8))
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now.Add(-time.Hour), "gemini-3-pro", "Gemini 3 Pro", 0.6))
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now.Add(-time.Hour), "claude-sonnet-4-5", "Claude Sonnet 4.5", 0.4))
	// Outside the 24 hour window.
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now.Add(-30*time.Hour), "gemini-3-pro", "Gemini 3 Pro", 0.9))
	// Other provider.
	mustInsert(t, database, seriesSnapshot(models.ProviderCursor, now, "gpt-4", "gpt-4", 0.5))
	// Unknown fraction never charts.
	mustInsert(t, database, &models.QuotaSnapshot{
		Timestamp: now,
		Provider:  models.ProviderAntigravity,
		Models:    []models.ModelQuotaInfo{{Label: "Mystery", ModelID: "mystery"}},
	})

	series, err := database.GetFractionSeries(models.ProviderAntigravity, models.TimeRange24Hours)
	if err != nil {
		t.Fatalf("GetFractionSeries() error = %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("series = %d, want 2", len(series))
	}

	claude := series[0]
	if claude.ModelID != "claude-sonnet-4-5" || claude.Label != "Claude Sonnet 4.5" {
		t.Errorf("first series = %s (%s), want claude-sonnet-4-5 first by model id", claude.ModelID, claude.Label)
	}
	if len(claude.Points) != 1 || claude.Points[0].Fraction != 0.4 {
		t.Errorf("claude points = %+v", claude.Points)
	}

	gemini := series[1]
	if gemini.ModelID != "gemini-3-pro" {
		t.Fatalf("second series = %s", gemini.ModelID)
	}
	if len(gemini.Points) != 2 {
		t.Fatalf("gemini points = %d, want 2 (window and provider filters applied)", len(gemini.Points))
	}
	if gemini.Points[0].Fraction != 0.8 || gemini.Points[1].Fraction != 0.6 {
		t.Errorf("gemini points out of order: %+v", gemini.Points)
	}
	if !gemini.Points[0].Timestamp.Before(gemini.Points[1].Timestamp) {
		t.Error("points not chronological")
	}
}

func TestGetFractionSeriesBucketsLongRanges(t *testing.T) {
	database := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Hour).Add(-3 * time.Hour)

	// Two samples inside one hour bucket average together.
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, base.Add(10*time.Minute), "gemini-3-pro", "Gemini 3 Pro", 0.75))
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, base.Add(20*time.Minute), "gemini-3-pro", "Gemini 3 Pro", 0.25))
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, base.Add(time.Hour+10*time.Minute), "gemini-3-pro", "Gemini 3 Pro", 0.5))

	series, err := database.GetFractionSeries(models.ProviderAntigravity, models.TimeRange7Days)
	if err != nil {
		t.Fatalf("GetFractionSeries() error = %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("series = %d, want 1", len(series))
	}

	points := series[0].Points
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2 hourly buckets", len(points))
	}
	if points[0].Fraction != 0.5 {
		t.Errorf("first bucket = %v, want averaged 0.5", points[0].Fraction)
	}
	if points[1].Fraction != 0.5 {
		t.Errorf("second bucket = %v, want 0.5", points[1].Fraction)
	}
	if !points[0].Timestamp.Equal(base) {
		t.Errorf("first bucket timestamp = %v, want %v", points[0].Timestamp, base)
	}
}

func TestGetFractionSeriesEmpty(t *testing.T) {
	database := newTestDB(t)

	series, err := database.GetFractionSeries(models.ProviderTrae, models.TimeRangeAllTime)
	if err != nil {
		t.Fatalf("GetFractionSeries() error = %v", err)
	}
	if len(series) != 0 {
		t.Errorf("series = %+v, want none", series)
	}
}

func TestEstimateBurnRate(t *testing.T) {
	database := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now.Add(-2*time.Hour), "gemini-3-pro", "Gemini 3 Pro", 1.0))
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now.Add(-time.Hour), "gemini-3-pro", "Gemini 3 Pro", 0.75))
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now, "gemini-3-pro", "Gemini 3 Pro", 0.5))

	rate, err := database.EstimateBurnRate(models.ProviderAntigravity, "gemini-3-pro", 3*time.Hour)
	if err != nil {
		t.Fatalf("EstimateBurnRate() error = %v", err)
	}
	if rate == nil {
		t.Fatal("EstimateBurnRate() = nil")
	}
	if rate.PercentPerHr != 25 {
		t.Errorf("rate = %v points/hr, want 25", rate.PercentPerHr)
	}
	if rate.Samples != 3 {
		t.Errorf("samples = %d, want 3", rate.Samples)
	}
	if rate.Window != 2*time.Hour {
		t.Errorf("window = %v, want 2h", rate.Window)
	}

	remaining, ok := rate.TimeToExhaustion(0.5)
	if !ok || remaining != 2*time.Hour {
		t.Errorf("TimeToExhaustion(0.5) = %v, %v, want 2h at 25 points/hr", remaining, ok)
	}
}

func TestEstimateBurnRateSurvivesReset(t *testing.T) {
	database := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	// Quota resets upward mid-window; only downward drops count.
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now.Add(-2*time.Hour), "gemini-3-pro", "Gemini 3 Pro", 0.25))
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now.Add(-time.Hour), "gemini-3-pro", "Gemini 3 Pro", 1.0))
	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now, "gemini-3-pro", "Gemini 3 Pro", 0.75))

	rate, err := database.EstimateBurnRate(models.ProviderAntigravity, "gemini-3-pro", 3*time.Hour)
	if err != nil {
		t.Fatalf("EstimateBurnRate() error = %v", err)
	}
	if rate == nil {
		t.Fatal("EstimateBurnRate() = nil")
	}
	if rate.PercentPerHr != 12.5 {
		t.Errorf("rate = %v points/hr, want 12.5", rate.PercentPerHr)
	}
}

func TestEstimateBurnRateInsufficientSamples(t *testing.T) {
	database := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	rate, err := database.EstimateBurnRate(models.ProviderAntigravity, "gemini-3-pro", time.Hour)
	if err != nil {
		t.Fatalf("EstimateBurnRate() error = %v", err)
	}
	if rate != nil {
		t.Errorf("rate = %+v, want nil with no samples", rate)
	}

	mustInsert(t, database, seriesSnapshot(models.ProviderAntigravity, now, "gemini-3-pro", "Gemini 3 Pro", 0.5))
	rate, err = database.EstimateBurnRate(models.ProviderAntigravity, "gemini-3-pro", time.Hour)
	if err != nil {
		t.Fatalf("EstimateBurnRate() error = %v", err)
	}
	if rate != nil {
		t.Errorf("rate = %+v, want nil with one sample", rate)
	}
}

func TestGetHistorySummary(t *testing.T) {
	database := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	summary, err := database.GetHistorySummary(models.ProviderAntigravity)
	if err != nil {
		t.Fatalf("GetHistorySummary() error = %v", err)
	}
	if summary.HasData() {
		t.Errorf("empty summary = %+v, want no data", summary)
	}

	mustInsert(t, database, testSnapshot(models.ProviderAntigravity, now.Add(-time.Hour)))
	mustInsert(t, database, testSnapshot(models.ProviderAntigravity, now))

	summary, err = database.GetHistorySummary(models.ProviderAntigravity)
	if err != nil {
		t.Fatalf("GetHistorySummary() error = %v", err)
	}
	if summary.TotalSnapshots != 2 {
		t.Errorf("total = %d, want 2", summary.TotalSnapshots)
	}
	if !summary.FirstSnapshot.Equal(now.Add(-time.Hour)) {
		t.Errorf("first = %v, want %v", summary.FirstSnapshot, now.Add(-time.Hour))
	}
	if !summary.LastSnapshot.Equal(now) {
		t.Errorf("last = %v, want %v", summary.LastSnapshot, now)
	}
}
