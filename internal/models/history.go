// Package models defines data structures and domain types.
package models

import "time"

// TimeRange represents the selected history time range.
type TimeRange int

const (
	// TimeRange24Hours shows data from the last 24 hours.
	TimeRange24Hours TimeRange = iota
	// TimeRange7Days shows data from the last 7 days.
	TimeRange7Days
	// TimeRange30Days shows data from the last 30 days.
	TimeRange30Days
	// TimeRangeAllTime shows all available historical data.
	TimeRangeAllTime
)

// String returns the display name for a time range.
func (t TimeRange) String() string {
	switch t {
	case TimeRange24Hours:
		return "24 Hours"
	case TimeRange7Days:
		return "7 Days"
	case TimeRange30Days:
		return "30 Days"
	case TimeRangeAllTime:
		return "All Time"
	default:
		return "Unknown"
	}
}

// Days returns the number of days for the time range (0 = unlimited).
func (t TimeRange) Days() int {
	switch t {
	case TimeRange24Hours:
		return 1
	case TimeRange7Days:
		return 7
	case TimeRange30Days:
		return 30
	case TimeRangeAllTime:
		return 0
	default:
		return 30
	}
}

// Next cycles to the next time range.
func (t TimeRange) Next() TimeRange {
	return (t + 1) % 4
}

// FractionPoint is one recorded remaining-fraction observation.
type FractionPoint struct {
	Timestamp time.Time
	Fraction  float64
}

// ModelSeries is the recorded fraction history for one provider/model pair.
type ModelSeries struct {
	Provider string
	ModelID  string
	Label    string
	Points   []FractionPoint
}

// Fractions returns the series values in chronological order, scaled to
// percentages for charting.
func (s *ModelSeries) Fractions() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Fraction * 100
	}
	return out
}

// BurnRate is a rough consumption estimate derived from the first and last
// observation inside a window.
type BurnRate struct {
	Provider     string
	ModelID      string
	PercentPerHr float64
	Window       time.Duration
	Samples      int
}

// TimeToExhaustion extrapolates how long the remaining fraction lasts at the
// estimated rate. False when the rate is non-positive.
func (b *BurnRate) TimeToExhaustion(remainingFraction float64) (time.Duration, bool) {
	if b.PercentPerHr <= 0 {
		return 0, false
	}
	hours := remainingFraction * 100 / b.PercentPerHr
	return time.Duration(hours * float64(time.Hour)), true
}

// HistorySummary describes the stored snapshot history for one provider.
type HistorySummary struct {
	FirstSnapshot  time.Time
	LastSnapshot   time.Time
	Provider       string
	TotalSnapshots int
}

// HasData reports whether any history exists.
func (h *HistorySummary) HasData() bool {
	return h.TotalSnapshots > 0
}
