// Package models defines data structures and domain types.
package models

import (
	"fmt"
	"time"
)

// Provider identifiers used as cache, database and event keys.
const (
	ProviderAntigravity = "antigravity"
	ProviderCursor      = "cursor"
	ProviderTrae        = "trae"
)

// Plan names that can be inferred from an Antigravity quota blob.
const (
	PlanGoogleAIPro   = "Google AI Pro"
	PlanGoogleAIUltra = "Google AI Ultra"
)

// ModelQuotaInfo is the parsed quota state for a single model. A model is
// only present in a snapshot when its label was found in the source data;
// absence means "not observed", never "zero quota".
type ModelQuotaInfo struct {
	ResetTime         *time.Time `json:"resetTime,omitempty"`
	RemainingFraction *float64   `json:"remainingFraction,omitempty"`
	Label             string     `json:"label"`
	ModelID           string     `json:"modelId"`
}

// RemainingPercentage returns the remaining quota as a percentage.
// The second return is false when no fraction was recovered.
func (m *ModelQuotaInfo) RemainingPercentage() (float64, bool) {
	if m.RemainingFraction == nil {
		return 0, false
	}
	return *m.RemainingFraction * 100, true
}

// IsExhausted reports whether the model's quota is fully used up.
func (m *ModelQuotaInfo) IsExhausted() bool {
	return m.RemainingFraction != nil && *m.RemainingFraction == 0
}

// TimeUntilReset returns the duration from now until the quota resets.
// The second return is false when no reset time is known or it has passed.
func (m *ModelQuotaInfo) TimeUntilReset(now time.Time) (time.Duration, bool) {
	if m.ResetTime == nil {
		return 0, false
	}
	d := m.ResetTime.Sub(now)
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// FormatReset renders the time until reset for display, e.g. "2h30m".
func (m *ModelQuotaInfo) FormatReset(now time.Time) string {
	d, ok := m.TimeUntilReset(now)
	if !ok {
		return "—"
	}
	return FormatDuration(d)
}

// Clone returns a deep copy.
func (m *ModelQuotaInfo) Clone() ModelQuotaInfo {
	out := ModelQuotaInfo{Label: m.Label, ModelID: m.ModelID}
	if m.RemainingFraction != nil {
		f := *m.RemainingFraction
		out.RemainingFraction = &f
	}
	if m.ResetTime != nil {
		t := *m.ResetTime
		out.ResetTime = &t
	}
	return out
}

// QuotaSnapshot is an immutable point-in-time capture of per-model quota
// state for one provider. Models are ordered by where their labels were
// discovered in the source buffer, so the order can vary between captures.
type QuotaSnapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	PlanName  string           `json:"planName,omitempty"`
	Provider  string           `json:"provider,omitempty"`
	Models    []ModelQuotaInfo `json:"models"`
}

// Clone returns a deep copy.
func (s *QuotaSnapshot) Clone() *QuotaSnapshot {
	if s == nil {
		return nil
	}
	out := &QuotaSnapshot{
		Timestamp: s.Timestamp,
		PlanName:  s.PlanName,
		Provider:  s.Provider,
	}
	if s.Models != nil {
		out.Models = make([]ModelQuotaInfo, len(s.Models))
		for i := range s.Models {
			out.Models[i] = s.Models[i].Clone()
		}
	}
	return out
}

// Model looks up a model by its id.
func (s *QuotaSnapshot) Model(modelID string) (ModelQuotaInfo, bool) {
	for i := range s.Models {
		if s.Models[i].ModelID == modelID {
			return s.Models[i], true
		}
	}
	return ModelQuotaInfo{}, false
}

// LowestFraction returns the smallest known remaining fraction across all
// models, which is what the status bar summarizes. False when no model
// carries a fraction.
func (s *QuotaSnapshot) LowestFraction() (float64, bool) {
	lowest := 0.0
	found := false
	for i := range s.Models {
		f := s.Models[i].RemainingFraction
		if f == nil {
			continue
		}
		if !found || *f < lowest {
			lowest = *f
			found = true
		}
	}
	return lowest, found
}

// ExhaustedModels returns the labels of all fully exhausted models.
func (s *QuotaSnapshot) ExhaustedModels() []string {
	var out []string
	for i := range s.Models {
		if s.Models[i].IsExhausted() {
			out = append(out, s.Models[i].Label)
		}
	}
	return out
}

// NextReset returns the earliest upcoming reset time across all models.
func (s *QuotaSnapshot) NextReset(now time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	for i := range s.Models {
		rt := s.Models[i].ResetTime
		if rt == nil || !rt.After(now) {
			continue
		}
		if !found || rt.Before(next) {
			next = *rt
			found = true
		}
	}
	return next, found
}

// FormatDuration renders a duration for display, e.g. "45m" or "2h30m".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "Now"
	}
	if d < time.Minute {
		return "< 1m"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
