package protoscan

import (
	"reflect"
	"testing"
	"time"

	"github.com/quotabar/quotabar/internal/models"
)

func TestParseFullBlob(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	var blob []byte
	blob = append(blob, "account state=ACTIVE plan: Google AI Pro\x00\x01"...)
	body := appendFractionField(nil, 0.75)
	body = appendResetField(body, validUnix)
	blob = append(blob, modelEntry("Gemini 3 Flash", quotaMsg(body))...)
	blob = append(blob, "\x00\x00filler\x00"...)
	blob = append(blob, modelEntry("Claude Sonnet 4.5", quotaMsg(appendFractionField(nil, 0.25)))...)

	snap := Parse(blob, now)

	if snap.Provider != models.ProviderAntigravity {
		t.Errorf("Provider = %q, want %q", snap.Provider, models.ProviderAntigravity)
	}
	if !snap.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", snap.Timestamp, now)
	}
	if snap.PlanName != models.PlanGoogleAIPro {
		t.Errorf("PlanName = %q, want %q", snap.PlanName, models.PlanGoogleAIPro)
	}
	if len(snap.Models) != 2 {
		t.Fatalf("Models count = %d, want 2", len(snap.Models))
	}

	first := snap.Models[0]
	if first.ModelID != "gemini-3-flash" || first.Label != "Gemini 3 Flash" {
		t.Errorf("first model = %q (%q), want gemini-3-flash", first.ModelID, first.Label)
	}
	if first.RemainingFraction == nil || *first.RemainingFraction != 0.75 {
		t.Errorf("first fraction = %v, want 0.75", first.RemainingFraction)
	}
	if first.ResetTime == nil || !first.ResetTime.Equal(time.Unix(validUnix, 0)) {
		t.Errorf("first reset = %v, want %v", first.ResetTime, time.Unix(validUnix, 0))
	}

	second := snap.Models[1]
	if second.ModelID != "claude-sonnet-4-5" {
		t.Errorf("second model = %q, want claude-sonnet-4-5", second.ModelID)
	}
	if second.RemainingFraction == nil || *second.RemainingFraction != 0.25 {
		t.Errorf("second fraction = %v, want 0.25", second.RemainingFraction)
	}
	if second.ResetTime != nil {
		t.Errorf("second reset = %v, want nil", second.ResetTime)
	}
}

func TestParseResetOnlyMeansExhausted(t *testing.T) {
	// Wire encoders drop zero-valued fields, so an entry carrying only a
	// reset time is an exhausted quota, not an unknown one.
	blob := modelEntry("Gemini 3 Flash", quotaMsg(appendResetField(nil, validUnix)))

	snap := Parse(blob, time.Now())
	if len(snap.Models) != 1 {
		t.Fatalf("Models count = %d, want 1", len(snap.Models))
	}
	m := snap.Models[0]
	if m.RemainingFraction == nil || *m.RemainingFraction != 0 {
		t.Fatalf("RemainingFraction = %v, want 0", m.RemainingFraction)
	}
	if !m.IsExhausted() {
		t.Error("IsExhausted() = false, want true")
	}
	if m.ResetTime == nil || !m.ResetTime.Equal(time.Unix(validUnix, 0)) {
		t.Errorf("ResetTime = %v, want %v", m.ResetTime, time.Unix(validUnix, 0))
	}
}

func TestParseNoQuotaData(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
	}{
		{"empty blob", nil},
		{"label without sub-message", append([]byte("Gemini 3 Flash"), make([]byte, 30)...)},
		{"unrelated text", []byte("nothing interesting here")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Parse(tt.blob, time.Now())
			if snap.Models == nil {
				t.Fatal("Models is nil, want empty slice")
			}
			if len(snap.Models) != 0 {
				t.Errorf("Models count = %d, want 0", len(snap.Models))
			}
		})
	}
}

func TestParseIdempotent(t *testing.T) {
	var blob []byte
	body := appendFractionField(nil, 0.5)
	body = appendResetField(body, validUnix)
	blob = append(blob, modelEntry("Claude Opus 4.5 (Thinking)", quotaMsg(body))...)

	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	a := Parse(blob, now)
	b := Parse(blob, now)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated parses differ:\n  %+v\n  %+v", a, b)
	}
}

func TestParseUnknownLabelIgnored(t *testing.T) {
	blob := modelEntry("Mystery Model 9", quotaMsg(appendFractionField(nil, 0.5)))

	snap := Parse(blob, time.Now())
	if len(snap.Models) != 0 {
		t.Errorf("Models count = %d, want 0 for a label outside the rule table", len(snap.Models))
	}
}

func TestParseCustomRules(t *testing.T) {
	blob := modelEntry("Mystery Model 9", quotaMsg(appendFractionField(nil, 0.5)))

	s := NewScanner([]Rule{{Label: "Mystery Model 9"}})
	snap := s.Parse(blob, time.Now())
	if len(snap.Models) != 1 {
		t.Fatalf("Models count = %d, want 1", len(snap.Models))
	}
	if snap.Models[0].ModelID != "mystery-model-9" {
		t.Errorf("ModelID = %q, want mystery-model-9", snap.Models[0].ModelID)
	}
}

func TestParsePrefixLabelsBothMatch(t *testing.T) {
	// "Claude Sonnet 4.5" is a prefix of its Thinking variant, so a blob
	// carrying only the longer label anchors both rules at the same offset.
	// Both entries are emitted, in rule-table order.
	blob := modelEntry("Claude Sonnet 4.5 (Thinking)", quotaMsg(appendFractionField(nil, 0.5)))

	snap := Parse(blob, time.Now())
	if len(snap.Models) != 2 {
		t.Fatalf("Models count = %d, want 2", len(snap.Models))
	}
	if snap.Models[0].ModelID != "claude-sonnet-4-5" || snap.Models[1].ModelID != "claude-sonnet-4-5-thinking" {
		t.Errorf("order = [%s, %s], want table order", snap.Models[0].ModelID, snap.Models[1].ModelID)
	}
	for _, m := range snap.Models {
		if m.RemainingFraction == nil || *m.RemainingFraction != 0.5 {
			t.Errorf("%s fraction = %v, want 0.5", m.ModelID, m.RemainingFraction)
		}
	}
}
