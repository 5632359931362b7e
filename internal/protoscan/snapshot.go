package protoscan

import (
	"time"

	"github.com/quotabar/quotabar/internal/models"
)

// Parse scans a decoded quota blob and assembles a snapshot: recovered
// models in anchor order plus the inferred plan name. now becomes the
// snapshot timestamp. Parsing cannot fail; a blob with no recognizable
// quota data yields a snapshot with an empty model list.
func (s *Scanner) Parse(buf []byte, now time.Time) *models.QuotaSnapshot {
	snap := &models.QuotaSnapshot{
		Timestamp: now,
		Provider:  models.ProviderAntigravity,
		PlanName:  ScanPlan(buf),
		Models:    []models.ModelQuotaInfo{},
	}

	for _, r := range s.scanAll(buf) {
		info := models.ModelQuotaInfo{
			Label:   r.rule.Label,
			ModelID: Slugify(r.rule.Label),
		}
		if r.fraction != nil {
			f := *r.fraction
			info.RemainingFraction = &f
		}
		if r.resetUnix != 0 {
			t := time.Unix(r.resetUnix, 0)
			info.ResetTime = &t
		}
		// Proto encoders omit zero-valued fields, so a reset time with no
		// fraction alongside it means exhausted, not unknown.
		if info.RemainingFraction == nil && info.ResetTime != nil {
			zero := 0.0
			info.RemainingFraction = &zero
		}
		snap.Models = append(snap.Models, info)
	}

	return snap
}

// Parse scans buf with the built-in rule table.
func Parse(buf []byte, now time.Time) *models.QuotaSnapshot {
	return NewScanner(nil).Parse(buf, now)
}
