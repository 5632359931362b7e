package protoscan

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quotabar/quotabar/internal/models"
)

// All magic numbers below come from observed Antigravity blobs, not from a
// schema. They are deliberately kept in one place and overridable so that a
// vendor format change is a table edit, not a restructuring.
const (
	// defaultQuotaTag is the tag byte assumed to introduce a model's quota
	// sub-message: field 15, wire type 2 -> (15 << 3) | 2 = 0x7A.
	defaultQuotaTag byte = 0x7A

	// defaultLookahead bounds how far past a label anchor the scanner
	// searches for the quota tag.
	defaultLookahead = 500

	// Fields observed inside the quota sub-message.
	fractionFieldNum = 1 // wire type 5, little-endian float32 in [0,1]
	resetFieldNum    = 2 // wire type 2, nested reset-time message
	resetUnixField   = 1 // wire type 0 varint, Unix seconds

	// Sanity window for reset timestamps. Values outside are garbage
	// matches, not quota data. Exclusive on both ends.
	resetUnixMin = 1704067200 // 2024-01-01T00:00:00Z
	resetUnixMax = 1900000000 // mid-2030
)

// Rule describes how one model's quota sub-message is located in a blob:
// the label string to anchor on, the tag byte that introduces the quota
// sub-message, and how far past the anchor to look for it.
type Rule struct {
	Label     string `yaml:"label"`
	QuotaTag  byte   `yaml:"tag,omitempty"`
	Lookahead int    `yaml:"lookahead,omitempty"`
}

// normalized fills zero fields with the observed defaults.
func (r Rule) normalized() Rule {
	if r.QuotaTag == 0 {
		r.QuotaTag = defaultQuotaTag
	}
	if r.Lookahead <= 0 {
		r.Lookahead = defaultLookahead
	}
	return r
}

// defaultLabels is the allow-list of model names known to appear in blobs.
// Only exact substring matches of these produce snapshot entries.
var defaultLabels = []string{
	"Claude Sonnet 4.5",
	"Claude Sonnet 4.5 (Thinking)",
	"Claude Opus 4.5 (Thinking)",
	"Gemini 3 Pro (High)",
	"Gemini 3 Pro (Low)",
	"Gemini 3 Flash",
	"Gemini 2.5 Flash",
	"GPT-OSS 120B (Medium)",
}

// DefaultRules returns the built-in scan rule table.
func DefaultRules() []Rule {
	rules := make([]Rule, len(defaultLabels))
	for i, label := range defaultLabels {
		rules[i] = Rule{Label: label, QuotaTag: defaultQuotaTag, Lookahead: defaultLookahead}
	}
	return rules
}

// planHints map literal blob substrings to the plan they imply. Checked in
// order; the Ultra marker must precede the Pro variants.
var planHints = []struct {
	Marker string
	Plan   string
}{
	{"Google AI Ultra", models.PlanGoogleAIUltra},
	{"Google AI Pro", models.PlanGoogleAIPro},
	{"Google One AI Premium", models.PlanGoogleAIPro},
}

// ruleFile is the YAML shape of an external rule file. Labels listed there
// are merged over the defaults, so newly observed models can be added
// without a rebuild.
type ruleFile struct {
	Lookahead int    `yaml:"lookahead,omitempty"`
	Rules     []Rule `yaml:"rules"`
}

// LoadRulesFile reads extra scan rules from a YAML file and merges them over
// the defaults: a rule whose label matches a default replaces it, anything
// else is appended. A file-level lookahead applies to every rule that does
// not set its own.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rules := DefaultRules()
	if rf.Lookahead > 0 {
		for i := range rules {
			rules[i].Lookahead = rf.Lookahead
		}
	}

	for _, extra := range rf.Rules {
		if extra.Label == "" {
			continue
		}
		if extra.Lookahead <= 0 && rf.Lookahead > 0 {
			extra.Lookahead = rf.Lookahead
		}
		extra = extra.normalized()

		replaced := false
		for i := range rules {
			if rules[i].Label == extra.Label {
				rules[i] = extra
				replaced = true
				break
			}
		}
		if !replaced {
			rules = append(rules, extra)
		}
	}

	return rules, nil
}

// Slugify derives a model id from its display label: lowercase, with every
// run of non-alphanumeric characters collapsed into a single hyphen. The
// mapping is stable and injective across the default label set.
func Slugify(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	pendingHyphen := false
	for _, r := range strings.ToLower(label) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			if b.Len() > 0 {
				pendingHyphen = true
			}
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
