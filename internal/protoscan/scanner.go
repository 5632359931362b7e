package protoscan

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
)

// reading holds the raw values recovered for one model before the snapshot
// is assembled.
type reading struct {
	fraction  *float64
	rule      Rule
	anchor    int
	resetUnix int64
}

// Scanner locates per-model quota sub-messages in a raw blob using a
// declarative rule table. The zero-cost construction makes it safe to build
// one per parse or share one across calls; it holds no mutable state.
type Scanner struct {
	rules []Rule
}

// NewScanner builds a scanner from the given rules. Passing nil or an empty
// slice selects the built-in table.
func NewScanner(rules []Rule) *Scanner {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	normalized := make([]Rule, len(rules))
	for i, r := range rules {
		normalized[i] = r.normalized()
	}
	return &Scanner{rules: normalized}
}

// scanAll runs every rule against the blob. Readings are ordered by anchor
// position, which is the discovery order the snapshot preserves; rules that
// anchor at the same offset keep table order.
func (s *Scanner) scanAll(buf []byte) []reading {
	var out []reading
	for _, rule := range s.rules {
		if r, ok := scanModel(buf, rule); ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].anchor < out[j].anchor })
	return out
}

// scanModel anchors on the first occurrence of the rule's label and walks
// forward byte-by-byte looking for a decodable quota sub-message. ok is
// false when the label is absent or nothing decodable exists inside the
// lookahead window; that is the normal outcome for models the blob does not
// carry quota for, never an error.
func scanModel(buf []byte, rule Rule) (reading, bool) {
	anchor := bytes.Index(buf, []byte(rule.Label))
	if anchor == notFound {
		return reading{}, false
	}

	limit := anchor + rule.Lookahead
	if limit > len(buf) {
		limit = len(buf)
	}

	for i := anchor; i < limit; i++ {
		if buf[i] != rule.QuotaTag {
			continue
		}
		length, n := readUvarint(buf, i+1)
		if n == 0 {
			continue
		}
		msgStart := i + 1 + n
		rest := len(buf) - msgStart
		if rest < 0 || length > uint64(rest) {
			continue
		}

		fraction, resetUnix := decodeQuotaMsg(buf, msgStart, msgStart+int(length))
		if fraction == nil && resetUnix == 0 {
			continue
		}
		// First decodable sub-message wins; do not keep searching.
		return reading{rule: rule, anchor: anchor, fraction: fraction, resetUnix: resetUnix}, true
	}

	return reading{}, false
}

// decodeQuotaMsg generically walks a quota sub-message bounded to
// [start, end). Field 1 (fixed32) holds the remaining fraction as a
// little-endian float32, accepted only inside [0,1] — out-of-range values
// are false positives and are dropped, not clamped, with the walk
// continuing. Field 2 (bytes) nests the reset-time message. Unknown fields
// are skipped; an unskippable one aborts the walk, keeping whatever was
// already decoded.
func decodeQuotaMsg(buf []byte, start, end int) (*float64, int64) {
	var fraction *float64
	var resetUnix int64

	off := start
	for off < end {
		tag, n := readUvarint(buf, off)
		if n == 0 {
			break
		}
		off += n
		fieldNum := int(tag >> 3)
		wireType := int(tag & 0x7)

		switch {
		case fieldNum == fractionFieldNum && wireType == wireFixed32:
			if off+4 > end {
				return fraction, resetUnix
			}
			bits := binary.LittleEndian.Uint32(buf[off : off+4])
			off += 4
			f := float64(math.Float32frombits(bits))
			if fraction == nil && f >= 0 && f <= 1 {
				fraction = &f
			}
		case fieldNum == resetFieldNum && wireType == wireBytes:
			length, n := readUvarint(buf, off)
			if n == 0 {
				return fraction, resetUnix
			}
			subStart := off + n
			rest := end - subStart
			if rest < 0 || length > uint64(rest) {
				return fraction, resetUnix
			}
			off = subStart + int(length)
			if resetUnix == 0 {
				resetUnix = decodeResetMsg(buf, subStart, subStart+int(length))
			}
		default:
			next := skipField(buf, off, wireType)
			if next == notFound {
				return fraction, resetUnix
			}
			off = next
		}

		if fraction != nil && resetUnix != 0 {
			break
		}
	}

	return fraction, resetUnix
}

// decodeResetMsg walks a reset-time sub-message looking for a varint Unix
// timestamp in field 1. Timestamps outside the sanity window are garbage
// matches and are passed over; 0 means none found.
func decodeResetMsg(buf []byte, start, end int) int64 {
	off := start
	for off < end {
		tag, n := readUvarint(buf, off)
		if n == 0 {
			return 0
		}
		off += n
		fieldNum := int(tag >> 3)
		wireType := int(tag & 0x7)

		if fieldNum == resetUnixField && wireType == wireVarint {
			v, vn := readUvarint(buf, off)
			if vn == 0 {
				return 0
			}
			off += vn
			ts := int64(v)
			if ts > resetUnixMin && ts < resetUnixMax {
				return ts
			}
			continue
		}

		next := skipField(buf, off, wireType)
		if next == notFound {
			return 0
		}
		off = next
	}
	return 0
}

// ScanPlan extracts the subscription plan name from the blob, or "" when no
// known marker substring is present.
func ScanPlan(buf []byte) string {
	for _, hint := range planHints {
		if bytes.Contains(buf, []byte(hint.Marker)) {
			return hint.Plan
		}
	}
	return ""
}
