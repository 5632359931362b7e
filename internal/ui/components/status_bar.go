package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quotabar/quotabar/internal/ui/styles"
)

// SegmentState describes how one provider segment is rendered.
type SegmentState int

const (
	// SegmentIdle shows the provider's lowest remaining percentage.
	SegmentIdle SegmentState = iota
	// SegmentLoading shows a spinner frame while a fetch is in flight.
	SegmentLoading
	// SegmentError marks a provider whose last fetch failed.
	SegmentError
	// SegmentSignedOut marks a provider with no stored credential.
	SegmentSignedOut
	// SegmentNoData marks a signed-in provider that has not produced a
	// snapshot yet.
	SegmentNoData
)

// StatusSegment is one provider's slice of the status bar.
type StatusSegment struct {
	Provider string
	Label    string
	Percent  float64
	State    SegmentState
	Spinner  string
}

// StatusBar renders the clickable provider row at the top of the screen.
// View records where each segment landed so a mouse x coordinate can be
// mapped back to the provider that was clicked.
type StatusBar struct {
	segments []StatusSegment
	starts   []int
	ends     []int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBar {
	return StatusBar{}
}

// SetSegments replaces the rendered segments.
func (s *StatusBar) SetSegments(segments []StatusSegment) {
	s.segments = segments
}

// Segments returns the current segments.
func (s *StatusBar) Segments() []StatusSegment {
	return s.segments
}

// View renders the bar and records segment hit zones.
func (s *StatusBar) View(width int) string {
	s.starts = s.starts[:0]
	s.ends = s.ends[:0]

	var b strings.Builder
	x := 0
	for i := range s.segments {
		rendered := s.renderSegment(&s.segments[i])
		w := lipgloss.Width(rendered)

		s.starts = append(s.starts, x)
		s.ends = append(s.ends, x+w)

		b.WriteString(rendered)
		x += w
	}

	bar := b.String()
	if width > x {
		bar += styles.StatusBarStyle.Render(strings.Repeat(" ", width-x))
	}
	return bar
}

// HitTest maps a mouse x coordinate on the bar to the provider whose
// segment covers it.
func (s *StatusBar) HitTest(x int) (string, bool) {
	for i := range s.segments {
		if i < len(s.starts) && x >= s.starts[i] && x < s.ends[i] {
			return s.segments[i].Provider, true
		}
	}
	return "", false
}

func (s *StatusBar) renderSegment(seg *StatusSegment) string {
	var body string
	switch seg.State {
	case SegmentLoading:
		body = fmt.Sprintf("%s %s", seg.Label, seg.Spinner)
	case SegmentError:
		body = seg.Label + " " + styles.ErrorTextStyle.Render("!")
	case SegmentSignedOut:
		body = seg.Label + " " + styles.HelpStyle.Render("signed out")
	case SegmentNoData:
		body = seg.Label + " " + styles.HelpStyle.Render("--")
	default:
		pct := styles.GetQuotaStyle(seg.Percent, false).Render(fmt.Sprintf("%.0f%%", seg.Percent))
		body = seg.Label + " " + pct
	}
	return styles.StatusBarSegmentStyle.Render(body)
}
