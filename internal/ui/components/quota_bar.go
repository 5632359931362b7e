// Package components provides reusable UI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quotabar/quotabar/internal/logger"
	"github.com/quotabar/quotabar/internal/ui/styles"
)

// QuotaBar renders a model's remaining quota as a gradient progress bar.
type QuotaBar struct {
	progress progress.Model
}

// NewQuotaBar creates a new quota bar with gradient colors.
func NewQuotaBar() QuotaBar {
	p := progress.New(
		progress.WithScaledGradient("#ff6b6b", "#51cf66"),
		progress.WithWidth(30),
		progress.WithoutPercentage(),
	)
	return QuotaBar{progress: p}
}

// Init initializes the progress bar model.
func (q QuotaBar) Init() tea.Cmd {
	return nil
}

// Update handles progress bar animation messages.
func (q QuotaBar) Update(msg tea.Msg) (QuotaBar, tea.Cmd) {
	model, cmd := q.progress.Update(msg)
	q.progress = model.(progress.Model)
	return q, cmd
}

// SetWidth sets the progress bar width.
func (q *QuotaBar) SetWidth(width int) {
	q.progress.Width = width
}

// View renders the quota bar with label and percentage.
func (q QuotaBar) View(percent float64, label string, width int) string {
	barWidth := width - 30 // Reserve space for label and percentage
	if barWidth < 10 {
		barWidth = 10
	}
	q.progress.Width = barWidth

	bar := q.progress.ViewAs(percent / 100)

	percentStyle := styles.GetQuotaStyle(percent, false)
	percentStr := percentStyle.Width(6).Align(lipgloss.Right).Render(fmt.Sprintf("%.0f%%", percent))

	labelStr := styles.ProgressLabelStyle.Render(label)

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		labelStr,
		bar,
		" ",
		percentStr,
	)
}

// ViewExhausted renders a fully used-up model's row.
func (q QuotaBar) ViewExhausted(label string, width int) string {
	labelStr := styles.ProgressLabelStyle.Render(label)

	barWidth := width - 30
	if barWidth < 10 {
		barWidth = 10
	}

	emptyBar := lipgloss.NewStyle().
		Foreground(styles.Error).
		Render(strings.Repeat("░", barWidth))

	statusStr := styles.QuotaExhaustedStyle.
		Width(11).
		Align(lipgloss.Right).
		Render("EXHAUSTED")

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		labelStr,
		emptyBar,
		" ",
		statusStr,
	)
}

// ViewUnknown renders a model whose remaining fraction was not recovered.
func (q QuotaBar) ViewUnknown(label string, width int) string {
	labelStr := styles.ProgressLabelStyle.Render(label)

	barWidth := width - 30
	if barWidth < 10 {
		barWidth = 10
	}

	emptyBar := lipgloss.NewStyle().
		Foreground(styles.Subtle).
		Render(strings.Repeat("░", barWidth))

	statusStr := styles.HelpStyle.
		Width(11).
		Align(lipgloss.Right).
		Render("unknown")

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		labelStr,
		emptyBar,
		" ",
		statusStr,
	)
}

// TimeBar visualizes time remaining until a quota reset. The bar fills as
// the reset approaches: more filled means less time left.
type TimeBar struct{}

// NewTimeBar creates a new time bar.
func NewTimeBar() TimeBar {
	return TimeBar{}
}

// resetPeriod picks the reference window the countdown is drawn against.
func resetPeriod(remaining time.Duration) time.Duration {
	switch {
	case remaining <= time.Hour:
		return time.Hour
	case remaining <= 24*time.Hour:
		return 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// RenderTimeBarChars renders just the bar characters for a time bar.
func RenderTimeBarChars(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := int(float64(width) * percent)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	var barChars []string
	for i := 0; i < width; i++ {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor("#ffd93d", "#6c5ce7", t)
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
			barChars = append(barChars, style.Render("█"))
		} else {
			style := lipgloss.NewStyle().Foreground(styles.Subtle)
			barChars = append(barChars, style.Render("░"))
		}
	}

	return strings.Join(barChars, "")
}

// ViewWithLabel renders the countdown bar aligned under a quota bar row.
func (t TimeBar) ViewWithLabel(remaining time.Duration, label string, width int) string {
	period := resetPeriod(remaining)

	percent := 1.0 - remaining.Seconds()/period.Seconds()
	if percent < 0 {
		percent = 0
	}
	if percent > 1 {
		percent = 1
	}

	hours := int(remaining.Hours())
	minutes := int(remaining.Minutes()) % 60
	timeStr := fmt.Sprintf("%dh %02dm", hours, minutes)

	labelWidth := len(label)
	timeWidth := 8
	barWidth := width - (labelWidth + 1) - timeWidth - 2
	if barWidth < 10 {
		barWidth = 10
	}

	bar := RenderTimeBarChars(percent, barWidth)
	labelPadding := strings.Repeat(" ", labelWidth)

	timeStyle := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(timeWidth).
		Align(lipgloss.Right)

	return fmt.Sprintf("%s [%s] %s", labelPadding, bar, timeStyle.Render(timeStr))
}

// RenderGradientBar renders just the bar part with gradient colors.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := int(float64(width) * percent / 100)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	var barChars []string
	for i := 0; i < width; i++ {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor("#ff6b6b", "#51cf66", t)
			style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
			barChars = append(barChars, style.Render("█"))
		} else {
			style := lipgloss.NewStyle().Foreground(styles.Subtle)
			barChars = append(barChars, style.Render("░"))
		}
	}

	return strings.Join(barChars, "")
}

// SimpleQuotaBar renders a simple ASCII progress bar with gradient colors.
func SimpleQuotaBar(percent float64, label string, width int) string {
	labelWidth := len(label) + 1
	percentWidth := 6
	barWidth := width - labelWidth - percentWidth - 4

	if barWidth < 5 {
		barWidth = 5
	}

	bar := RenderGradientBar(percent, barWidth)

	labelStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Render(label)

	percentStr := styles.GetQuotaStyle(percent, false).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", percent))

	return fmt.Sprintf("%s [%s] %s", labelStr, bar, percentStr)
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
