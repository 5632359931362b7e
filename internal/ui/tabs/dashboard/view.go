package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/refresh"
	"github.com/quotabar/quotabar/internal/ui/components"
	"github.com/quotabar/quotabar/internal/ui/styles"
)

// View renders the dashboard component.
func (m *Model) View() string {
	if m.state.IsInitialLoading() && m.state.AnyLoading() {
		return m.renderLoading()
	}

	var sections []string

	sections = append(sections, m.renderTitle())

	for i, provider := range m.state.Providers() {
		sections = append(sections, m.renderProviderCard(provider, i == m.state.SelectedIndex()))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderLoading renders the loading state.
func (m *Model) renderLoading() string {
	return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
}

// renderTitle renders the dashboard title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Quotabar")
	subtitle := styles.HelpStyle.Render("AI assistant subscription usage")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func providerDisplayName(id string) string {
	switch id {
	case models.ProviderAntigravity:
		return "Antigravity"
	case models.ProviderCursor:
		return "Cursor"
	case models.ProviderTrae:
		return "Trae"
	default:
		return id
	}
}

// renderProviderCard renders one provider's quota card.
func (m *Model) renderProviderCard(provider string, selected bool) string {
	cardWidth := max(m.width-6, 40)
	contentWidth := max(cardWidth-8, 20)

	var rows []string
	rows = append(rows, m.renderCardHeader(provider, selected))
	rows = append(rows, "")

	st := m.state.RefreshState(provider)
	snap := m.state.Snapshot(provider)

	switch {
	case st.Phase == refresh.PhaseLoading && snap == nil:
		rows = append(rows, "  "+m.spinner.ViewWithLabel())
	case !m.state.HasCredential(provider):
		rows = append(rows, "  "+styles.HelpStyle.Render("No credential configured"))
		rows = append(rows, styles.InfoTextStyle.Render("  ╰─▶ See the Providers tab to connect"))
	case st.Err != nil && snap == nil:
		rows = append(rows, "  "+styles.ErrorTextStyle.Render(fmt.Sprintf("Fetch failed: %v", st.Err)))
	case snap == nil:
		rows = append(rows, "  "+styles.HelpStyle.Render("No data yet"))
	default:
		rows = append(rows, m.renderSnapshot(provider, snap, contentWidth)...)
	}

	card := styles.CardStyle
	if selected {
		card = styles.SelectedCardStyle
	}

	return card.Width(cardWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	) + "\n"
}

func (m *Model) renderCardHeader(provider string, selected bool) string {
	selectionPrefix := "  "
	if selected {
		selectionPrefix = styles.SuccessTextStyle.Render("▸ ")
	}

	accent := styles.GetProviderStyle(provider)
	name := accent.Bold(true).Render(providerDisplayName(provider))

	var badge string
	if snap := m.state.Snapshot(provider); snap != nil && snap.PlanName != "" {
		badge = " " + styles.PlanBadgeStyle.Render(snap.PlanName)
	}

	stale := ""
	if t := m.state.LastUpdated(provider); !t.IsZero() {
		stale = "  " + styles.HelpStyle.Render("updated "+models.FormatDuration(time.Since(t))+" ago")
	}

	if st := m.state.RefreshState(provider); st.Phase == refresh.PhaseLoading {
		stale = "  " + m.spinner.View()
	} else if st.Err != nil {
		stale = "  " + styles.ErrorTextStyle.Render("!")
	}

	return selectionPrefix + name + badge + stale
}

// renderSnapshot renders the per-model quota bars plus reset countdowns.
func (m *Model) renderSnapshot(provider string, snap *models.QuotaSnapshot, width int) []string {
	var lines []string

	accent := styles.GetProviderStyle(provider)
	now := time.Now()

	for i := range snap.Models {
		mq := &snap.Models[i]

		icon := accent.Render("◆")
		label := lipgloss.NewStyle().Bold(true).Render(mq.Label)
		lines = append(lines, fmt.Sprintf("  %s %s", icon, label))

		switch {
		case mq.RemainingFraction == nil:
			lines = append(lines, "  "+m.quotaBar.ViewUnknown("", width))
		case mq.IsExhausted():
			lines = append(lines, "  "+m.quotaBar.ViewExhausted("", width))
		default:
			percent := *mq.RemainingFraction * 100
			if anim, ok := m.animations[provider+":"+mq.ModelID]; ok {
				percent = anim.CurrentPercent
			}
			lines = append(lines, m.renderModelBar(percent, width))
		}

		if mq.ResetTime != nil && mq.ResetTime.After(now) {
			lines = append(lines, m.renderResetLine(mq.ResetTime.Sub(now), width))
		}

		if i < len(snap.Models)-1 {
			lines = append(lines, "")
		}
	}

	if exhausted := snap.ExhaustedModels(); len(exhausted) > 0 {
		lines = append(lines, "")
		lines = append(lines, "  "+styles.WarningTextStyle.Render(
			fmt.Sprintf("▲ %s used up", strings.Join(exhausted, ", "))))
	}

	return lines
}

const indentSpace = "    "

func (m *Model) renderModelBar(percent float64, width int) string {
	const percentWidth = 6

	barWidth := max(width-len(indentSpace)-percentWidth-2, 10)

	percentStr := styles.GetQuotaStyle(percent, false).
		Width(percentWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%.0f%%", percent))

	bar := components.RenderGradientBar(percent, barWidth)

	return lipgloss.JoinHorizontal(lipgloss.Left,
		indentSpace,
		bar,
		" ",
		percentStr,
	)
}

func (m *Model) renderResetLine(remaining time.Duration, width int) string {
	const timeWidth = 6

	barWidth := max(width-len(indentSpace)-timeWidth-2, 10)

	period := resetPeriodFor(remaining)
	timePercent := 1.0 - remaining.Seconds()/period.Seconds()
	if timePercent < 0 {
		timePercent = 0
	}
	if timePercent > 1 {
		timePercent = 1
	}

	timeStr := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(timeWidth).
		Align(lipgloss.Right).
		Render(models.FormatDuration(remaining))

	bar := components.RenderTimeBarChars(timePercent, barWidth)

	return lipgloss.JoinHorizontal(lipgloss.Left,
		indentSpace,
		bar,
		" ",
		timeStr,
	)
}

func resetPeriodFor(remaining time.Duration) time.Duration {
	switch {
	case remaining <= time.Hour:
		return time.Hour
	case remaining <= 24*time.Hour:
		return 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}
