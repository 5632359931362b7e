package history

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/ui/components"
	"github.com/quotabar/quotabar/internal/ui/styles"
)

// View renders the history tab.
func (m *Model) View() string {
	if m.loading {
		return m.renderLoading()
	}
	if m.errorMsg != "" {
		return m.renderError()
	}
	if m.summary == nil || !m.summary.HasData() || len(m.series) == 0 {
		return m.renderEmpty()
	}

	var sections []string
	sections = append(sections,
		m.renderHeader(),
		m.renderFractionChart(),
		m.renderBurnRates(),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

func (m *Model) renderLoading() string {
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(styles.HelpStyle.Render("Loading history..."))
}

func (m *Model) renderError() string {
	content := fmt.Sprintf("%s %s",
		styles.ErrorTextStyle.Render("Error:"),
		m.errorMsg,
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderEmpty() string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render("History"),
		"",
		styles.HelpStyle.Render("No history recorded for this provider yet."),
		styles.HelpStyle.Render("Snapshots accumulate as quota data is fetched."),
	)
	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m *Model) renderHeader() string {
	title := styles.TitleStyle.Render("History: " + providerDisplayName(m.provider))

	rangeStyle := lipgloss.NewStyle().
		Foreground(styles.Primary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Primary)

	rangeIndicator := rangeStyle.Render(fmt.Sprintf("[t] %s", m.timeRange.String()))

	header := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", rangeIndicator)

	var subtitle string
	if m.summary != nil && !m.summary.FirstSnapshot.IsZero() {
		subtitle = styles.HelpStyle.Render(fmt.Sprintf("%d snapshots, %s → %s",
			m.summary.TotalSnapshots,
			m.summary.FirstSnapshot.Format("Jan 2 15:04"),
			m.summary.LastSnapshot.Format("Jan 2 15:04"),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, subtitle, "")
}

// renderFractionChart plots the remaining fraction of every model over time.
func (m *Model) renderFractionChart() string {
	cardWidth := max(m.width-6, 40)

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Remaining Quota (%)"), "")

	data := make([][]float64, 0, len(m.series))
	legend := make([]components.LegendItem, 0, len(m.series))
	for i, s := range m.series {
		data = append(data, s.Fractions())
		label := s.Label
		if label == "" {
			label = s.ModelID
		}
		legend = append(legend, components.LegendItem{
			Label: label,
			Color: components.SeriesColor(i),
		})
	}

	chartWidth := max(cardWidth-12, 30)
	chartHeight := 10

	chart := components.RenderMultiLineChart(data, chartWidth, chartHeight,
		fmt.Sprintf("Remaining quota over %s", strings.ToLower(m.timeRange.String())))

	for _, line := range strings.Split(chart, "\n") {
		rows = append(rows, "  "+line)
	}

	rows = append(rows, "", "  "+components.RenderLegend(legend), "")

	return styles.CardStyle.Width(cardWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderBurnRates lists consumption estimates per model.
func (m *Model) renderBurnRates() string {
	cardWidth := max(m.width-6, 40)

	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Burn Rate"), "")

	if len(m.burnRates) == 0 {
		rows = append(rows, styles.HelpStyle.Render("  Not enough samples to estimate consumption."))
	} else {
		for _, s := range m.series {
			rate, ok := m.burnRates[s.ModelID]
			if !ok {
				continue
			}
			label := s.Label
			if label == "" {
				label = s.ModelID
			}

			line := fmt.Sprintf("  %s  %s",
				lipgloss.NewStyle().Bold(true).Render(label),
				styles.InfoTextStyle.Render(fmt.Sprintf("%.1f%%/hr", rate.PercentPerHr)),
			)

			if len(s.Points) > 0 {
				last := s.Points[len(s.Points)-1].Fraction
				if eta, ok := rate.TimeToExhaustion(last); ok {
					line += styles.HelpStyle.Render(
						fmt.Sprintf("  ~%s until exhausted", models.FormatDuration(eta)))
				}
			}

			rows = append(rows, line)
		}
	}

	rows = append(rows, "")

	return styles.CardStyle.Width(cardWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
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
