package settings

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"

	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/ui/styles"
	"github.com/quotabar/quotabar/internal/version"
)

// View renders the settings tab.
func (m *Model) View() string {
	var sections []string

	sections = append(sections,
		m.renderTitle(),
		m.renderPathsCard(),
		m.renderTimingCard(),
		m.renderProvidersCard(),
		m.renderAboutCard(),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	m.viewport.SetContent(content)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(m.viewport.View())
}

// renderTitle renders the settings tab title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Settings")
	subtitle := styles.HelpStyle.Render("Configuration and application information")

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

func (m *Model) cardWidth() int {
	w := m.width - 6
	if w < 50 {
		w = 50
	}
	if w > 80 {
		w = 80
	}
	return w
}

// renderPathsCard renders the configuration paths card.
func (m *Model) renderPathsCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Paths"), "")

	if m.config != nil {
		rows = append(rows, m.renderRow("Database", m.config.DatabasePath))
		rows = append(rows, m.renderRow("Credentials", m.config.CredentialsPath))
		rows = append(rows, m.renderRow("Parse Rules", m.config.RulesPath))
	} else {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	}

	rows = append(rows, "")
	rows = append(rows, styles.HelpStyle.Render("Override paths with QUOTABAR_* environment variables"))

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderTimingCard renders the refresh timing card.
func (m *Model) renderTimingCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Timing"), "")

	if m.config != nil {
		rows = append(rows, m.renderRow("Refresh Interval", m.config.RefreshInterval.String()))
		rows = append(rows, m.renderRow("Fetch Timeout", m.config.FetchTimeout.String()))
		rows = append(rows, m.renderRow("Retry Delay", m.config.RetryDelay.String()))
		rows = append(rows, m.renderRow("Click Debounce", m.config.DebounceWindow.String()))
		rows = append(rows, m.renderRow("Focus Delay", m.config.FocusDelay.String()))
		rows = append(rows, m.renderRow("History Retention", m.config.HistoryRetention.String()))
	} else {
		rows = append(rows, styles.HelpStyle.Render("Configuration not loaded"))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderProvidersCard renders per-provider credential posture.
func (m *Model) renderProvidersCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("Providers"), "")

	for _, provider := range m.state.Providers() {
		value := "not connected"
		if m.services != nil {
			if cred, ok := m.services.Credentials().Credential(provider); ok {
				value = string(cred.Source)
				if cred.Email != "" {
					value = fmt.Sprintf("%s (%s)", cred.Email, cred.Source)
				}
			}
		} else if m.state.HasCredential(provider) {
			value = "connected"
		}
		rows = append(rows, m.renderRow(providerDisplayName(provider), value))
	}

	if m.services != nil && m.services.RelayEnabled() {
		rows = append(rows, "")
		rows = append(rows, m.renderRow("Relay", "enabled"))
		rows = append(rows, m.renderRow("Instance ID", m.services.RelayInstanceID()))
	}

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderAboutCard renders the about/version information card.
func (m *Model) renderAboutCard() string {
	var rows []string
	rows = append(rows, styles.CardTitleStyle.Render("About Quotabar"), "")

	rows = append(rows, m.renderRow("Version", version.Info()))
	rows = append(rows, m.renderRow("Go Version", runtime.Version()))
	rows = append(rows, m.renderRow("Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)))

	return styles.CardStyle.Width(m.cardWidth()).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...),
	)
}

// renderRow renders a key-value row.
func (m *Model) renderRow(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Width(18).
		Foreground(styles.TextMuted)

	valueStyle := lipgloss.NewStyle().
		Foreground(styles.TextPrimary)

	return labelStyle.Render(label+":") + " " + valueStyle.Render(value)
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
