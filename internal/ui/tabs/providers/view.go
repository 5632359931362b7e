package providers

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/ui/components"
	"github.com/quotabar/quotabar/internal/ui/styles"
)

// View renders the providers tab.
func (m *Model) View() string {
	if m.state.IsInitialLoading() && m.state.AnyLoading() {
		return components.RenderSpinnerCentered(m.spinner, m.width, m.height)
	}

	var sections []string

	sections = append(sections, m.renderTitle())

	if m.connecting {
		sections = append(sections, m.renderConnectForm())
	} else if m.confirmDelete {
		sections = append(sections, m.renderDeleteConfirm())
		sections = append(sections, m.renderTable())
	} else {
		sections = append(sections, m.renderTable())
	}

	sections = append(sections, m.renderFooter())

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return styles.DocStyle.
		Width(m.width).
		Height(m.height).
		Render(content)
}

// renderTitle renders the providers tab title.
func (m *Model) renderTitle() string {
	title := styles.TitleStyle.Render("Providers")

	connected := 0
	for _, provider := range m.state.Providers() {
		if m.state.HasCredential(provider) {
			connected++
		}
	}
	subtitle := styles.HelpStyle.Render(fmt.Sprintf(
		"%d of %d providers connected", connected, m.state.ProviderCount()))

	return lipgloss.JoinVertical(lipgloss.Left, title, subtitle, "")
}

// renderTable renders the provider table.
func (m *Model) renderTable() string {
	m.updateTableData()

	cardWidth := m.width - 6
	if cardWidth < 60 {
		cardWidth = 60
	}

	return styles.CardStyle.Width(cardWidth).Render(m.table.View())
}

// renderConnectForm renders the credential entry form.
func (m *Model) renderConnectForm() string {
	cardWidth := m.width - 10
	if cardWidth < 50 {
		cardWidth = 50
	}
	if cardWidth > 80 {
		cardWidth = 80
	}

	var rows []string

	rows = append(rows, styles.CardTitleStyle.Render(
		fmt.Sprintf("Connect %s", providerDisplayName(m.connectProvider))))
	rows = append(rows, "")

	emailLabel := "  Email:"
	if m.focusedField == fieldEmail {
		emailLabel = styles.FocusedStyle.Render("> Email:")
	} else {
		emailLabel = styles.BlurredStyle.Render(emailLabel)
	}
	rows = append(rows, emailLabel)

	emailInputStyle := styles.BlurredBorderStyle
	if m.focusedField == fieldEmail {
		emailInputStyle = styles.FocusedBorderStyle
	}
	rows = append(rows, emailInputStyle.Width(cardWidth-10).Render(m.emailInput.View()))
	rows = append(rows, "")

	tokenName := "Session Token"
	if m.connectProvider == models.ProviderAntigravity {
		tokenName = "Refresh Token"
	}
	tokenLabel := "  " + tokenName + ":"
	if m.focusedField == fieldToken {
		tokenLabel = styles.FocusedStyle.Render("> " + tokenName + ":")
	} else {
		tokenLabel = styles.BlurredStyle.Render(tokenLabel)
	}
	rows = append(rows, tokenLabel)

	tokenInputStyle := styles.BlurredBorderStyle
	if m.focusedField == fieldToken {
		tokenInputStyle = styles.FocusedBorderStyle
	}
	rows = append(rows, tokenInputStyle.Width(cardWidth-10).Render(m.tokenInput.View()))
	rows = append(rows, "")

	submitStyle := styles.ButtonInactiveStyle
	cancelStyle := styles.ButtonInactiveStyle

	if m.focusedField == fieldSubmit {
		submitStyle = styles.ButtonActiveStyle
	}
	if m.focusedField == fieldCancel {
		cancelStyle = styles.ButtonActiveStyle
	}

	buttons := lipgloss.JoinHorizontal(lipgloss.Center,
		submitStyle.Render(" Connect "),
		"  ",
		cancelStyle.Render(" Cancel "),
	)
	rows = append(rows, buttons)
	rows = append(rows, "")

	rows = append(rows, styles.HelpStyle.Render("Tab: next field | Enter: submit | Esc: cancel"))

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)

	return styles.ModalContentStyle.Width(cardWidth).Render(content)
}

// renderDeleteConfirm renders the disconnect confirmation dialog.
func (m *Model) renderDeleteConfirm() string {
	cardWidth := 50

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		styles.WarningTextStyle.Bold(true).Render("Disconnect Provider?"),
		"",
		"This will remove the stored credential for:",
		styles.ErrorTextStyle.Render(providerDisplayName(m.deleteProvider)),
		"",
		"Cached usage data is kept.",
		"",
		lipgloss.JoinHorizontal(lipgloss.Center,
			styles.ButtonActiveStyle.Render(" (Y)es "),
			"  ",
			styles.ButtonInactiveStyle.Render(" (N)o "),
		),
		"",
	)

	return styles.CenterHorizontal(
		styles.ModalContentStyle.Width(cardWidth).Render(content),
		m.width,
	)
}

// renderFooter renders the footer with keyboard shortcuts.
func (m *Model) renderFooter() string {
	var shortcuts []string

	if m.connecting {
		shortcuts = []string{
			styles.HelpKeyStyle.Render("Tab") + " next",
			styles.HelpKeyStyle.Render("Enter") + " submit",
			styles.HelpKeyStyle.Render("Esc") + " cancel",
		}
	} else if m.confirmDelete {
		shortcuts = []string{
			styles.HelpKeyStyle.Render("Y") + " confirm",
			styles.HelpKeyStyle.Render("N") + " cancel",
		}
	} else {
		shortcuts = []string{
			styles.HelpKeyStyle.Render("r") + " refresh",
			styles.HelpKeyStyle.Render("n") + " connect",
			styles.HelpKeyStyle.Render("d") + " disconnect",
		}
	}

	footer := ""
	for i, s := range shortcuts {
		if i > 0 {
			footer += styles.HelpSeparatorStyle.Render(" | ")
		}
		footer += s
	}

	return lipgloss.NewStyle().
		MarginTop(1).
		Foreground(styles.TextMuted).
		Render(footer)
}
