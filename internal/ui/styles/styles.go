// Package styles defines the visual styling for the application.
package styles

import "github.com/charmbracelet/lipgloss"

// Color definitions for the quotabar theme.
var (
	// Primary colors
	Primary   = lipgloss.Color("205") // Pink
	Secondary = lipgloss.Color("63")  // Purple
	Subtle    = lipgloss.Color("240") // Gray

	// Provider accent colors
	Antigravity = lipgloss.Color("63")  // Purple
	Cursor      = lipgloss.Color("39")  // Blue
	Trae        = lipgloss.Color("203") // Coral

	// Status colors
	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow
	Info    = lipgloss.Color("39")  // Blue

	// Background colors
	BgDark   = lipgloss.Color("235")
	BgLight  = lipgloss.Color("237")
	BgAccent = lipgloss.Color("236")

	// Text colors
	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")

	// ToastStyle for floating notifications.
	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1).
			MarginBottom(1)
)

// StatusBarStyle is the background of the provider status row.
var StatusBarStyle = lipgloss.NewStyle().
	Background(BgDark)

// StatusBarSegmentStyle wraps one clickable provider segment.
var StatusBarSegmentStyle = lipgloss.NewStyle().
	Background(BgDark).
	Foreground(TextPrimary).
	Padding(0, 1)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SubTitleStyle is used for section headings.
var SubTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Secondary).
	MarginBottom(1)

// DocStyle provides consistent document margins.
var DocStyle = lipgloss.NewStyle().
	Margin(1, 2).
	Padding(0, 1)

// ActiveTabStyle styles the currently selected tab.
var ActiveTabStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("229")).
	Background(Primary).
	Padding(0, 2).
	MarginRight(1)

// InactiveTabStyle styles non-selected tabs.
var InactiveTabStyle = lipgloss.NewStyle().
	Foreground(TextSecondary).
	Background(BgLight).
	Padding(0, 2).
	MarginRight(1)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(1, 2).
	MarginBottom(1)

// CardTitleStyle styles card headers.
var CardTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// SelectedCardStyle highlights the selected provider card.
var SelectedCardStyle = CardStyle.
	BorderForeground(Primary)

// NotificationBaseStyle is the base for all notification types.
var NotificationBaseStyle = lipgloss.NewStyle().
	Padding(0, 2).
	MarginBottom(1).
	Border(lipgloss.RoundedBorder())

// NotificationSuccessStyle for success notifications.
var NotificationSuccessStyle = NotificationBaseStyle.
	BorderForeground(Success).
	Foreground(Success)

// NotificationErrorStyle for error notifications.
var NotificationErrorStyle = NotificationBaseStyle.
	BorderForeground(Error).
	Foreground(Error)

// NotificationWarningStyle for warning notifications.
var NotificationWarningStyle = NotificationBaseStyle.
	BorderForeground(Warning).
	Foreground(Warning)

// NotificationInfoStyle for info notifications.
var NotificationInfoStyle = NotificationBaseStyle.
	BorderForeground(Info).
	Foreground(Info)

// ProgressLabelStyle styles progress bar labels.
var ProgressLabelStyle = lipgloss.NewStyle().
	Foreground(TextSecondary).
	Width(20)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpKeyStyle styles keyboard shortcut keys.
var HelpKeyStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// HelpPanelStyle creates the help overlay panel.
var HelpPanelStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(Primary).
	Padding(1, 3).
	Background(BgDark)

// ListItemStyle styles list items.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedListItemStyle styles selected list items.
var SelectedListItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Foreground(Primary).
	Bold(true).
	SetString("> ")

// QuotaHighStyle for high quota percentages (>50%).
var QuotaHighStyle = lipgloss.NewStyle().
	Foreground(Success)

// QuotaMediumStyle for medium quota percentages (20-50%).
var QuotaMediumStyle = lipgloss.NewStyle().
	Foreground(Warning)

// QuotaLowStyle for low quota percentages (<20%).
var QuotaLowStyle = lipgloss.NewStyle().
	Foreground(Error)

// QuotaExhaustedStyle for models with no remaining quota.
var QuotaExhaustedStyle = lipgloss.NewStyle().
	Foreground(Error).
	Bold(true).
	Italic(true)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// SuccessTextStyle for success messages.
var SuccessTextStyle = lipgloss.NewStyle().
	Foreground(Success)

// WarningTextStyle for warning messages.
var WarningTextStyle = lipgloss.NewStyle().
	Foreground(Warning)

// InfoTextStyle for info messages.
var InfoTextStyle = lipgloss.NewStyle().
	Foreground(Info)

// PlanBadgeStyle styles the plan name extracted from a quota blob.
var PlanBadgeStyle = lipgloss.NewStyle().
	Foreground(Success).
	Bold(true)

// HelpSeparatorStyle separates footer shortcut entries.
var HelpSeparatorStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// FocusedStyle marks the focused form field label.
var FocusedStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// BlurredStyle marks unfocused form field labels.
var BlurredStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// FocusedBorderStyle wraps the focused text input.
var FocusedBorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Primary).
	Padding(0, 1)

// BlurredBorderStyle wraps unfocused text inputs.
var BlurredBorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(0, 1)

// ButtonActiveStyle styles the focused form button.
var ButtonActiveStyle = lipgloss.NewStyle().
	Foreground(TextPrimary).
	Background(Secondary).
	Bold(true).
	Padding(0, 1)

// ButtonInactiveStyle styles unfocused form buttons.
var ButtonInactiveStyle = lipgloss.NewStyle().
	Foreground(TextSecondary).
	Background(BgLight).
	Padding(0, 1)

// ModalContentStyle frames modal dialogs.
var ModalContentStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Primary).
	Padding(1, 2)

// GetQuotaStyle returns the appropriate style based on quota percentage.
func GetQuotaStyle(percent float64, isExhausted bool) lipgloss.Style {
	if isExhausted {
		return QuotaExhaustedStyle
	}
	switch {
	case percent > 50:
		return QuotaHighStyle
	case percent > 20:
		return QuotaMediumStyle
	default:
		return QuotaLowStyle
	}
}

// GetProviderStyle returns the accent style for a provider id.
func GetProviderStyle(provider string) lipgloss.Style {
	switch provider {
	case "antigravity":
		return lipgloss.NewStyle().Foreground(Antigravity)
	case "cursor":
		return lipgloss.NewStyle().Foreground(Cursor)
	case "trae":
		return lipgloss.NewStyle().Foreground(Trae)
	default:
		return lipgloss.NewStyle().Foreground(Subtle)
	}
}

// CenterHorizontal centers content horizontally within a given width.
func CenterHorizontal(content string, width int) string {
	return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(content)
}

// CenterBoth centers content both horizontally and vertically.
func CenterBoth(content string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center).
		AlignVertical(lipgloss.Center).
		Render(content)
}
