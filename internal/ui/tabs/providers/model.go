// Package providers provides the credential management tab.
package providers

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quotabar/quotabar/internal/app"
	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/refresh"
	"github.com/quotabar/quotabar/internal/services"
	"github.com/quotabar/quotabar/internal/ui/components"
	"github.com/quotabar/quotabar/internal/ui/styles"
)

// formField represents which field is currently focused in the connect form.
type formField int

const (
	fieldEmail formField = iota
	fieldToken
	fieldSubmit
	fieldCancel
)

// keyMap defines the key bindings specific to the providers tab.
type keyMap struct {
	Refresh key.Binding
	Delete  key.Binding
	Connect key.Binding
	Escape  key.Binding
}

// defaultKeyMap returns the default key bindings for the providers tab.
func defaultKeyMap() keyMap {
	return keyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r", "enter"),
			key.WithHelp("r", "refresh"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "disconnect"),
		),
		Connect: key.NewBinding(
			key.WithKeys("n", "a"),
			key.WithHelp("n", "connect"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// Model represents the providers tab state.
type Model struct {
	state           *app.State
	manager         *services.Manager
	table           table.Model
	width           int
	height          int
	connecting      bool
	connectProvider string
	focusedField    formField
	emailInput      textinput.Model
	tokenInput      textinput.Model
	spinner         components.LoadingSpinner
	keys            keyMap
	confirmDelete   bool
	deleteProvider  string
}

// New creates a new providers model.
func New(state *app.State, mgr *services.Manager) *Model {
	emailInput := textinput.New()
	emailInput.Placeholder = "user@example.com (optional)"
	emailInput.CharLimit = 100
	emailInput.Width = 40

	tokenInput := textinput.New()
	tokenInput.Placeholder = "Paste session or refresh token..."
	tokenInput.CharLimit = 500
	tokenInput.Width = 40
	tokenInput.EchoMode = textinput.EchoPassword

	columns := []table.Column{
		{Title: "Provider", Width: 14},
		{Title: "Plan", Width: 16},
		{Title: "Lowest", Width: 8},
		{Title: "State", Width: 12},
		{Title: "Credential", Width: 26},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Subtle).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Primary)
	s.Selected = s.Selected.
		Foreground(styles.TextPrimary).
		Background(styles.BgAccent).
		Bold(true)
	t.SetStyles(s)

	return &Model{
		state:        state,
		manager:      mgr,
		table:        t,
		emailInput:   emailInput,
		tokenInput:   tokenInput,
		spinner:      components.NewSpinner("Loading providers..."),
		keys:         defaultKeyMap(),
		focusedField: fieldEmail,
	}
}

// Init initializes the providers tab.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the providers tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	if m.connecting {
		return m.updateConnectForm(msg)
	}

	if m.confirmDelete {
		return m.updateDeleteConfirm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Refresh):
			if provider := m.selectedProvider(); provider != "" {
				return m, func() tea.Msg {
					return app.RefreshRequestedMsg{Provider: provider}
				}
			}

		case key.Matches(msg, m.keys.Delete):
			if provider := m.selectedProvider(); provider != "" {
				m.confirmDelete = true
				m.deleteProvider = provider
			}

		case key.Matches(msg, m.keys.Connect):
			if provider := m.selectedProvider(); provider != "" {
				m.connecting = true
				m.connectProvider = provider
				m.focusedField = fieldEmail
				m.emailInput.Focus()
				m.emailInput.SetValue("")
				m.tokenInput.SetValue("")
				return m, textinput.Blink
			}

		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			cmds = append(cmds, cmd)
		}

	case app.SnapshotsLoadedMsg, app.ServiceEventMsg:
		m.updateTableData()
	}

	return m, tea.Batch(cmds...)
}

// selectedProvider maps the table cursor to a provider id.
func (m *Model) selectedProvider() string {
	providers := m.state.Providers()
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(providers) {
		return ""
	}
	return providers[idx]
}

// updateConnectForm handles the connect credential form.
func (m *Model) updateConnectForm(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.closeForm()
			return m, nil

		case "tab", "down":
			m.focusedField = (m.focusedField + 1) % 4
			m.updateFormFocus()
			return m, textinput.Blink

		case "shift+tab", "up":
			m.focusedField = (m.focusedField - 1 + 4) % 4
			m.updateFormFocus()
			return m, textinput.Blink

		case "enter":
			switch m.focusedField {
			case fieldSubmit:
				return m.submitForm()
			case fieldCancel:
				m.closeForm()
				return m, nil
			default:
				m.focusedField = (m.focusedField + 1) % 4
				m.updateFormFocus()
				return m, textinput.Blink
			}
		}
	}

	var cmd tea.Cmd
	switch m.focusedField {
	case fieldEmail:
		m.emailInput, cmd = m.emailInput.Update(msg)
		cmds = append(cmds, cmd)
	case fieldToken:
		m.tokenInput, cmd = m.tokenInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) submitForm() (app.Tab, tea.Cmd) {
	token := m.tokenInput.Value()
	if token == "" {
		return m, nil
	}

	provider := m.connectProvider
	email := m.emailInput.Value()
	m.closeForm()

	if m.manager == nil {
		return m, nil
	}

	cred := models.Credential{
		Provider: provider,
		Email:    email,
	}
	if provider == models.ProviderAntigravity {
		cred.RefreshToken = token
	} else {
		cred.SessionToken = token
	}

	mgr := m.manager
	return m, func() tea.Msg {
		if err := mgr.Credentials().SetCredential(cred); err != nil {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  fmt.Sprintf("Failed to save credential: %v", err),
				Duration: app.LongNotificationDuration,
			}
		}
		mgr.Refresh(provider, true)
		return app.AddNotificationMsg{
			Type:     app.NotificationSuccess,
			Message:  "Credential saved",
			Duration: app.DefaultNotificationDuration,
		}
	}
}

func (m *Model) closeForm() {
	m.connecting = false
	m.connectProvider = ""
	m.emailInput.Blur()
	m.tokenInput.Blur()
}

// updateDeleteConfirm handles the disconnect confirmation.
func (m *Model) updateDeleteConfirm(msg tea.Msg) (app.Tab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y":
			m.confirmDelete = false
			provider := m.deleteProvider
			m.deleteProvider = ""
			if m.manager == nil {
				return m, nil
			}
			mgr := m.manager
			return m, func() tea.Msg {
				if err := mgr.Credentials().DeleteCredential(provider); err != nil {
					return app.AddNotificationMsg{
						Type:     app.NotificationError,
						Message:  fmt.Sprintf("Failed to disconnect: %v", err),
						Duration: app.LongNotificationDuration,
					}
				}
				return app.AddNotificationMsg{
					Type:     app.NotificationSuccess,
					Message:  "Provider disconnected",
					Duration: app.DefaultNotificationDuration,
				}
			}
		case "n", "N", "esc":
			m.confirmDelete = false
			m.deleteProvider = ""
			return m, nil
		}
	}
	return m, nil
}

// updateFormFocus updates which form field is focused.
func (m *Model) updateFormFocus() {
	m.emailInput.Blur()
	m.tokenInput.Blur()

	switch m.focusedField {
	case fieldEmail:
		m.emailInput.Focus()
	case fieldToken:
		m.tokenInput.Focus()
	}
}

// updateTableData updates the table with current provider data.
func (m *Model) updateTableData() {
	providers := m.state.Providers()
	rows := make([]table.Row, 0, len(providers))

	for _, provider := range providers {
		plan := "-"
		lowest := "-"
		status := "idle"
		cred := "not connected"

		if snap := m.state.Snapshot(provider); snap != nil {
			if snap.PlanName != "" {
				plan = snap.PlanName
			}
			if f, ok := snap.LowestFraction(); ok {
				lowest = formatPercent(f * 100)
			}
		}

		st := m.state.RefreshState(provider)
		switch {
		case st.Phase == refresh.PhaseLoading:
			status = "loading"
		case st.Err != nil:
			status = "error"
		}

		if m.state.HasCredential(provider) {
			cred = "connected"
			if m.manager != nil {
				if email := m.manager.ProviderEmail(provider); email != "" {
					cred = email
				}
			}
		}

		rows = append(rows, table.Row{
			providerDisplayName(provider),
			plan,
			lowest,
			status,
			cred,
		})
	}

	m.table.SetRows(rows)
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

// formatPercent formats a percentage for display.
func formatPercent(p float64) string {
	if p >= 100 {
		return "100%"
	}
	if p < 1 && p > 0 {
		return "<1%"
	}
	return fmt.Sprintf("%.0f%%", p)
}

// SetSize sets the available size for the providers tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetHeight(max(height-10, 3))

	credWidth := width - 60
	if credWidth < 16 {
		credWidth = 16
	}
	if credWidth > 36 {
		credWidth = 36
	}

	columns := []table.Column{
		{Title: "Provider", Width: 14},
		{Title: "Plan", Width: 16},
		{Title: "Lowest", Width: 8},
		{Title: "State", Width: 12},
		{Title: "Credential", Width: credWidth},
	}
	m.table.SetColumns(columns)
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	if m.connecting {
		return []key.Binding{
			key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
			m.keys.Escape,
		}
	}
	return []key.Binding{
		m.keys.Refresh,
		m.keys.Delete,
		m.keys.Connect,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.Refresh, m.keys.Delete},
		{m.keys.Connect, m.keys.Escape},
	}
}
