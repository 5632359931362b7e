// Package history provides the history tab for charting recorded usage.
package history

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quotabar/quotabar/internal/app"
	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/services"
)

// burnRateWindow is the lookback used when estimating consumption rates.
const burnRateWindow = 6 * time.Hour

// keyMap defines the key bindings specific to the history tab.
type keyMap struct {
	ToggleRange  key.Binding
	NextProvider key.Binding
	PrevProvider key.Binding
	Refresh      key.Binding
	Up           key.Binding
	Down         key.Binding
}

// defaultKeyMap returns the default key bindings for the history tab.
func defaultKeyMap() keyMap {
	return keyMap{
		ToggleRange: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "toggle time range"),
		),
		NextProvider: key.NewBinding(
			key.WithKeys("n", "right"),
			key.WithHelp("n", "next provider"),
		),
		PrevProvider: key.NewBinding(
			key.WithKeys("p", "left"),
			key.WithHelp("p", "prev provider"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
	}
}

// historyLoadedMsg is sent when history data is loaded.
type historyLoadedMsg struct {
	provider  string
	series    []models.ModelSeries
	summary   *models.HistorySummary
	burnRates map[string]*models.BurnRate
}

// historyErrorMsg is sent when there's an error loading history.
type historyErrorMsg struct {
	err string
}

// Model represents the history tab state.
type Model struct {
	state    *app.State
	services *services.Manager
	width    int
	height   int
	keys     keyMap
	viewport viewport.Model

	timeRange   models.TimeRange
	provider    string
	series      []models.ModelSeries
	summary     *models.HistorySummary
	burnRates   map[string]*models.BurnRate
	loading     bool
	lastRefresh time.Time
	errorMsg    string
}

// New creates a new history model.
func New(state *app.State, svc *services.Manager) *Model {
	return &Model{
		state:     state,
		services:  svc,
		keys:      defaultKeyMap(),
		viewport:  viewport.New(0, 0),
		timeRange: models.TimeRange7Days,
	}
}

// Init initializes the history tab.
func (m *Model) Init() tea.Cmd {
	m.loading = true
	return m.loadHistoryCmd()
}

// loadHistoryCmd creates a command to load the selected provider's history.
func (m *Model) loadHistoryCmd() tea.Cmd {
	provider := m.state.SelectedProvider()
	rng := m.timeRange
	svc := m.services

	return func() tea.Msg {
		if svc == nil || svc.Database() == nil {
			return historyErrorMsg{err: "database not available"}
		}
		if provider == "" {
			return historyErrorMsg{err: "no provider selected"}
		}

		database := svc.Database()

		series, err := database.GetFractionSeries(provider, rng)
		if err != nil {
			return historyErrorMsg{err: err.Error()}
		}

		summary, err := database.GetHistorySummary(provider)
		if err != nil {
			return historyErrorMsg{err: err.Error()}
		}

		burnRates := make(map[string]*models.BurnRate, len(series))
		for _, s := range series {
			rate, err := database.EstimateBurnRate(provider, s.ModelID, burnRateWindow)
			if err != nil || rate == nil {
				continue
			}
			burnRates[s.ModelID] = rate
		}

		return historyLoadedMsg{
			provider:  provider,
			series:    series,
			summary:   summary,
			burnRates: burnRates,
		}
	}
}

// Update handles messages for the history tab.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case historyLoadedMsg:
		m.provider = msg.provider
		m.series = msg.series
		m.summary = msg.summary
		m.burnRates = msg.burnRates
		m.loading = false
		m.lastRefresh = time.Now()
		m.errorMsg = ""

	case historyErrorMsg:
		m.loading = false
		m.errorMsg = msg.err
		cmds = append(cmds, func() tea.Msg {
			return app.AddNotificationMsg{
				Type:     app.NotificationError,
				Message:  fmt.Sprintf("History error: %s", msg.err),
				Duration: app.LongNotificationDuration,
			}
		})

	case app.TabSwitchMsg:
		if msg.Tab == app.TabHistory && !m.loading {
			m.loading = true
			cmds = append(cmds, m.loadHistoryCmd())
		}

	case app.SelectedProviderChangedMsg:
		if !m.loading {
			m.loading = true
			cmds = append(cmds, m.loadHistoryCmd())
		}

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd
	switch {
	case key.Matches(msg, m.keys.ToggleRange):
		m.timeRange = m.timeRange.Next()
		m.loading = true
		cmds = append(cmds, m.loadHistoryCmd())

	case key.Matches(msg, m.keys.NextProvider):
		m.state.SetSelectedIndex(m.state.SelectedIndex() + 1)
		m.loading = true
		cmds = append(cmds, m.loadHistoryCmd())

	case key.Matches(msg, m.keys.PrevProvider):
		m.state.SetSelectedIndex(m.state.SelectedIndex() - 1)
		m.loading = true
		cmds = append(cmds, m.loadHistoryCmd())

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		cmds = append(cmds, m.loadHistoryCmd())

	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// SetSize sets the available size for the history tab.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.ToggleRange,
		m.keys.NextProvider,
		m.keys.Refresh,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.ToggleRange, m.keys.Refresh},
		{m.keys.NextProvider, m.keys.PrevProvider},
		{m.keys.Up, m.keys.Down},
	}
}
