// Package dashboard provides the main dashboard tab showing per-provider quotas.
package dashboard

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quotabar/quotabar/internal/app"
	"github.com/quotabar/quotabar/internal/ui/components"
)

type animationTickMsg time.Time

func animationTickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*40, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// keyMap defines the key bindings specific to the dashboard tab.
type keyMap struct {
	NextProvider  key.Binding
	PrevProvider  key.Binding
	FirstProvider key.Binding
	LastProvider  key.Binding
	Refresh       key.Binding
}

// defaultKeyMap returns the default key bindings for the dashboard tab.
func defaultKeyMap() keyMap {
	return keyMap{
		NextProvider: key.NewBinding(
			key.WithKeys("n", "j", "down"),
			key.WithHelp("j/n", "next provider"),
		),
		PrevProvider: key.NewBinding(
			key.WithKeys("p", "k", "up"),
			key.WithHelp("k/p", "prev provider"),
		),
		FirstProvider: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "first provider"),
		),
		LastProvider: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "last provider"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh selected"),
		),
	}
}

// AnimationState tracks the state of an animation.
type AnimationState struct {
	StartTime      time.Time
	CurrentPercent float64
	TargetPercent  float64
	StartPercent   float64
}

// Model represents the dashboard tab state.
type Model struct {
	state          *app.State
	animations     map[string]*AnimationState
	spinner        components.LoadingSpinner
	keys           keyMap
	viewport       viewport.Model
	timeBar        components.TimeBar
	quotaBar       components.QuotaBar
	width          int
	height         int
	animationFrame int
}

// New creates a new dashboard model.
func New(state *app.State) *Model {
	return &Model{
		state:      state,
		spinner:    components.NewSpinner("Loading quotas..."),
		quotaBar:   components.NewQuotaBar(),
		timeBar:    components.NewTimeBar(),
		keys:       defaultKeyMap(),
		viewport:   viewport.New(0, 0),
		animations: make(map[string]*AnimationState),
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Init(), animationTickCmd())
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (app.Tab, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case animationTickMsg:
		cmds = append(cmds, m.handleAnimationTick(msg))

	case app.ServiceEventMsg, app.SnapshotsLoadedMsg:
		m.syncAnimationTargets(time.Now())
		cmds = append(cmds, animationTickCmd())

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleAnimationTick(msg animationTickMsg) tea.Cmd {
	m.animationFrame++
	now := time.Time(msg)

	animating, hasPendingData := m.syncAnimationTargets(now)
	m.stepAnimations(now)

	shouldTick := animating || m.state.AnyLoading() || m.state.IsInitialLoading() || hasPendingData
	if shouldTick {
		return animationTickCmd()
	}
	return nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	count := m.state.ProviderCount()

	switch {
	case key.Matches(msg, m.keys.NextProvider):
		if count > 0 {
			m.state.SetSelectedIndex((m.state.SelectedIndex() + 1) % count)
			return m.selectionChangedCmd()
		}
	case key.Matches(msg, m.keys.PrevProvider):
		if count > 0 {
			m.state.SetSelectedIndex((m.state.SelectedIndex() - 1 + count) % count)
			return m.selectionChangedCmd()
		}
	case key.Matches(msg, m.keys.FirstProvider):
		m.state.SetSelectedIndex(0)
		return m.selectionChangedCmd()
	case key.Matches(msg, m.keys.LastProvider):
		if count > 0 {
			m.state.SetSelectedIndex(count - 1)
			return m.selectionChangedCmd()
		}
	case key.Matches(msg, m.keys.Refresh):
		provider := m.state.SelectedProvider()
		return func() tea.Msg {
			return app.RefreshRequestedMsg{Provider: provider}
		}
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	return nil
}

// selectionChangedCmd announces the new selection so other tabs can follow it.
func (m *Model) selectionChangedCmd() tea.Cmd {
	index := m.state.SelectedIndex()
	provider := m.state.SelectedProvider()
	return func() tea.Msg {
		return app.SelectedProviderChangedMsg{Index: index, Provider: provider}
	}
}

// SetSize sets the available size for the dashboard.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
}

// syncAnimationTargets points each model's bar animation at the latest
// snapshot fractions.
func (m *Model) syncAnimationTargets(now time.Time) (animating, hasPendingData bool) {
	for _, provider := range m.state.Providers() {
		snap := m.state.Snapshot(provider)
		if snap == nil {
			if m.state.HasCredential(provider) {
				hasPendingData = true
			}
			continue
		}

		for i := range snap.Models {
			mq := &snap.Models[i]
			if mq.RemainingFraction == nil {
				continue
			}
			target := *mq.RemainingFraction * 100
			if m.updateAnimationState(provider+":"+mq.ModelID, target, now) {
				animating = true
			}
		}
	}

	return animating, hasPendingData
}

func (m *Model) updateAnimationState(animKey string, target float64, now time.Time) bool {
	if target < 0 {
		return false
	}

	state, exists := m.animations[animKey]
	if !exists {
		state = &AnimationState{
			CurrentPercent: 0,
			StartPercent:   0,
			TargetPercent:  0,
			StartTime:      now,
		}
		m.animations[animKey] = state
	}

	if target != state.TargetPercent {
		state.StartPercent = state.CurrentPercent
		state.TargetPercent = target
		state.StartTime = now
	}

	return state.CurrentPercent != state.TargetPercent
}

func (m *Model) stepAnimations(now time.Time) {
	for _, state := range m.animations {
		if state.CurrentPercent != state.TargetPercent {
			elapsed := now.Sub(state.StartTime).Seconds()
			duration := 1.5

			if elapsed >= duration {
				state.CurrentPercent = state.TargetPercent
			} else {
				progress := elapsed / duration
				ease := 1.0 - (1.0-progress)*(1.0-progress)
				state.CurrentPercent = state.StartPercent + (state.TargetPercent-state.StartPercent)*ease
			}
		}
	}
}

// ShortHelp returns the key bindings for the short help view.
func (m *Model) ShortHelp() []key.Binding {
	return []key.Binding{
		m.keys.NextProvider,
		m.keys.PrevProvider,
		m.keys.Refresh,
	}
}

// FullHelp returns the key bindings for the full help view.
func (m *Model) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.keys.NextProvider, m.keys.PrevProvider},
		{m.keys.FirstProvider, m.keys.LastProvider},
		{m.keys.Refresh},
	}
}
