package providers

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quotabar/quotabar/internal/app"
	"github.com/quotabar/quotabar/internal/models"
	"github.com/quotabar/quotabar/internal/refresh"
)

func testState() *app.State {
	st := app.NewState([]string{
		models.ProviderAntigravity,
		models.ProviderCursor,
		models.ProviderTrae,
	})
	st.SetInitialLoaded()
	return st
}

func fraction(f float64) *float64 { return &f }

func TestNew(t *testing.T) {
	m := New(testState(), nil)
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.connecting || m.confirmDelete {
		t.Error("new model should start with no modal open")
	}
}

func TestInit(t *testing.T) {
	m := New(testState(), nil)
	if cmd := m.Init(); cmd == nil {
		t.Error("Init should return the textinput blink command")
	}
}

func TestView(t *testing.T) {
	st := testState()
	st.SetSnapshot(models.ProviderCursor, &models.QuotaSnapshot{
		Timestamp: time.Now(),
		Provider:  models.ProviderCursor,
		PlanName:  "Pro",
		Models: []models.ModelQuotaInfo{
			{ModelID: "gpt-5", Label: "GPT-5", RemainingFraction: fraction(0.4)},
		},
	})
	st.SetHasCredential(models.ProviderCursor, true)

	m := New(st, nil)
	m.SetSize(120, 40)
	view := m.View()

	if !strings.Contains(view, "Providers") {
		t.Error("view should contain title")
	}
	if !strings.Contains(view, "1 of 3 providers connected") {
		t.Errorf("view should show connected count, got:\n%s", view)
	}
	if !strings.Contains(view, "Cursor") {
		t.Error("view should list the Cursor provider")
	}
	if !strings.Contains(view, "Pro") {
		t.Error("view should show the plan name")
	}
}

func TestRefreshKey(t *testing.T) {
	m := New(testState(), nil)
	m.SetSize(120, 40)
	m.updateTableData()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if cmd == nil {
		t.Fatal("r should produce a refresh command")
	}
	msg := cmd()
	req, ok := msg.(app.RefreshRequestedMsg)
	if !ok {
		t.Fatalf("expected RefreshRequestedMsg, got %T", msg)
	}
	if req.Provider != models.ProviderAntigravity {
		t.Errorf("expected first provider selected, got %q", req.Provider)
	}
}

func TestConnectFormOpenAndCancel(t *testing.T) {
	m := New(testState(), nil)
	m.SetSize(120, 40)
	m.updateTableData()

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	if !m.connecting {
		t.Fatal("n should open the connect form")
	}
	if !strings.Contains(m.View(), "Connect Antigravity") {
		t.Error("form view should name the provider")
	}
	if !strings.Contains(m.View(), "Refresh Token") {
		t.Error("antigravity form should ask for a refresh token")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.connecting {
		t.Error("esc should close the form")
	}
}

func TestConnectFormFieldCycling(t *testing.T) {
	m := New(testState(), nil)
	m.SetSize(120, 40)
	m.updateTableData()
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})

	if m.focusedField != fieldEmail {
		t.Fatalf("form should open on email field, got %v", m.focusedField)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedField != fieldToken {
		t.Errorf("tab should move to token field, got %v", m.focusedField)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedField != fieldEmail {
		t.Errorf("tab should wrap back to email field, got %v", m.focusedField)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.focusedField != fieldCancel {
		t.Errorf("shift+tab should wrap to cancel, got %v", m.focusedField)
	}
}

func TestSubmitRequiresToken(t *testing.T) {
	m := New(testState(), nil)
	m.SetSize(120, 40)
	m.updateTableData()
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})

	m.focusedField = fieldSubmit
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("submit with empty token should do nothing")
	}
	if !m.connecting {
		t.Error("form should stay open when token is empty")
	}
}

func TestDeleteConfirm(t *testing.T) {
	m := New(testState(), nil)
	m.SetSize(120, 40)
	m.updateTableData()

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	if !m.confirmDelete {
		t.Fatal("d should open the disconnect confirmation")
	}
	if m.deleteProvider != models.ProviderAntigravity {
		t.Errorf("expected selected provider, got %q", m.deleteProvider)
	}
	if !strings.Contains(m.View(), "Disconnect Provider?") {
		t.Error("view should show the confirmation dialog")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	if m.confirmDelete {
		t.Error("n should dismiss the confirmation")
	}
}

func TestTableRowsReflectState(t *testing.T) {
	st := testState()
	st.SetRefreshState(models.ProviderTrae, refresh.State{Phase: refresh.PhaseLoading})
	st.SetHasCredential(models.ProviderTrae, true)

	m := New(st, nil)
	m.SetSize(120, 40)
	m.updateTableData()

	rows := m.table.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	var traeRow []string
	for _, row := range rows {
		if row[0] == "Trae" {
			traeRow = row
		}
	}
	if traeRow == nil {
		t.Fatal("missing Trae row")
	}
	if traeRow[3] != "loading" {
		t.Errorf("expected loading state, got %q", traeRow[3])
	}
	if traeRow[4] != "connected" {
		t.Errorf("expected connected credential, got %q", traeRow[4])
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{100, "100%"},
		{62.4, "62%"},
		{0.5, "<1%"},
		{0, "0%"},
	}
	for _, tt := range tests {
		if got := formatPercent(tt.in); got != tt.want {
			t.Errorf("formatPercent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHelp(t *testing.T) {
	m := New(testState(), nil)
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp should not be empty")
	}
	m.connecting = true
	if len(m.ShortHelp()) == 0 {
		t.Error("ShortHelp should not be empty while connecting")
	}
	if len(m.FullHelp()) == 0 {
		t.Error("FullHelp should not be empty")
	}
}
