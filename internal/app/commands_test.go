package app

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestCommands_Tick(t *testing.T) {
	cmds := NewCommands(nil)
	if cmds.Tick(time.Millisecond) == nil {
		t.Error("Tick returned nil")
	}
	if cmds.DefaultTick() == nil {
		t.Error("DefaultTick returned nil")
	}
}

func TestCommands_Notifications(t *testing.T) {
	cmds := NewCommands(nil)

	tests := []struct {
		name string
		fn   func(string) tea.Cmd
		want NotificationType
	}{
		{"Success", cmds.NotifySuccess, NotificationSuccess},
		{"Error", cmds.NotifyError, NotificationError},
		{"Warning", cmds.NotifyWarning, NotificationWarning},
		{"Info", cmds.NotifyInfo, NotificationInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := tt.fn("msg")
			msg := cmd()

			addMsg, ok := msg.(AddNotificationMsg)
			if !ok {
				t.Fatalf("Expected AddNotificationMsg, got %T", msg)
			}
			if addMsg.Type != tt.want {
				t.Errorf("Type = %v, want %v", addMsg.Type, tt.want)
			}
			if addMsg.Message != "msg" {
				t.Errorf("Message = %q, want msg", addMsg.Message)
			}
		})
	}
}

func TestCommands_ClearNotification(t *testing.T) {
	cmds := NewCommands(nil)
	if cmds.ClearNotification("id", time.Millisecond) == nil {
		t.Error("ClearNotification returned nil")
	}
}

func TestCommands_NilManager(t *testing.T) {
	// Without services the data commands still produce messages instead of
	// panicking, which keeps tab tests free of service setup.
	cmds := NewCommands(nil)

	msg := cmds.LoadSnapshots()()
	loaded, ok := msg.(SnapshotsLoadedMsg)
	if !ok {
		t.Fatalf("Expected SnapshotsLoadedMsg, got %T", msg)
	}
	if len(loaded.Snapshots) != 0 {
		t.Errorf("expected empty snapshot map, got %d entries", len(loaded.Snapshots))
	}

	if got := cmds.RefreshProvider("cursor")(); got != nil {
		t.Errorf("RefreshProvider without services should yield nil msg, got %T", got)
	}
	if got := cmds.RefreshAll()(); got != nil {
		t.Errorf("RefreshAll without services should yield nil msg, got %T", got)
	}
}

func TestCommands_Quit(t *testing.T) {
	cmds := NewCommands(nil)
	msg := cmds.Quit()()
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Errorf("Expected QuitMsg, got %T", msg)
	}
}

func TestCommands_Batch(t *testing.T) {
	cmds := NewCommands(nil)
	if cmds.Batch(cmds.Quit(), cmds.NotifyInfo("test")) == nil {
		t.Error("Batch returned nil")
	}
}

func TestCommands_Delayed(t *testing.T) {
	cmds := NewCommands(nil)
	cmd := cmds.Delayed(time.Millisecond, ToggleHelpMsg{})
	if cmd == nil {
		t.Fatal("Delayed returned nil")
	}
	if msg := cmd(); msg != (ToggleHelpMsg{}) {
		t.Errorf("Delayed should deliver the wrapped message, got %T", msg)
	}
}
