package wizard

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/labkeeper/internal/launch"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func send(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	return New(Hints{DefaultDirectory: t.TempDir()})
}

func TestModel_SpecificTokenEscRevertsToRandom(t *testing.T) {
	m := newTestModel(t)

	// Cursor starts on Random; Specific is two rows down.
	m = send(t, m, "down", "down", " ")
	if m.machine.Phase() != PhasePrompt {
		t.Fatalf("Phase() = %v, want PhasePrompt", m.machine.Phase())
	}
	if !strings.Contains(m.View(), "Token:") {
		t.Error("View() should show the token prompt")
	}

	m = send(t, m, "esc")
	if m.machine.Phase() != PhaseOptions {
		t.Fatalf("Phase() = %v, want PhaseOptions", m.machine.Phase())
	}
	if m.machine.TokenMode() != launch.TokenRandom {
		t.Errorf("TokenMode() = %v, want random", m.machine.TokenMode())
	}
}

func TestModel_SpecificTokenSubmitAndAccept(t *testing.T) {
	m := newTestModel(t)

	m = send(t, m, "down", "down", " ")
	m = send(t, m, "enter")
	if m.errorMsg == "" {
		t.Error("submitting a blank token should show an error")
	}
	if m.machine.Phase() != PhasePrompt {
		t.Fatal("prompt should stay open after a blank token")
	}

	m = typeText(t, m, "abc123")
	m = send(t, m, "enter")
	if m.machine.Phase() != PhaseOptions {
		t.Fatalf("Phase() = %v after submit", m.machine.Phase())
	}
	if !strings.Contains(m.View(), "abc123") {
		t.Error("View() should show the captured token")
	}

	next, cmd := m.Update(key("enter"))
	m = next.(Model)
	if cmd == nil {
		t.Error("accepting should quit the program")
	}

	res := m.machine.Result()
	if res.Outcome != Accepted {
		t.Fatalf("Outcome = %v, want accepted", res.Outcome)
	}
	if res.Config.Token.Value != "abc123" {
		t.Errorf("Token.Value = %q", res.Config.Token.Value)
	}
	if m.View() != "" {
		t.Error("View() should be empty once finished")
	}
}

func TestModel_PasswordIsMasked(t *testing.T) {
	m := newTestModel(t)

	m = send(t, m, "down", "down", "down", " ")
	m = typeText(t, m, "hunter2")
	if strings.Contains(m.View(), "hunter2") {
		t.Error("password should not be echoed")
	}
	m = send(t, m, "enter")
	if !m.machine.Selected(ItemPassword) {
		t.Error("password toggle should be on")
	}
}

func TestModel_BackAndCancel(t *testing.T) {
	tests := []struct {
		key  string
		want Outcome
	}{
		{"esc", Back},
		{"q", Cancelled},
		{"ctrl+c", Cancelled},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			m := newTestModel(t)
			next, cmd := m.Update(key(tt.key))
			m = next.(Model)

			if cmd == nil {
				t.Error("expected quit command")
			}
			if got := m.machine.Result().Outcome; got != tt.want {
				t.Errorf("Outcome = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModel_CursorWraps(t *testing.T) {
	m := newTestModel(t)
	n := len(m.machine.Items())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if m.cursor != n-1 {
		t.Errorf("cursor = %d, want %d", m.cursor, n-1)
	}
	m = send(t, m, "down")
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}
