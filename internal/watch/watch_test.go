package watch

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"fieldops-sim/internal/orchestrator"
)

func TestUpdateStatusMsg(t *testing.T) {
	m := newModel("http://localhost:8080")

	updated, _ := m.Update(statusMsg{status: orchestrator.Status{
		Running:   true,
		Cycles:    3,
		LastCycle: time.Now(),
	}})

	got := updated.(model)
	if !got.havePoll {
		t.Fatal("poll result not recorded")
	}
	view := got.View()
	if !strings.Contains(view, "running") {
		t.Errorf("view missing running state: %s", view)
	}
	if !strings.Contains(view, "3") {
		t.Errorf("view missing cycle count: %s", view)
	}
}

func TestUpdatePollError(t *testing.T) {
	m := newModel("http://localhost:8080")

	updated, _ := m.Update(pollErrMsg{err: errors.New("connection refused")})

	view := updated.(model).View()
	if !strings.Contains(view, "unreachable") {
		t.Errorf("view missing error state: %s", view)
	}
}

func TestUpdateQuitKey(t *testing.T) {
	m := newModel("http://localhost:8080")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("expected tea.Quit, got %T", msg)
	}
}
