package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/pksim/internal/orchestrator"
)

func newTestModel() model {
	return newModel(context.Background(), orchestrator.Fit, "fit", func(context.Context) (*orchestrator.Ticket, error) {
		return nil, nil
	})
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestProgressFollowsOwnRun(t *testing.T) {
	m := newTestModel()
	m, _ = update(t, m, submittedMsg{ticket: &orchestrator.Ticket{Kind: orchestrator.Fit, Run: 2}})

	m, _ = update(t, m, eventMsg{Type: orchestrator.EventTick,
		State: orchestrator.RequestState{Kind: orchestrator.Fit, Run: 2, Progress: 40, Elapsed: 3 * time.Second}})
	if m.state.Progress != 40 {
		t.Errorf("expected progress 40, got %v", m.state.Progress)
	}
	if !strings.Contains(m.View(), "3s") {
		t.Errorf("expected elapsed seconds in view:\n%s", m.View())
	}

	m, _ = update(t, m, eventMsg{Type: orchestrator.EventTick,
		State: orchestrator.RequestState{Kind: orchestrator.Simulate, Run: 3, Progress: 90}})
	if m.state.Progress != 40 {
		t.Errorf("expected other kinds to be ignored, got %v", m.state.Progress)
	}

	m, cmd := update(t, m, eventMsg{Type: orchestrator.EventSucceeded,
		State: orchestrator.RequestState{Kind: orchestrator.Fit, Run: 2, Progress: 100}})
	if !m.done || m.err != nil {
		t.Errorf("expected done without error")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
	if !strings.Contains(m.View(), "finished") {
		t.Errorf("expected success view:\n%s", m.View())
	}
}

func TestProgressShowsFailure(t *testing.T) {
	m := newTestModel()
	m, _ = update(t, m, submittedMsg{ticket: &orchestrator.Ticket{Kind: orchestrator.Fit, Run: 1}})
	m, _ = update(t, m, eventMsg{Type: orchestrator.EventFailed, Err: errors.New("fit failed: residuals are not finite"),
		State: orchestrator.RequestState{Kind: orchestrator.Fit, Run: 1, Phase: orchestrator.Failed, Progress: 61}})

	if m.err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(m.View(), "residuals are not finite") {
		t.Errorf("expected message in view:\n%s", m.View())
	}
}

func TestProgressRejectedSubmission(t *testing.T) {
	m := newTestModel()
	m, cmd := update(t, m, submittedMsg{err: orchestrator.ErrBusy})
	if !errors.Is(m.err, orchestrator.ErrBusy) || !m.done {
		t.Errorf("expected busy error, got %v", m.err)
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestProgressDetach(t *testing.T) {
	m := newTestModel()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !m.detached {
		t.Error("expected detached")
	}
}

func TestProgressWaitsForTicketAfterEarlyResult(t *testing.T) {
	m := newTestModel()
	m, _ = update(t, m, eventMsg{Type: orchestrator.EventStarted,
		State: orchestrator.RequestState{Kind: orchestrator.Fit, Run: 4, Phase: orchestrator.Running}})
	m, cmd := update(t, m, eventMsg{Type: orchestrator.EventSucceeded,
		State: orchestrator.RequestState{Kind: orchestrator.Fit, Run: 4, Progress: 100}})
	if m.done || cmd != nil {
		t.Fatal("expected to keep running until the ticket arrives")
	}

	m, cmd = update(t, m, submittedMsg{ticket: &orchestrator.Ticket{Kind: orchestrator.Fit, Run: 4}})
	if !m.done || m.err != nil {
		t.Errorf("expected done without error, got done=%v err=%v", m.done, m.err)
	}
	if m.ticket == nil || m.ticket.Run != 4 {
		t.Errorf("expected ticket of run 4, got %+v", m.ticket)
	}
	if m.state.Progress != 100 {
		t.Errorf("expected progress 100, got %v", m.state.Progress)
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestProgressIgnoresEarlyEventsOfOtherRuns(t *testing.T) {
	m := newTestModel()
	m, _ = update(t, m, eventMsg{Type: orchestrator.EventFailed, Err: errors.New("stale"),
		State: orchestrator.RequestState{Kind: orchestrator.Fit, Run: 3, Phase: orchestrator.Failed}})
	m, cmd := update(t, m, submittedMsg{ticket: &orchestrator.Ticket{Kind: orchestrator.Fit, Run: 4}})
	if m.done || m.err != nil || cmd != nil {
		t.Errorf("expected the stale failure to be dropped, got done=%v err=%v", m.done, m.err)
	}
}
