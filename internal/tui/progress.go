// Package tui shows the progress of a running request in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/pksim/internal/orchestrator"
	"github.com/san-kum/pksim/internal/viz"
)

const barWidth = 40

// Submit starts the request the view follows.
type Submit func(ctx context.Context) (*orchestrator.Ticket, error)

type eventMsg orchestrator.Event

type submittedMsg struct {
	ticket *orchestrator.Ticket
	err    error
}

type frameMsg time.Time

func frame() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return frameMsg(t) })
}

type model struct {
	ctx    context.Context
	kind   orchestrator.Kind
	label  string
	submit Submit

	ticket   *orchestrator.Ticket
	early    []orchestrator.Event
	state    orchestrator.RequestState
	err      error
	done     bool
	detached bool
	frame    int
}

func newModel(ctx context.Context, kind orchestrator.Kind, label string, submit Submit) model {
	return model{ctx: ctx, kind: kind, label: label, submit: submit,
		state: orchestrator.RequestState{Kind: kind}}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(func() tea.Msg {
		t, err := m.submit(m.ctx)
		return submittedMsg{ticket: t, err: err}
	}, frame())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// The request keeps running; there is no cancellation.
			m.detached = true
			return m, tea.Quit
		}
	case submittedMsg:
		m.ticket = msg.ticket
		if msg.err != nil {
			m.err = msg.err
			m.done = true
			return m, tea.Quit
		}
		if m.ticket == nil {
			return m, nil
		}
		// Events of this run may have arrived before the ticket did.
		early := m.early
		m.early = nil
		for _, ev := range early {
			if ev.State.Run != m.ticket.Run {
				continue
			}
			var cmd tea.Cmd
			if m, cmd = m.apply(ev); cmd != nil {
				return m, cmd
			}
		}
	case eventMsg:
		ev := orchestrator.Event(msg)
		if ev.State.Kind != m.kind || ev.Type == orchestrator.EventRejected {
			return m, nil
		}
		if m.ticket == nil {
			m.early = append(m.early, ev)
			return m, nil
		}
		if ev.State.Run != m.ticket.Run {
			return m, nil
		}
		return m.apply(ev)
	case frameMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, frame()
	}
	return m, nil
}

// apply records ev, which belongs to the followed run, and quits on a terminal event.
func (m model) apply(ev orchestrator.Event) (model, tea.Cmd) {
	m.state = ev.State
	switch ev.Type {
	case orchestrator.EventSucceeded:
		m.done = true
		return m, tea.Quit
	case orchestrator.EventFailed:
		m.err = ev.Err
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	switch {
	case m.err != nil:
		b.WriteString(viz.StatusFailed.Render("✗ " + m.label + " failed"))
		b.WriteString("\n")
		b.WriteString(m.err.Error())
	case m.done:
		b.WriteString(viz.StatusOK.Render("✓ " + m.label + " finished"))
		b.WriteString(" ")
		b.WriteString(viz.StatusLine("elapsed", m.state.Elapsed, m.state.Progress))
	default:
		b.WriteString(viz.StatusBusy.Render(viz.AnimatedSpinner(m.frame) + " " + m.label))
		b.WriteString(" ")
		b.WriteString(viz.StatusLine("elapsed", m.state.Elapsed, m.state.Progress))
		b.WriteString("\n")
		b.WriteString(viz.ProgressBar(m.state.Progress, barWidth))
		b.WriteString("\n")
		b.WriteString(viz.Subtle.Render("q to stop watching (the request keeps running)"))
	}
	b.WriteString("\n")
	return b.String()
}

// ErrDetached is returned when the user stopped watching before the request finished.
var ErrDetached = errors.New("tui: stopped watching a running request")

// Run submits a request through submit and follows it until it resolves. The returned
// ticket is nil when the submission was rejected.
func Run(ctx context.Context, o *orchestrator.Orchestrator, kind orchestrator.Kind, label string, submit Submit, out io.Writer) (*orchestrator.Ticket, error) {
	p := tea.NewProgram(newModel(ctx, kind, label, submit), tea.WithOutput(out))
	unsubscribe := o.Subscribe(func(ev orchestrator.Event) { p.Send(eventMsg(ev)) })
	defer unsubscribe()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	m := final.(model)
	if m.detached && !m.done {
		return m.ticket, ErrDetached
	}
	return m.ticket, m.err
}

// Follow is the plain-output counterpart of Run for non-interactive output: it prints one
// line per progress event.
func Follow(ctx context.Context, o *orchestrator.Orchestrator, kind orchestrator.Kind, submit Submit, out io.Writer) (*orchestrator.Ticket, error) {
	var last int
	unsubscribe := o.Subscribe(func(ev orchestrator.Event) {
		if ev.State.Kind != kind {
			return
		}
		switch ev.Type {
		case orchestrator.EventStarted:
			fmt.Fprintf(out, "%s started (run %d)\n", kind, ev.State.Run)
		case orchestrator.EventTick:
			if s := ev.State.ElapsedSeconds(); s != last {
				last = s
				fmt.Fprintf(out, "%s running %ds %3.0f%%\n", kind, s, ev.State.Progress)
			}
		}
	})
	defer unsubscribe()

	t, err := submit(ctx)
	if err != nil {
		return nil, err
	}
	return t, t.Wait(ctx)
}
