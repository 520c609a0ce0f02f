package orchestrator

import (
	"time"

	"github.com/san-kum/pksim/internal/solver"
)

// Kind is a request kind. Each kind has its own single-flight slot.
type Kind string

const (
	Simulate Kind = "simulate"
	Fit      Kind = "fit"
)

// Phase is the lifecycle phase of the latest request of a kind. Succeeded and Failed
// describe the last run; they never block a new submission.
type Phase int

const (
	Idle Phase = iota
	Running
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

const (
	// ProgressCeiling is the asymptote of the visual progress while running.
	ProgressCeiling = 95.0
	// ProgressDone is the progress of a succeeded request.
	ProgressDone  = 100.0
	progressDecay = 0.1
)

func advance(p float64) float64 { return p + (ProgressCeiling-p)*progressDecay }

// RequestState is the observable state of the latest request of a kind.
type RequestState struct {
	Kind      Kind
	Phase     Phase
	Run       uint64
	StartedAt time.Time
	Elapsed   time.Duration
	Progress  float64
	LastError error
}

// ElapsedSeconds is the whole-second elapsed time shown to the user.
func (s RequestState) ElapsedSeconds() int { return int(s.Elapsed / time.Second) }

// EventType identifies an Event.
type EventType int

const (
	EventStarted EventType = iota
	EventTick
	EventSucceeded
	EventFailed
	EventRejected
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventTick:
		return "tick"
	case EventSucceeded:
		return "succeeded"
	case EventFailed:
		return "failed"
	case EventRejected:
		return "rejected"
	}
	return "unknown"
}

// Event reports a lifecycle change. A succeeded simulate carries its request and
// Simulation; a succeeded fit carries its request, Fit and the Applied names. Err is set
// on failed and rejected events.
type Event struct {
	Type            EventType
	State           RequestState
	Err             error
	Simulation      *solver.SimulateResult
	SimulateRequest *solver.SimulateRequest
	Fit             *solver.FitResult
	FitRequest      *solver.FitRequest
	Applied         []string
}

// Listener receives events. It is called from the request goroutine, never with the
// orchestrator lock held, and must not block for long.
type Listener func(Event)
