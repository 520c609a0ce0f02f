package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/solver"
	"github.com/san-kum/pksim/internal/telemetry"
)

// Ticket tracks one accepted request.
type Ticket struct {
	Kind Kind
	Run  uint64

	done     chan struct{}
	err      error
	chained  *Ticket
	chainErr error
}

// Done is closed when the request reaches a terminal phase.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Err returns the request's failure. It is only meaningful after Done is closed.
func (t *Ticket) Err() error { return t.err }

// Wait blocks until the request finishes or ctx ends. Ending ctx does not stop the request.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Chained returns the simulation submitted after a successful fit, or the reason it
// was not submitted. It is only meaningful after Done is closed.
func (t *Ticket) Chained() (*Ticket, error) { return t.chained, t.chainErr }

type outcome struct {
	err    error
	apply  func(*session.State) []string
	sim    *solver.SimulateResult
	simReq *solver.SimulateRequest
	fit    *solver.FitResult
	fitReq *solver.FitRequest
}

// SubmitSimulate starts a forward simulation from the current session. It returns
// ErrBusy while another simulation runs, and a *pk.ValidationError when the session
// cannot produce a request; neither reaches the service.
func (o *Orchestrator) SubmitSimulate(ctx context.Context) (*Ticket, error) {
	return o.submitSimulate(ctx, "user")
}

func (o *Orchestrator) submitSimulate(ctx context.Context, origin string) (*Ticket, error) {
	o.mu.Lock()
	if o.requests[Simulate].Phase == Running {
		o.mu.Unlock()
		return nil, o.busy(ctx, Simulate, origin)
	}
	req, err := o.state.SimulateRequest()
	if err != nil {
		ev := o.failLocked(Simulate, err)
		o.mu.Unlock()
		return nil, o.invalid(ctx, ev, err)
	}
	t, ev := o.beginLocked(Simulate)
	o.mu.Unlock()

	o.log.Info("simulation submitted", "run", t.Run, "origin", origin,
		"compartments", req.Compartments, "doses", len(req.Doses), "steps", req.TSteps)
	o.start(ctx, t, ev, func(ctx context.Context) outcome {
		res, err := o.svc.Simulate(ctx, req)
		if err != nil {
			return outcome{err: err}
		}
		return outcome{sim: res, simReq: req, apply: func(s *session.State) []string {
			s.ApplySimulation(res)
			return nil
		}}
	})
	return t, nil
}

// SubmitFit starts a multi-group fit from the current session. On success the fitted
// values are written back and a simulation is submitted with them.
func (o *Orchestrator) SubmitFit(ctx context.Context) (*Ticket, error) {
	o.mu.Lock()
	if o.requests[Fit].Phase == Running {
		o.mu.Unlock()
		return nil, o.busy(ctx, Fit, "user")
	}
	req, err := o.state.FitRequest()
	if err != nil {
		ev := o.failLocked(Fit, err)
		o.mu.Unlock()
		return nil, o.invalid(ctx, ev, err)
	}
	t, ev := o.beginLocked(Fit)
	o.mu.Unlock()

	o.log.Info("fit submitted", "run", t.Run, "params", req.FitParams,
		"groups", len(req.Groups), "weighting", req.Weighting)
	o.start(ctx, t, ev, func(ctx context.Context) outcome {
		res, err := o.svc.Fit(ctx, req)
		if err != nil {
			return outcome{err: err}
		}
		at := o.now()
		return outcome{fit: res, fitReq: req, apply: func(s *session.State) []string {
			return s.ApplyFit(req, res, at)
		}}
	})
	return t, nil
}

func (o *Orchestrator) busy(ctx context.Context, kind Kind, origin string) error {
	err := fmt.Errorf("%w: %s", ErrBusy, kind)
	o.rec.RequestRejected(ctx, string(kind), "busy")
	o.log.Warn("submission rejected", "kind", kind, "origin", origin, "reason", "busy")
	o.emit(Event{Type: EventRejected, State: o.State(kind), Err: err})
	return err
}

func (o *Orchestrator) invalid(ctx context.Context, ev Event, err error) error {
	o.rec.RequestRejected(ctx, string(ev.State.Kind), "validation")
	o.log.Warn("submission rejected", "kind", ev.State.Kind, "reason", "validation", "error", err)
	o.emit(ev)
	return err
}

// failLocked records a client-side rejection. The phase becomes Failed so the message is
// surfaced, but the session is untouched and nothing was sent.
func (o *Orchestrator) failLocked(kind Kind, err error) Event {
	rs := o.requests[kind]
	rs.Phase = Failed
	rs.LastError = err
	rs.Elapsed = 0
	return Event{Type: EventFailed, State: *rs, Err: err}
}

func (o *Orchestrator) beginLocked(kind Kind) (*Ticket, Event) {
	o.seq++
	rs := o.requests[kind]
	*rs = RequestState{
		Kind:      kind,
		Phase:     Running,
		Run:       o.seq,
		StartedAt: o.now(),
	}
	t := &Ticket{Kind: kind, Run: o.seq, done: make(chan struct{})}
	return t, Event{Type: EventStarted, State: *rs}
}

// start runs call in the background with the progress ticker alongside it.
func (o *Orchestrator) start(ctx context.Context, t *Ticket, started Event, call func(context.Context) outcome) {
	o.rec.RequestStarted(ctx, string(t.Kind))
	o.emit(started)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(t.done)

		callCtx := context.WithoutCancel(ctx)
		if d := o.timeouts[t.Kind]; d > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, d)
			defer cancel()
		}

		results := make(chan outcome, 1)
		go func() { results <- call(callCtx) }()

		ticker := time.NewTicker(o.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				o.tickRun(t)
			case out := <-results:
				ticker.Stop()
				o.finish(ctx, t, out)
				return
			}
		}
	}()
}

func (o *Orchestrator) tickRun(t *Ticket) {
	o.mu.Lock()
	rs := o.requests[t.Kind]
	if rs.Run != t.Run || rs.Phase != Running {
		o.mu.Unlock()
		return
	}
	rs.Elapsed = o.now().Sub(rs.StartedAt)
	rs.Progress = advance(rs.Progress)
	ev := Event{Type: EventTick, State: *rs}
	o.mu.Unlock()
	o.emit(ev)
}

func (o *Orchestrator) finish(ctx context.Context, t *Ticket, out outcome) {
	o.mu.Lock()
	rs := o.requests[t.Kind]
	rs.Elapsed = o.now().Sub(rs.StartedAt)
	ev := Event{State: *rs}
	if out.err != nil {
		rs.Phase = Failed
		rs.LastError = out.err
		ev.Type = EventFailed
		ev.Err = out.err
	} else {
		ev.Applied = out.apply(o.state)
		rs.Phase = Succeeded
		rs.Progress = ProgressDone
		rs.LastError = nil
		ev.Type = EventSucceeded
		ev.Simulation, ev.SimulateRequest = out.sim, out.simReq
		ev.Fit, ev.FitRequest = out.fit, out.fitReq
	}
	ev.State = *rs
	o.mu.Unlock()

	t.err = out.err
	if out.err != nil {
		o.rec.RequestFinished(ctx, string(t.Kind), telemetry.OutcomeFailed, ev.State.Elapsed)
		o.log.Error("request failed", "kind", t.Kind, "run", t.Run, "class", errorClass(out.err), "error", out.err)
	} else {
		o.rec.RequestFinished(ctx, string(t.Kind), telemetry.OutcomeSucceeded, ev.State.Elapsed)
		o.log.Info("request succeeded", "kind", t.Kind, "run", t.Run, "elapsed", ev.State.Elapsed)
	}
	o.emit(ev)

	if t.Kind == Fit && out.err == nil {
		t.chained, t.chainErr = o.submitSimulate(ctx, "fit")
		if t.chainErr != nil {
			o.log.Warn("re-simulation after fit not submitted", "run", t.Run, "error", t.chainErr)
		}
	}
}

func errorClass(err error) string {
	var (
		verr *pk.ValidationError
		terr *pk.TransportError
		serr *pk.SolverError
	)
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.As(err, &terr):
		return "transport"
	case errors.As(err, &serr):
		return "solver"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "internal"
}
