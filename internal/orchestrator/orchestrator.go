package orchestrator

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/solver"
	"github.com/san-kum/pksim/internal/telemetry"
)

const DefaultTickInterval = time.Second

// Orchestrator owns a session and serializes every access to it.
type Orchestrator struct {
	svc      solver.Service
	log      *slog.Logger
	rec      telemetry.Recorder
	tick     time.Duration
	timeouts map[Kind]time.Duration
	parseTO  time.Duration
	defaults session.Settings
	now      func() time.Time

	mu        sync.Mutex
	state     *session.State
	requests  map[Kind]*RequestState
	listeners []subscriber
	nextSub   int
	seq       uint64

	wg sync.WaitGroup
}

type subscriber struct {
	id int
	fn Listener
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.log = l } }

func WithRecorder(r telemetry.Recorder) Option { return func(o *Orchestrator) { o.rec = r } }

// WithTickInterval sets the period of the progress ticker.
func WithTickInterval(d time.Duration) Option { return func(o *Orchestrator) { o.tick = d } }

// WithTimeouts bounds each service call. Zero leaves a kind unbounded.
func WithTimeouts(parse, simulate, fit time.Duration) Option {
	return func(o *Orchestrator) {
		o.parseTO = parse
		o.timeouts[Simulate] = simulate
		o.timeouts[Fit] = fit
	}
}

// WithDefaults sets the settings a replayed document falls back to.
func WithDefaults(s session.Settings) Option { return func(o *Orchestrator) { o.defaults = s } }

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// New returns an orchestrator driving state through svc.
func New(svc solver.Service, state *session.State, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		svc:      svc,
		log:      slog.Default(),
		rec:      telemetry.NewNoop(),
		tick:     DefaultTickInterval,
		timeouts: make(map[Kind]time.Duration),
		defaults: session.DefaultSettings(),
		now:      time.Now,
		state:    state,
		requests: map[Kind]*RequestState{
			Simulate: {Kind: Simulate},
			Fit:      {Kind: Fit},
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tick <= 0 {
		o.tick = DefaultTickInterval
	}
	return o
}

// Subscribe registers l and returns a func that removes it.
func (o *Orchestrator) Subscribe(l Listener) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	o.listeners = append(o.listeners, subscriber{id: id, fn: l})
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.listeners = slices.DeleteFunc(o.listeners, func(s subscriber) bool { return s.id == id })
	}
}

// State returns the state of the latest request of kind.
func (o *Orchestrator) State(kind Kind) RequestState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if rs, ok := o.requests[kind]; ok {
		return *rs
	}
	return RequestState{Kind: kind}
}

// Update runs fn with exclusive access to the session.
func (o *Orchestrator) Update(fn func(*session.State) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fn(o.state)
}

// View runs fn with exclusive access to the session. fn must not keep references.
func (o *Orchestrator) View(fn func(*session.State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.state)
}

// Parse sends equations to the parser and installs the resulting model. A failed parse
// leaves the session untouched.
func (o *Orchestrator) Parse(ctx context.Context, equations string) (*pk.Model, error) {
	m, err := o.parse(ctx, equations)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.state.ApplyModel(equations, m)
	o.mu.Unlock()
	o.log.Info("model parsed", "compartments", len(m.Compartments), "parameters", len(m.Parameters))
	return m.Clone(), nil
}

// LoadDocument replays doc: parse its equations, then apply initials, parameters, doses
// and settings. Nothing is applied when any step fails.
func (o *Orchestrator) LoadDocument(ctx context.Context, doc session.Document) (session.Skipped, error) {
	m, err := o.parse(ctx, doc.Equations)
	if err != nil {
		return session.Skipped{}, err
	}
	o.mu.Lock()
	skipped, err := o.state.ApplyDocument(doc, m, o.defaults)
	o.mu.Unlock()
	if err != nil {
		return skipped, err
	}
	if !skipped.Empty() {
		o.log.Warn("document values without a matching symbol were skipped",
			"initials", skipped.Initials, "parameters", skipped.Parameters)
	}
	return skipped, nil
}

func (o *Orchestrator) parse(ctx context.Context, equations string) (*pk.Model, error) {
	if o.parseTO > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.parseTO)
		defer cancel()
	}
	m, err := o.svc.Parse(ctx, equations)
	if err != nil {
		o.log.Error("parse failed", "error", err)
		return nil, err
	}
	return m, nil
}

// Wait blocks until every accepted request, including chained ones, has finished.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for running requests and flushes telemetry.
func (o *Orchestrator) Close(ctx context.Context) error {
	if err := o.Wait(ctx); err != nil {
		return err
	}
	return o.rec.Close(ctx)
}

func (o *Orchestrator) emit(ev Event) {
	o.mu.Lock()
	subs := slices.Clone(o.listeners)
	o.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}
