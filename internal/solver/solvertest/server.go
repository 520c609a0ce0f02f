// Package solvertest provides an in-process model service for tests.
//
// The fake speaks the same envelope protocol as the real service. It simulates every
// compartment as first-order elimination with rate parameter "k" and answers fits by
// clamping the current guesses into their bounds.
package solvertest

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/solver"
)

// Server is a fake model service backed by httptest.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	model      pk.Model
	calls      map[string]int
	gates      map[string]chan struct{}
	entered    chan string
	failures   map[string]string
	statusCode map[string]int
	lastSim    *solver.SimulateRequest
	lastFit    *solver.FitRequest
}

// NewServer starts a fake that parses any text into model.
func NewServer(model pk.Model) *Server {
	s := &Server{
		model:      model,
		calls:      make(map[string]int),
		gates:      make(map[string]chan struct{}),
		entered:    make(chan string, 64),
		failures:   make(map[string]string),
		statusCode: make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(solver.ParsePath, s.handle("parse", s.parse))
	mux.HandleFunc(solver.SimulatePath, s.handle("simulate", s.simulate))
	mux.HandleFunc(solver.FitPath, s.handle("fit", s.fit))
	s.Server = httptest.NewServer(mux)
	return s
}

// Client returns a solver client pointed at the fake.
func (s *Server) Client() *solver.Client {
	c, err := solver.NewClient(solver.Config{BaseURL: s.URL})
	if err != nil {
		panic(err)
	}
	return c
}

// Hold makes calls to ops block until the returned release func is called. With no
// ops it holds simulate and fit.
func (s *Server) Hold(ops ...string) (release func()) {
	if len(ops) == 0 {
		ops = []string{"simulate", "fit"}
	}
	gate := make(chan struct{})
	s.mu.Lock()
	for _, op := range ops {
		s.gates[op] = gate
	}
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			for _, op := range ops {
				if s.gates[op] == gate {
					delete(s.gates, op)
				}
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Entered receives the operation name each time a call reaches the fake.
func (s *Server) Entered() <-chan string { return s.entered }

// FailWith makes op answer 200 with an error envelope carrying message.
func (s *Server) FailWith(op, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = message
}

// RespondStatus makes op answer with a bare HTTP status code.
func (s *Server) RespondStatus(op string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCode[op] = code
}

// Reset clears injected failures.
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.failures)
	clear(s.statusCode)
}

// Calls returns how many requests op has received.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// LastSimulate returns the most recent simulate request.
func (s *Server) LastSimulate() *solver.SimulateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSim
}

// LastFit returns the most recent fit request.
func (s *Server) LastFit() *solver.FitRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFit
}

func (s *Server) handle(op string, fn func(body json.RawMessage) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[op]++
		gate := s.gates[op]
		failure, failing := s.failures[op]
		code := s.statusCode[op]
		s.mu.Unlock()

		select {
		case s.entered <- op:
		default:
		}
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		if code != 0 {
			writeJSON(w, code, map[string]string{"status": "error", "message": http.StatusText(code)})
			return
		}
		if failing {
			writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": failure})
			return
		}

		var body json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "Invalid JSON format in request body."})
			return
		}
		data, err := fn(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": data})
	}
}

func (s *Server) parse(json.RawMessage) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model, nil
}

func (s *Server) simulate(body json.RawMessage) (any, error) {
	var req solver.SimulateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastSim = &req
	s.mu.Unlock()

	grid := pk.TimeGrid(req.TStart, req.TEnd, req.TSteps)
	k := req.Parameters["k"]
	if k <= 0 {
		k = 0.1
	}
	profile := pk.NewTimeSeries(grid)
	var summary pk.Summary
	for _, c := range req.Compartments {
		col := make(pk.Column, len(grid))
		for i, t := range grid {
			col[i] = req.Initials[c] * math.Exp(-k*(t-req.TStart))
			for _, d := range req.Doses {
				if d.Compartment != c {
					continue
				}
				for _, at := range d.Times() {
					if t >= at {
						col[i] += amountAt(d, at, t, k)
					}
				}
			}
		}
		if err := profile.AddColumn(c, col); err != nil {
			return nil, err
		}
		summary = append(summary, pk.Entry{Compartment: c, Metrics: metrics(grid, col, k)})
	}
	return solver.SimulateResult{Profile: profile, PK: summary}, nil
}

func amountAt(d dosing.Protocol, at, t, k float64) float64 {
	if d.Kind == dosing.Infusion && d.Duration > 0 {
		rate := d.Amount / d.Duration
		if t <= at+d.Duration {
			return rate / k * (1 - math.Exp(-k*(t-at)))
		}
		end := rate / k * (1 - math.Exp(-k*d.Duration))
		return end * math.Exp(-k*(t-at-d.Duration))
	}
	return d.Amount * math.Exp(-k*(t-at))
}

func metrics(grid []float64, col pk.Column, k float64) pk.Metrics {
	var m pk.Metrics
	if len(grid) == 0 {
		return m
	}
	imax := 0
	var auc float64
	for i := range col {
		if col[i] > col[imax] {
			imax = i
		}
		if i > 0 {
			auc += (grid[i] - grid[i-1]) * (col[i] + col[i-1]) / 2
		}
	}
	m.Cmax = pk.Float(col[imax])
	m.Tmax = pk.Float(grid[imax])
	m.AUC = pk.Float(auc)
	m.HalfLife = pk.Float(math.Ln2 / k)
	return m
}

func (s *Server) fit(body json.RawMessage) (any, error) {
	var req solver.FitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastFit = &req
	s.mu.Unlock()

	res := solver.FitResult{
		SSRTotal: pk.Float(0.5),
		NFev:     12,
		Message:  "`ftol` termination condition is satisfied.",
	}
	for _, name := range req.FitParams {
		v := req.Params[name]
		b := req.Bounds[name]
		switch {
		case b.Lower != nil && b.Upper != nil:
			v = math.Sqrt(math.Abs(*b.Lower * *b.Upper))
			v = math.Min(math.Max(v, *b.Lower), *b.Upper)
		case b.Lower != nil:
			v = math.Max(v, *b.Lower)
		case b.Upper != nil:
			v = math.Min(v, *b.Upper)
		}
		res.Params = append(res.Params, solver.Estimate{
			Name:    name,
			Value:   v,
			Stderr:  pk.Float(v / 10),
			CILower: pk.Float(v - v/5),
			CIUpper: pk.Float(v + v/5),
		})
	}
	return res, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
