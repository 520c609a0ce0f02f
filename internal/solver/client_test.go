package solver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/experiment"
	"github.com/san-kum/pksim/internal/fitting"
	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/solver"
	"github.com/san-kum/pksim/internal/solver/solvertest"
)

var twoCompartments = pk.Model{Compartments: []string{"A", "B"}, Parameters: []string{"k"}}

func TestClientSimulate(t *testing.T) {
	srv := solvertest.NewServer(twoCompartments)
	defer srv.Close()

	res, err := srv.Client().Simulate(context.Background(), &solver.SimulateRequest{
		Equations:    "dA/dt = -k*A\ndB/dt = k*A",
		Compartments: []string{"A", "B"},
		Parameters:   map[string]float64{"k": 0.2},
		Initials:     map[string]float64{"A": 0, "B": 0},
		Doses:        []dosing.Protocol{{Compartment: "A", Kind: dosing.Bolus, Amount: 10}},
		TStart:       0,
		TEnd:         24,
		TSteps:       100,
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Profile.Len() != 100 {
		t.Errorf("expected 100 time points, got %d", res.Profile.Len())
	}
	if res.Profile.Time[0] != 0 || res.Profile.Time[99] != 24 {
		t.Errorf("expected grid [0, 24], got [%v, %v]", res.Profile.Time[0], res.Profile.Time[99])
	}
	for _, c := range []string{"A", "B"} {
		m, ok := res.PK.Lookup(c)
		if !ok {
			t.Fatalf("expected PK entry for %s", c)
		}
		if m.Cmax == nil || m.AUC == nil {
			t.Errorf("expected Cmax and AUC for %s", c)
		}
	}
	if m, _ := res.PK.Lookup("A"); *m.Cmax != 10 {
		t.Errorf("expected Cmax 10 for A, got %v", *m.Cmax)
	}
}

func TestClientFit(t *testing.T) {
	srv := solvertest.NewServer(twoCompartments)
	defer srv.Close()

	ts := pk.NewTimeSeries([]float64{0, 1, 2})
	if err := ts.AddColumn("A", pk.Column{10, 8, pk.Missing}); err != nil {
		t.Fatal(err)
	}
	res, err := srv.Client().Fit(context.Background(), &solver.FitRequest{
		Equations: "dA/dt = -k*A",
		Initials:  map[string]float64{"A": 0},
		Params:    map[string]float64{"k": 1},
		FitParams: []string{"k"},
		Bounds:    map[string]fitting.Bounds{"k": fitting.Closed(0.01, 10)},
		Weighting: fitting.OneOverY,
		Groups:    []experiment.Payload{{Doses: []dosing.Protocol{}, Observed: ts, Mappings: map[string]string{"A": "A"}}},
	})
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if len(res.Params) != 1 || res.Params[0].Name != "k" {
		t.Fatalf("expected one estimate for k, got %+v", res.Params)
	}
	if v := res.Params[0].Value; v < 0.01 || v > 10 {
		t.Errorf("expected k within bounds, got %v", v)
	}

	sent := srv.LastFit()
	if sent.Weighting != fitting.OneOverY {
		t.Errorf("expected weighting 1/Y on the wire, got %q", sent.Weighting)
	}
	if got := sent.Groups[0].Observed.Columns["A"]; !pk.IsMissing(got[2]) {
		t.Errorf("expected missing sample to round-trip as null, got %v", got[2])
	}
}

func TestClientErrorTaxonomy(t *testing.T) {
	srv := solvertest.NewServer(twoCompartments)
	defer srv.Close()
	c := srv.Client()
	ctx := context.Background()

	srv.FailWith("fit", "Optimization algorithm failed: x0 is infeasible")
	_, err := c.Fit(ctx, &solver.FitRequest{})
	var serr *pk.SolverError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SolverError, got %T: %v", err, err)
	}
	if serr.Message != "Optimization algorithm failed: x0 is infeasible" {
		t.Errorf("expected service message, got %q", serr.Message)
	}

	srv.Reset()
	srv.RespondStatus("simulate", http.StatusInternalServerError)
	_, err = c.Simulate(ctx, &solver.SimulateRequest{})
	var terr *pk.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if terr.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", terr.Status)
	}

	_, err = c.Parse(ctx, "   ")
	var verr *pk.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for empty equations, got %v", err)
	}
	if srv.Calls("parse") != 0 {
		t.Errorf("expected no parse call, got %d", srv.Calls("parse"))
	}
}

func TestClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := solver.NewClient(solver.Config{BaseURL: url, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Parse(context.Background(), "dA/dt = -k*A")
	var terr *pk.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
}

func TestClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	c, _ := solver.NewClient(solver.Config{BaseURL: srv.URL})
	_, err := c.Parse(context.Background(), "dA/dt = -k*A")
	if !errors.Is(err, solver.ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := solver.NewClient(solver.Config{}); !errors.Is(err, solver.ErrNoBaseURL) {
		t.Errorf("expected ErrNoBaseURL, got %v", err)
	}
}

func TestCachedParser(t *testing.T) {
	srv := solvertest.NewServer(twoCompartments)
	defer srv.Close()

	cached := solver.NewCachedParser(srv.Client(), time.Minute)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m, err := cached.Parse(ctx, "dA/dt = -k*A")
		if err != nil {
			t.Fatal(err)
		}
		m.Compartments[0] = "mutated"
	}
	m, _ := cached.Parse(ctx, "dA/dt = -k*A")
	if m.Compartments[0] != "A" {
		t.Errorf("expected cached model to be isolated from callers, got %v", m.Compartments)
	}
	if srv.Calls("parse") != 1 {
		t.Errorf("expected 1 parse call, got %d", srv.Calls("parse"))
	}
	hits, misses := cached.Stats()
	if hits != 3 || misses != 1 {
		t.Errorf("expected 3 hits and 1 miss, got %d and %d", hits, misses)
	}

	if _, err := cached.Parse(ctx, "dB/dt = -k*B"); err != nil {
		t.Fatal(err)
	}
	if srv.Calls("parse") != 2 {
		t.Errorf("expected a new text to reach the service, got %d calls", srv.Calls("parse"))
	}
}

func TestClientAcceptsNonFiniteNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok", "data": {` +
			`"profile": {"Time": [0, 1, 2], "A": [10, NaN, 2.5]},` +
			`"pk": {"A": {"Cmax": 10, "Tmax": 0, "AUC": 19.4, "Half-life": NaN}}}}`))
	}))
	defer srv.Close()

	c, _ := solver.NewClient(solver.Config{BaseURL: srv.URL})
	res, err := c.Simulate(context.Background(), &solver.SimulateRequest{
		Equations:    "dA/dt = -k*A",
		Compartments: []string{"A"},
		Parameters:   map[string]float64{"k": 0.5},
		Initials:     map[string]float64{"A": 10},
		Doses:        []dosing.Protocol{},
		TStart:       0,
		TEnd:         2,
		TSteps:       3,
	})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	col, ok := res.Profile.Column("A")
	if !ok {
		t.Fatal("expected column A")
	}
	if !pk.IsMissing(col[1]) || col[2] != 2.5 {
		t.Errorf("expected [10 missing 2.5], got %v", col)
	}
	m, ok := res.PK.Lookup("A")
	if !ok {
		t.Fatal("expected PK entry for A")
	}
	if m.HalfLife != nil {
		t.Errorf("expected no half-life, got %v", *m.HalfLife)
	}
	if m.Cmax == nil || *m.Cmax != 10 {
		t.Errorf("expected Cmax 10, got %v", m.Cmax)
	}
}
