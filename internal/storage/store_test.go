package storage

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/experiment"
	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/solver"
)

func ptr(v float64) *float64 { return &v }

func profile(t *testing.T) *pk.TimeSeries {
	t.Helper()
	ts := pk.NewTimeSeries([]float64{0, 0.5, 1})
	if err := ts.AddColumn("A", pk.Column{10, 6.06, 3.68}); err != nil {
		t.Fatal(err)
	}
	if err := ts.AddColumn("B", pk.Column{0, math.NaN(), 4.1}); err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestStoreSaveLoadSimulation(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	req := &solver.SimulateRequest{
		Equations:    "dA/dt = -k*A",
		Compartments: []string{"A", "B"},
		Parameters:   map[string]float64{"k": 1},
		Doses:        []dosing.Protocol{{Compartment: "A", Kind: dosing.Bolus, Amount: 10}},
		TEnd:         1,
		TSteps:       3,
	}
	res := &solver.SimulateResult{
		Profile: profile(t),
		PK:      pk.Summary{{Compartment: "A", Metrics: pk.Metrics{Cmax: ptr(10), Tmax: ptr(0)}}},
	}

	runID, err := st.SaveSimulation("session-1", req, res)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Kind != KindSimulation {
		t.Errorf("expected kind %q, got %q", KindSimulation, meta.Kind)
	}
	if meta.Session != "session-1" {
		t.Errorf("expected session 'session-1', got '%s'", meta.Session)
	}
	if meta.Parameters["k"] != 1 {
		t.Errorf("expected k 1, got %f", meta.Parameters["k"])
	}
	if meta.Doses != 1 {
		t.Errorf("expected 1 dose, got %d", meta.Doses)
	}

	ts, err := st.LoadProfile(runID)
	if err != nil {
		t.Fatalf("load profile failed: %v", err)
	}
	if ts.Len() != 3 {
		t.Fatalf("expected 3 samples, got %d", ts.Len())
	}
	b, _ := ts.Column("B")
	if !pk.IsMissing(b[1]) {
		t.Errorf("expected missing sample to survive, got %v", b[1])
	}
	if b[2] != 4.1 {
		t.Errorf("expected 4.1, got %v", b[2])
	}

	if _, err := os.Stat(filepath.Join(st.baseDir, runID, pkFile)); err != nil {
		t.Errorf("expected pk.csv: %v", err)
	}
}

func TestStoreSaveFit(t *testing.T) {
	st := New(t.TempDir())
	req := &solver.FitRequest{
		Equations: "dA/dt = -k*A",
		Params:    map[string]float64{"k": 1},
		FitParams: []string{"k"},
		Weighting: "1/Y",
		Groups: []experiment.Payload{
			{Doses: []dosing.Protocol{{Compartment: "A", Kind: dosing.Bolus, Amount: 10}}},
			{Doses: []dosing.Protocol{{Compartment: "A", Kind: dosing.Bolus, Amount: 20}}},
		},
	}
	res := &solver.FitResult{
		Params:   []solver.Estimate{{Name: "k", Value: 0.3, Stderr: ptr(0.01)}},
		SSRTotal: ptr(1.5),
		NFev:     12,
		Message:  "`ftol` termination condition is satisfied.",
	}

	runID, err := st.SaveFit("session-1", req, res)
	if err != nil {
		t.Fatalf("save fit failed: %v", err)
	}
	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Kind != KindFit || meta.Groups != 2 || meta.NFev != 12 || meta.Doses != 2 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.Weighting != "1/Y" {
		t.Errorf("expected weighting 1/Y, got %q", meta.Weighting)
	}
	if len(meta.Estimates) != 1 || meta.Estimates[0].Value != 0.3 {
		t.Errorf("expected estimate k=0.3, got %+v", meta.Estimates)
	}
	if _, err := st.LoadProfile(runID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound for fit profile, got %v", err)
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	st.now = func() time.Time {
		calls++
		return base.Add(-time.Duration(calls) * time.Minute)
	}
	req := &solver.SimulateRequest{Compartments: []string{"A"}}
	first, _ := st.SaveSimulation("s", req, &solver.SimulateResult{})
	second, _ := st.SaveSimulation("s", req, &solver.SimulateResult{})

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("expected runs oldest first")
	}
}

func TestStoreSaveRemovesFailedRun(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	broken := &pk.TimeSeries{Time: []float64{0, 1}, Names: []string{"A"}, Columns: map[string]pk.Column{}}
	id, err := st.SaveSimulation("s", &solver.SimulateRequest{Compartments: []string{"A"}}, &solver.SimulateResult{Profile: broken})
	if err == nil {
		t.Fatal("expected error for a profile without its column")
	}
	if id != "" {
		t.Errorf("expected no id, got %s", id)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected the half-written run to be removed, found %d entries", len(entries))
	}
	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}
}

func TestStoreLoadUnknown(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestWriteProfileCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteProfileCSV(&buf, profile(t), []string{"B"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	want := "Time,B\n0,0\n0.5,\n1,4.1\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}

	if err := WriteProfileCSV(&buf, profile(t), []string{"C"}); err == nil {
		t.Error("expected error for unknown column")
	}
	if err := WriteProfileCSV(&buf, nil, nil); !errors.Is(err, ErrEmptyProfile) {
		t.Errorf("expected ErrEmptyProfile, got %v", err)
	}
}

func TestWritePKCSV(t *testing.T) {
	s := pk.Summary{
		{Compartment: "A", Metrics: pk.Metrics{Cmax: ptr(10), Tmax: ptr(0), AUC: ptr(99.5)}},
		{Compartment: "B", Metrics: pk.Metrics{Cmax: ptr(4.1), Extra: map[string]*float64{"MRT": ptr(2)}}},
	}
	var buf bytes.Buffer
	if err := WritePKCSV(&buf, s); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	tests := []string{
		"compartment,Cmax,Tmax,AUC,Half-life,MRT",
		"A,10,0,99.5,,",
		"B,4.1,,,,2",
	}
	if len(lines) != len(tests) {
		t.Fatalf("expected %d lines, got %d", len(tests), len(lines))
	}
	for i, want := range tests {
		if lines[i] != want {
			t.Errorf("line %d: expected %q, got %q", i, want, lines[i])
		}
	}
}
