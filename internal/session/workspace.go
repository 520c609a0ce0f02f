package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/experiment"
	"github.com/san-kum/pksim/internal/fitting"
	"github.com/san-kum/pksim/internal/observed"
	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/solver"
)

// StateFile is the name of the persisted session inside a workspace directory.
const StateFile = "session.json"

// Snapshot is the complete persisted form of a State.
type Snapshot struct {
	ID               string                     `json:"id"`
	SavedAt          time.Time                  `json:"saved_at"`
	Equations        string                     `json:"equations"`
	Model            *pk.Model                  `json:"model,omitempty"`
	Initials         map[string]float64         `json:"initials"`
	Fit              *fitting.Config            `json:"fit"`
	Doses            dosing.Snapshot            `json:"doses"`
	Datasets         observed.Snapshot          `json:"datasets"`
	Groups           experiment.Snapshot        `json:"groups"`
	Settings         Settings                   `json:"settings"`
	Estimates        map[string]solver.Estimate `json:"estimates,omitempty"`
	LatestSimulation *solver.SimulateResult     `json:"latest_simulation,omitempty"`
	LatestFit        *FitRecord                 `json:"latest_fit,omitempty"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		ID:               s.ID,
		Equations:        s.Equations,
		Model:            s.Model,
		Initials:         s.Initials,
		Fit:              s.Fit,
		Doses:            s.Doses.Snapshot(),
		Datasets:         s.Datasets.Snapshot(),
		Groups:           s.Groups.Snapshot(),
		Settings:         s.Settings,
		Estimates:        s.Estimates,
		LatestSimulation: s.LatestSimulation,
		LatestFit:        s.LatestFit,
	}
}

// Restore rebuilds a State from a snapshot.
func Restore(snap Snapshot) (*State, error) {
	doses, err := dosing.Restore(snap.Doses)
	if err != nil {
		return nil, fmt.Errorf("session: doses: %w", err)
	}
	datasets, err := observed.Restore(snap.Datasets)
	if err != nil {
		return nil, fmt.Errorf("session: datasets: %w", err)
	}
	groups, err := experiment.Restore(snap.Groups)
	if err != nil {
		return nil, fmt.Errorf("session: groups: %w", err)
	}

	s := New(snap.Settings)
	if snap.ID != "" {
		s.ID = snap.ID
	}
	s.Equations = snap.Equations
	s.Model = snap.Model
	if snap.Initials != nil {
		s.Initials = snap.Initials
	}
	if snap.Fit != nil {
		s.Fit = snap.Fit.Clone()
	}
	s.Doses = doses
	s.Datasets = datasets
	s.Groups = groups
	if snap.Estimates != nil {
		s.Estimates = snap.Estimates
	}
	s.LatestSimulation = snap.LatestSimulation
	s.LatestFit = snap.LatestFit
	return s, nil
}

// Workspace persists one session in a directory.
type Workspace struct {
	dir string
}

func NewWorkspace(dir string) *Workspace { return &Workspace{dir: dir} }

func (w *Workspace) Dir() string { return w.dir }

// Load reads the persisted session. A workspace without one yields a fresh session.
func (w *Workspace) Load(def Settings) (*State, error) {
	data, err := os.ReadFile(filepath.Join(w.dir, StateFile))
	if errors.Is(err, os.ErrNotExist) {
		return New(def), nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", StateFile, err)
	}
	return Restore(snap)
}

// Save writes the session, replacing the previous file atomically.
func (w *Workspace) Save(s *State) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	snap := s.Snapshot()
	snap.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encoding: %w", err)
	}

	tmp, err := os.CreateTemp(w.dir, StateFile+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(w.dir, StateFile))
}
