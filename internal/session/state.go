package session

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/experiment"
	"github.com/san-kum/pksim/internal/fitting"
	"github.com/san-kum/pksim/internal/observed"
	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/solver"
)

// FitRecord is the outcome of the latest successful fit.
type FitRecord struct {
	Result    *solver.FitResult `json:"result"`
	Applied   []string          `json:"applied"`
	Weighting fitting.Weighting `json:"weighting"`
	Groups    int               `json:"groups"`
	At        time.Time         `json:"at"`
}

// State is the session aggregate root.
type State struct {
	ID        string
	Equations string
	Model     *pk.Model

	Initials map[string]float64
	Fit      *fitting.Config
	Doses    *dosing.List
	Datasets *observed.Store
	Groups   *experiment.Builder
	Settings Settings

	// Estimates holds the statistics of the last fitted value of each parameter. An entry
	// is dropped when the user overwrites the value by hand.
	Estimates map[string]solver.Estimate

	LatestSimulation *solver.SimulateResult
	LatestFit        *FitRecord
}

// New returns an empty session with a fresh id.
func New(settings Settings) *State {
	return &State{
		ID:        uuid.NewString(),
		Initials:  make(map[string]float64),
		Fit:       fitting.NewConfig(),
		Doses:     dosing.NewList(),
		Datasets:  observed.NewStore(),
		Groups:    experiment.NewBuilder(),
		Settings:  settings.clone(),
		Estimates: make(map[string]solver.Estimate),
	}
}

// ApplyModel installs a freshly parsed model. Values of surviving compartments and
// parameters are kept, new ones start at 0 and stale ones are dropped. The plot selection
// keeps surviving compartments and falls back to all of them. Observed columns are
// auto-mapped again. Applying the same model twice changes nothing.
func (s *State) ApplyModel(equations string, m *pk.Model) {
	s.Equations = equations
	s.Model = m.Clone()

	if s.Initials == nil {
		s.Initials = make(map[string]float64)
	}
	for _, c := range m.Compartments {
		if _, ok := s.Initials[c]; !ok {
			s.Initials[c] = 0
		}
	}
	maps.DeleteFunc(s.Initials, func(name string, _ float64) bool { return !m.HasCompartment(name) })

	s.Fit.Reconcile(m)
	maps.DeleteFunc(s.Estimates, func(name string, _ solver.Estimate) bool { return !m.HasParameter(name) })

	sel := slices.DeleteFunc(slices.Clone(s.Settings.SelectedCompartments), func(c string) bool { return !m.HasCompartment(c) })
	if len(sel) == 0 {
		sel = slices.Clone(m.Compartments)
	}
	s.Settings.SelectedCompartments = sel

	s.Datasets.AutoMap(s.Model)
}

// MoveSymbol reclassifies name between compartments and parameters and reconciles the
// session against the edited model.
func (s *State) MoveSymbol(name string, toCompartment bool) error {
	if s.Model == nil {
		return pk.Invalid("model", pk.ErrModelNotParsed)
	}
	m := s.Model.Clone()
	if err := m.MoveSymbol(name, toCompartment); err != nil {
		return pk.Invalid("symbol "+name, err)
	}
	s.ApplyModel(s.Equations, m)
	return nil
}

func (s *State) SetInitial(name string, v float64) error {
	if s.Model == nil {
		return pk.Invalid("initials", pk.ErrModelNotParsed)
	}
	if !s.Model.HasCompartment(name) {
		return pk.Invalid("initials", fmt.Errorf("%w: %s", pk.ErrUnknownCompartment, name))
	}
	if !pk.Finite(v) {
		return pk.Invalid("initial of "+name, fmt.Errorf("%w: %v", ErrInvalidValue, v))
	}
	s.Initials[name] = v
	return nil
}

// SetParameter sets the current value of a model parameter, which is also the initial
// guess of the next fit.
func (s *State) SetParameter(name string, v float64) error {
	if s.Model == nil {
		return pk.Invalid("parameters", pk.ErrModelNotParsed)
	}
	if !s.Model.HasParameter(name) {
		return pk.Invalid("parameters", fmt.Errorf("%w: %s", pk.ErrUnknownParameter, name))
	}
	if err := s.Fit.SetValue(name, v); err != nil {
		return err
	}
	delete(s.Estimates, name)
	return nil
}

// SetSettings replaces the simulation settings after validating them. Selected
// compartments must exist once a model is parsed.
func (s *State) SetSettings(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	if s.Model != nil {
		for _, c := range next.SelectedCompartments {
			if !s.Model.HasCompartment(c) {
				return pk.Invalid("compartments", fmt.Errorf("%w: %s", pk.ErrUnknownCompartment, c))
			}
		}
	}
	s.Settings = next.clone()
	return nil
}

// AddDose validates p against the model and appends it to the session dose list.
func (s *State) AddDose(p dosing.Protocol) (int, error) {
	if err := s.checkDoseTarget(p); err != nil {
		return 0, err
	}
	id, err := s.Doses.Add(p)
	if err != nil {
		return 0, pk.Invalid("dose", err)
	}
	return id, nil
}

// AddGroupDose validates p against the model and appends it to group gid.
func (s *State) AddGroupDose(gid int, p dosing.Protocol) (int, error) {
	if err := s.checkDoseTarget(p); err != nil {
		return 0, err
	}
	id, err := s.Groups.AddDose(gid, p)
	if err != nil {
		return 0, pk.Invalid("dose", err)
	}
	return id, nil
}

func (s *State) checkDoseTarget(p dosing.Protocol) error {
	if s.Model != nil && !s.Model.HasCompartment(p.Compartment) {
		return pk.Invalid("dose", fmt.Errorf("%w: %s", pk.ErrUnknownCompartment, p.Compartment))
	}
	return nil
}

// SetMapping maps an observed column to a model variable, or unmaps it when variable is
// empty. The variable must be a compartment or a derived variable of the current model.
func (s *State) SetMapping(datasetID int, column, variable string) error {
	if variable != "" {
		if s.Model == nil {
			return pk.Invalid("mapping", pk.ErrModelNotParsed)
		}
		if !s.Model.IsObservable(variable) {
			return pk.Invalid("mapping", fmt.Errorf("%w: %s", pk.ErrUnknownVariable, variable))
		}
	}
	return s.Datasets.SetMapping(datasetID, column, variable)
}

// SimulateRequest assembles a forward simulation from the current state.
func (s *State) SimulateRequest() (*solver.SimulateRequest, error) {
	if s.Model == nil {
		return nil, pk.Invalid("model", pk.ErrModelNotParsed)
	}
	if len(s.Settings.SelectedCompartments) == 0 {
		return nil, pk.Invalid("compartments", ErrNoCompartmentsSelected)
	}
	if err := s.Settings.Validate(); err != nil {
		return nil, err
	}
	doses := s.Doses.Protocols()
	if doses == nil {
		doses = []dosing.Protocol{}
	}
	return &solver.SimulateRequest{
		Equations:    s.Equations,
		Compartments: slices.Clone(s.Settings.SelectedCompartments),
		Parameters:   maps.Clone(s.Fit.Values),
		Initials:     maps.Clone(s.Initials),
		Doses:        doses,
		TStart:       s.Settings.Start,
		TEnd:         s.Settings.End,
		TSteps:       s.Settings.Steps,
	}, nil
}

// FitRequest assembles a multi-group fit from the current state. Every check runs
// before anything is built, so a rejected request leaves no trace.
func (s *State) FitRequest() (*solver.FitRequest, error) {
	if s.Model == nil {
		return nil, pk.Invalid("model", pk.ErrModelNotParsed)
	}
	if err := s.Fit.Validate(s.Model); err != nil {
		return nil, err
	}
	groups, err := s.Groups.ToRequestPayload(s.Datasets)
	if err != nil {
		return nil, pk.Invalid("experiment groups", err)
	}

	mapped := 0
	for i, g := range groups {
		for col, v := range g.Mappings {
			if !s.Model.IsObservable(v) {
				return nil, pk.Invalid(fmt.Sprintf("group %d mapping %s", i+1, col), fmt.Errorf("%w: %s", pk.ErrUnknownVariable, v))
			}
			mapped++
		}
	}
	if mapped == 0 {
		return nil, pk.Invalid("mappings", ErrNoMappedColumns)
	}

	return &solver.FitRequest{
		Equations: s.Equations,
		Initials:  maps.Clone(s.Initials),
		Params:    maps.Clone(s.Fit.Values),
		FitParams: s.Fit.FreeNames(s.Model),
		Bounds:    s.Fit.FreeBounds(),
		Weighting: s.Fit.Weighting,
		Groups:    groups,
	}, nil
}

// ApplySimulation stores a successful simulation result.
func (s *State) ApplySimulation(res *solver.SimulateResult) {
	s.LatestSimulation = res
}

// ApplyFit writes fitted values back into the parameter values. Only names that were
// requested and still exist in the model are written; the rest are skipped, so a model
// re-parsed while the fit was running is never polluted. It returns the written names.
func (s *State) ApplyFit(req *solver.FitRequest, res *solver.FitResult, at time.Time) []string {
	var applied []string
	for _, e := range res.Params {
		if !slices.Contains(req.FitParams, e.Name) || s.Model == nil || !s.Model.HasParameter(e.Name) {
			continue
		}
		if err := s.Fit.SetValue(e.Name, e.Value); err != nil {
			continue
		}
		s.Estimates[e.Name] = e
		applied = append(applied, e.Name)
	}
	s.LatestFit = &FitRecord{
		Result:    res,
		Applied:   applied,
		Weighting: req.Weighting,
		Groups:    len(req.Groups),
		At:        at,
	}
	return applied
}
