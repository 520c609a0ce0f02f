package solver

import (
	"context"

	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/experiment"
	"github.com/san-kum/pksim/internal/fitting"
	"github.com/san-kum/pksim/internal/pk"
)

// Service is the external model service. Implementations must be safe for concurrent use.
type Service interface {
	Parse(ctx context.Context, equations string) (*pk.Model, error)
	Simulate(ctx context.Context, req *SimulateRequest) (*SimulateResult, error)
	Fit(ctx context.Context, req *FitRequest) (*FitResult, error)
}

// SimulateRequest asks for a forward simulation on the grid of TSteps points covering
// [TStart, TEnd], both ends included. Compartments selects the profile columns and the
// PK summary entries.
type SimulateRequest struct {
	Equations    string             `json:"equations"`
	Compartments []string           `json:"compartments"`
	Parameters   map[string]float64 `json:"parameters"`
	Initials     map[string]float64 `json:"initials"`
	Doses        []dosing.Protocol  `json:"doses"`
	TStart       float64            `json:"t_start"`
	TEnd         float64            `json:"t_end"`
	TSteps       int                `json:"t_steps"`
}

// SimulateResult holds the simulated profile and its PK summary.
type SimulateResult struct {
	Profile *pk.TimeSeries `json:"profile"`
	PK      pk.Summary     `json:"pk"`
}

// FitRequest asks for a simultaneous fit of FitParams over every group.
type FitRequest struct {
	Equations string                    `json:"equations"`
	Initials  map[string]float64        `json:"initials"`
	Params    map[string]float64        `json:"parameters"`
	FitParams []string                  `json:"fit_params"`
	Bounds    map[string]fitting.Bounds `json:"bounds"`
	Weighting fitting.Weighting         `json:"weighting"`
	Groups    []experiment.Payload      `json:"fitting_groups"`
}

// Estimate is the fitted value of one parameter. The statistics are null when the fit
// had no degrees of freedom left or the covariance could not be computed.
type Estimate struct {
	Name    string   `json:"name"`
	Value   float64  `json:"value"`
	Stderr  *float64 `json:"stderr"`
	CILower *float64 `json:"ci_lower"`
	CIUpper *float64 `json:"ci_upper"`
}

// FitResult is the outcome of a successful fit.
type FitResult struct {
	Params     []Estimate `json:"params"`
	SSRTotal   *float64   `json:"ssr_total"`
	Cost       *float64   `json:"cost,omitempty"`
	NFev       int        `json:"nfev"`
	Message    string     `json:"message"`
	StatusCode int        `json:"status_code,omitempty"`
}

// Estimate returns the estimate for name, if the service returned one.
func (r *FitResult) Estimate(name string) (Estimate, bool) {
	for _, e := range r.Params {
		if e.Name == name {
			return e, true
		}
	}
	return Estimate{}, false
}
