package session

import (
	"fmt"
	"slices"

	"github.com/san-kum/pksim/internal/pk"
)

// Settings are the simulation settings of a session. The grid has Steps points covering
// [Start, End] with both ends included.
type Settings struct {
	Start                float64  `json:"start" yaml:"start"`
	End                  float64  `json:"end" yaml:"end"`
	Steps                int      `json:"steps" yaml:"steps"`
	LogScale             bool     `json:"logScale" yaml:"logScale"`
	SelectedCompartments []string `json:"selectedCompartments" yaml:"selectedCompartments"`
}

// DefaultSettings returns 200 points over [0, 48].
func DefaultSettings() Settings {
	return Settings{Start: 0, End: 48, Steps: 200}
}

// Validate checks the time grid. The compartment selection is checked against a model
// separately, since settings may be edited before the first parse.
func (s Settings) Validate() error {
	if !pk.Finite(s.Start) || !pk.Finite(s.End) {
		return pk.Invalid("time range", fmt.Errorf("%w: [%v, %v]", ErrInvalidValue, s.Start, s.End))
	}
	if s.End <= s.Start {
		return pk.Invalid("time range", fmt.Errorf("%w: [%v, %v]", ErrInvalidTimeRange, s.Start, s.End))
	}
	if s.Steps < 2 {
		return pk.Invalid("steps", fmt.Errorf("%w: got %d", ErrInvalidSteps, s.Steps))
	}
	return nil
}

// Grid returns the time points the service will report.
func (s Settings) Grid() []float64 { return pk.TimeGrid(s.Start, s.End, s.Steps) }

func (s Settings) clone() Settings {
	s.SelectedCompartments = slices.Clone(s.SelectedCompartments)
	return s
}

// withDefaults fills zero fields from def, the way a saved document with missing
// settings restores the defaults.
func (s Settings) withDefaults(def Settings) Settings {
	if s.End == 0 {
		s.End = def.End
	}
	if s.Steps == 0 {
		s.Steps = def.Steps
	}
	return s
}
