package pk

import (
	"fmt"
	"math"
	"slices"
)

// Model is the symbol table returned by the parser service. It is replaced wholesale on
// every successful parse and otherwise treated as immutable.
type Model struct {
	Compartments       []string          `json:"compartments"`
	Parameters         []string          `json:"parameters"`
	DerivedExpressions map[string]string `json:"derived_expressions,omitempty"`
	ProcessedODE       string            `json:"processed_ode,omitempty"`
}

// Validate checks that identifiers are unique and that compartments and parameters are disjoint.
func (m *Model) Validate() error {
	seen := make(map[string]string, len(m.Compartments)+len(m.Parameters))
	for _, c := range m.Compartments {
		if c == "" {
			return fmt.Errorf("pk: empty compartment name")
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("pk: duplicate compartment %q", c)
		}
		seen[c] = "compartment"
	}
	for _, p := range m.Parameters {
		if p == "" {
			return fmt.Errorf("pk: empty parameter name")
		}
		if kind, dup := seen[p]; dup {
			return fmt.Errorf("pk: parameter %q already declared as %s", p, kind)
		}
		seen[p] = "parameter"
	}
	return nil
}

func (m *Model) HasCompartment(name string) bool { return slices.Contains(m.Compartments, name) }
func (m *Model) HasParameter(name string) bool   { return slices.Contains(m.Parameters, name) }

// IsDerived reports whether name is a derived (display-only) expression.
func (m *Model) IsDerived(name string) bool {
	_, ok := m.DerivedExpressions[name]
	return ok
}

// IsObservable reports whether observed data may be mapped onto name.
func (m *Model) IsObservable(name string) bool {
	return m.HasCompartment(name) || m.IsDerived(name)
}

// MoveSymbol moves name between the compartment and parameter sets. Moving a symbol to the
// set it already belongs to is a no-op.
func (m *Model) MoveSymbol(name string, toCompartment bool) error {
	switch {
	case toCompartment && m.HasParameter(name):
		m.Parameters = slices.DeleteFunc(m.Parameters, func(s string) bool { return s == name })
		m.Compartments = append([]string{name}, m.Compartments...)
	case !toCompartment && m.HasCompartment(name):
		m.Compartments = slices.DeleteFunc(m.Compartments, func(s string) bool { return s == name })
		m.Parameters = append(m.Parameters, name)
	case toCompartment && m.HasCompartment(name), !toCompartment && m.HasParameter(name):
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	return nil
}

func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	c := &Model{
		Compartments: slices.Clone(m.Compartments),
		Parameters:   slices.Clone(m.Parameters),
		ProcessedODE: m.ProcessedODE,
	}
	if m.DerivedExpressions != nil {
		c.DerivedExpressions = make(map[string]string, len(m.DerivedExpressions))
		for k, v := range m.DerivedExpressions {
			c.DerivedExpressions[k] = v
		}
	}
	return c
}

// TimeGrid returns steps evenly spaced points covering [start, end], both ends included.
// This is the convention used for every simulate request and every fixture.
func TimeGrid(start, end float64, steps int) []float64 {
	if steps <= 0 {
		return nil
	}
	if steps == 1 {
		return []float64{start}
	}
	grid := make([]float64, steps)
	step := (end - start) / float64(steps-1)
	for i := range grid {
		grid[i] = start + float64(i)*step
	}
	grid[steps-1] = end
	return grid
}

// Float returns a pointer to v, for the nullable scalars of the wire format.
func Float(v float64) *float64 { return &v }

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
