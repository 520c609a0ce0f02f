package fitting

import (
	"fmt"
	"maps"
	"slices"

	"github.com/san-kum/pksim/internal/pk"
)

// DefaultFactor is the decade factor used by AutoBound when none is given.
const DefaultFactor = 10.0

// Config is the fit configuration. Free keeps the order parameters were freed in.
// Bounds may hold entries for parameters that are no longer free, so that freeing
// them again restores the previous limits.
type Config struct {
	Free      []string           `json:"free" yaml:"free"`
	Bounds    map[string]Bounds  `json:"bounds" yaml:"bounds"`
	Weighting Weighting          `json:"weighting" yaml:"weighting"`
	Values    map[string]float64 `json:"values" yaml:"values"`
}

func NewConfig() *Config {
	return &Config{
		Bounds:    make(map[string]Bounds),
		Weighting: None,
		Values:    make(map[string]float64),
	}
}

func (c *Config) IsFree(name string) bool { return slices.Contains(c.Free, name) }

// ToggleFree flips name in the free set and reports whether it is now free. Freeing a
// parameter without a bounds entry creates an open one.
func (c *Config) ToggleFree(name string) bool {
	free := !c.IsFree(name)
	c.SetFree(name, free)
	return free
}

func (c *Config) SetFree(name string, free bool) {
	i := slices.Index(c.Free, name)
	switch {
	case free && i < 0:
		c.Free = append(c.Free, name)
		c.ensure()
		if _, ok := c.Bounds[name]; !ok {
			c.Bounds[name] = Open()
		}
	case !free && i >= 0:
		c.Free = slices.Delete(c.Free, i, i+1)
	}
}

// SetBounds replaces the bounds of name. Invalid bounds are rejected without touching
// the previous entry.
func (c *Config) SetBounds(name string, b Bounds) error {
	if err := b.Validate(); err != nil {
		return pk.Invalid("bounds of "+name, err)
	}
	c.ensure()
	c.Bounds[name] = b.clone()
	return nil
}

// BoundsOf returns the bounds entry of name, if any.
func (c *Config) BoundsOf(name string) (Bounds, bool) {
	b, ok := c.Bounds[name]
	return b, ok
}

// AutoBound sets the bounds of name to [v/factor, v*factor] around its current value v.
// A zero value has no meaningful decade bound; the bounds are left alone and applied is
// false. Negative values keep lower <= upper. A non-positive factor is rejected.
func (c *Config) AutoBound(name string, factor float64) (applied bool, err error) {
	if !pk.Finite(factor) || factor <= 0 {
		return false, pk.Invalid("auto-bound factor", fmt.Errorf("%w: %v", ErrInvalidFactor, factor))
	}
	v := c.Values[name]
	if v == 0 {
		return false, nil
	}
	lo, hi := v/factor, v*factor
	if lo > hi {
		lo, hi = hi, lo
	}
	c.ensure()
	c.Bounds[name] = Closed(lo, hi)
	return true, nil
}

func (c *Config) SetValue(name string, v float64) error {
	if !pk.Finite(v) {
		return pk.Invalid("value of "+name, fmt.Errorf("%w: %v", ErrInvalidValue, v))
	}
	c.ensure()
	c.Values[name] = v
	return nil
}

func (c *Config) Value(name string) float64 { return c.Values[name] }

func (c *Config) SetWeighting(w Weighting) error {
	if !slices.Contains(Weightings, w) {
		return pk.Invalid("weighting", fmt.Errorf("%w: %q", ErrInvalidWeighting, w))
	}
	c.Weighting = w
	return nil
}

// Reconcile aligns the configuration with a freshly parsed model. Surviving parameters
// keep their values, new ones start at 0, and parameters the model no longer declares
// leave the free set, the bounds and the values. Running it twice is a no-op.
func (c *Config) Reconcile(model *pk.Model) {
	c.ensure()
	for _, p := range model.Parameters {
		if _, ok := c.Values[p]; !ok {
			c.Values[p] = 0
		}
	}
	maps.DeleteFunc(c.Values, func(name string, _ float64) bool { return !model.HasParameter(name) })
	maps.DeleteFunc(c.Bounds, func(name string, _ Bounds) bool { return !model.HasParameter(name) })
	c.Free = slices.DeleteFunc(c.Free, func(name string) bool { return !model.HasParameter(name) })
}

// Validate checks the configuration for a fit submission against model: at least one
// free parameter, every free parameter declared by the model with valid bounds, and
// every current value inside its bounds.
func (c *Config) Validate(model *pk.Model) error {
	if len(c.Free) == 0 {
		return pk.Invalid("free parameters", ErrNoFreeParameters)
	}
	if !slices.Contains(Weightings, c.Weighting) {
		return pk.Invalid("weighting", fmt.Errorf("%w: %q", ErrInvalidWeighting, c.Weighting))
	}
	for _, name := range c.Free {
		if !model.HasParameter(name) {
			return pk.Invalid("free parameters", fmt.Errorf("%w: %s", pk.ErrUnknownParameter, name))
		}
		b, ok := c.Bounds[name]
		if !ok {
			return pk.Invalid("bounds of "+name, ErrMissingBounds)
		}
		if err := b.Validate(); err != nil {
			return pk.Invalid("bounds of "+name, err)
		}
		if v := c.Values[name]; !b.Contains(v) {
			return pk.Invalid("value of "+name, fmt.Errorf("%w: %v not in %s", ErrInfeasibleGuess, v, b))
		}
	}
	return nil
}

// FreeNames returns the free parameters in model declaration order.
func (c *Config) FreeNames(model *pk.Model) []string {
	var out []string
	for _, p := range model.Parameters {
		if c.IsFree(p) {
			out = append(out, p)
		}
	}
	return out
}

// FreeBounds returns the bounds of the free parameters only, as sent with a fit request.
func (c *Config) FreeBounds() map[string]Bounds {
	out := make(map[string]Bounds, len(c.Free))
	for _, name := range c.Free {
		out[name] = c.Bounds[name].clone()
	}
	return out
}

func (c *Config) Clone() *Config {
	out := &Config{
		Free:      slices.Clone(c.Free),
		Bounds:    make(map[string]Bounds, len(c.Bounds)),
		Weighting: c.Weighting,
		Values:    maps.Clone(c.Values),
	}
	for k, b := range c.Bounds {
		out.Bounds[k] = b.clone()
	}
	if out.Values == nil {
		out.Values = make(map[string]float64)
	}
	return out
}

func (c *Config) ensure() {
	if c.Bounds == nil {
		c.Bounds = make(map[string]Bounds)
	}
	if c.Values == nil {
		c.Values = make(map[string]float64)
	}
}
