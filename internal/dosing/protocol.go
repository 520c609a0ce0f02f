package dosing

import (
	"fmt"
	"strings"

	"github.com/san-kum/pksim/internal/pk"
)

// Kind is the administration route of a dose.
type Kind string

const (
	Bolus    Kind = "bolus"
	Infusion Kind = "infusion"
)

// ParseKind accepts the kind names case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Bolus:
		return Bolus, nil
	case Infusion:
		return Infusion, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Protocol is a single administration event, optionally repeated every RepeatEvery
// time units until RepeatUntil.
type Protocol struct {
	Compartment string   `json:"compartment" yaml:"compartment"`
	Kind        Kind     `json:"type" yaml:"type"`
	Amount      float64  `json:"amount" yaml:"amount"`
	StartTime   float64  `json:"start_time" yaml:"start_time"`
	Duration    float64  `json:"duration" yaml:"duration"`
	RepeatEvery *float64 `json:"repeat_every" yaml:"repeat_every"`
	RepeatUntil *float64 `json:"repeat_until" yaml:"repeat_until"`
}

// Repeats reports whether the protocol carries a repetition schedule.
func (p Protocol) Repeats() bool { return p.RepeatEvery != nil && p.RepeatUntil != nil }

// Normalize zeroes the duration of a bolus, which carries no duration.
func (p Protocol) Normalize() Protocol {
	if p.Kind == Bolus {
		p.Duration = 0
	}
	return p
}

// Validate checks a candidate without side effects.
func Validate(p Protocol) error {
	if !pk.Finite(p.Amount) || p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !pk.Finite(p.StartTime) || p.StartTime < 0 {
		return ErrInvalidStartTime
	}
	switch p.Kind {
	case Bolus:
	case Infusion:
		if !pk.Finite(p.Duration) || p.Duration <= 0 {
			return ErrDurationRequired
		}
	default:
		return ErrInvalidKind
	}
	if (p.RepeatEvery == nil) != (p.RepeatUntil == nil) {
		return ErrIncompleteRepeat
	}
	if p.Repeats() {
		every, until := *p.RepeatEvery, *p.RepeatUntil
		if !pk.Finite(every) || !pk.Finite(until) || every <= 0 || until <= p.StartTime {
			return ErrInvalidRepeat
		}
	}
	return nil
}

// Times lists the administration start times covered by the protocol.
func (p Protocol) Times() []float64 {
	if !p.Repeats() || *p.RepeatEvery <= 0 {
		return []float64{p.StartTime}
	}
	var times []float64
	for t := p.StartTime; t <= *p.RepeatUntil; t += *p.RepeatEvery {
		times = append(times, t)
	}
	return times
}

func (p Protocol) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %g -> %s at t=%g", p.Kind, p.Amount, p.Compartment, p.StartTime)
	if p.Kind == Infusion {
		fmt.Fprintf(&b, " over %g", p.Duration)
	}
	if p.Repeats() {
		fmt.Fprintf(&b, ", every %g until %g", *p.RepeatEvery, *p.RepeatUntil)
	}
	return b.String()
}

// Entry is a protocol together with its list identity.
type Entry struct {
	ID       int `json:"id" yaml:"id"`
	Protocol `yaml:",inline"`
}
