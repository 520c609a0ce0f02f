package dosing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/san-kum/pksim/internal/pk"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Protocol
		err  error
	}{
		{"bolus", Protocol{Compartment: "A", Kind: Bolus, Amount: 10}, nil},
		{"infusion", Protocol{Compartment: "A", Kind: Infusion, Amount: 10, Duration: 2}, nil},
		{"repeated", Protocol{Kind: Bolus, Amount: 5, RepeatEvery: pk.Float(12), RepeatUntil: pk.Float(48)}, nil},
		{"zero amount", Protocol{Kind: Bolus}, ErrInvalidAmount},
		{"negative start", Protocol{Kind: Bolus, Amount: 1, StartTime: -1}, ErrInvalidStartTime},
		{"infusion without duration", Protocol{Kind: Infusion, Amount: 1}, ErrDurationRequired},
		{"every without until", Protocol{Kind: Bolus, Amount: 1, RepeatEvery: pk.Float(12)}, ErrIncompleteRepeat},
		{"until without every", Protocol{Kind: Bolus, Amount: 1, RepeatUntil: pk.Float(12)}, ErrIncompleteRepeat},
		{"zero interval", Protocol{Kind: Bolus, Amount: 1, RepeatEvery: pk.Float(0), RepeatUntil: pk.Float(12)}, ErrInvalidRepeat},
		{"until before start", Protocol{Kind: Bolus, Amount: 1, StartTime: 24, RepeatEvery: pk.Float(6), RepeatUntil: pk.Float(24)}, ErrInvalidRepeat},
		{"unknown kind", Protocol{Kind: "oral", Amount: 1}, ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.p)
			if !errors.Is(err, tt.err) {
				t.Errorf("Validate() = %v, want %v", err, tt.err)
			}
		})
	}
}

// Validate accepts exactly the candidates that satisfy the documented predicate.
func TestValidateMatchesPredicate(t *testing.T) {
	amounts := []float64{-1, 0, 0.5, 10}
	starts := []float64{-2, 0, 3}
	durations := []float64{0, 1.5}
	repeats := []*float64{nil, pk.Float(-1), pk.Float(0), pk.Float(2), pk.Float(5)}

	for _, kind := range []Kind{Bolus, Infusion} {
		for _, amount := range amounts {
			for _, start := range starts {
				for _, duration := range durations {
					for _, every := range repeats {
						for _, until := range repeats {
							p := Protocol{Kind: kind, Amount: amount, StartTime: start, Duration: duration, RepeatEvery: every, RepeatUntil: until}
							want := amount > 0 && start >= 0 &&
								(kind != Infusion || duration > 0) &&
								((every == nil) == (until == nil)) &&
								(every == nil || (*every > 0 && *until > start))
							got := Validate(p) == nil
							if got != want {
								t.Errorf("%s: Validate ok=%v, predicate=%v", describe(p), got, want)
							}
						}
					}
				}
			}
		}
	}
}

func describe(p Protocol) string {
	f := func(v *float64) string {
		if v == nil {
			return "nil"
		}
		return fmt.Sprint(*v)
	}
	return fmt.Sprintf("%s amount=%g start=%g dur=%g every=%s until=%s", p.Kind, p.Amount, p.StartTime, p.Duration, f(p.RepeatEvery), f(p.RepeatUntil))
}

func TestProtocolTimes(t *testing.T) {
	p := Protocol{Kind: Bolus, Amount: 1, StartTime: 0, RepeatEvery: pk.Float(12), RepeatUntil: pk.Float(48)}
	times := p.Times()
	if len(times) != 5 {
		t.Fatalf("expected 5 administrations, got %v", times)
	}
	if times[4] != 48 {
		t.Errorf("expected last administration at 48, got %v", times[4])
	}

	single := Protocol{Kind: Bolus, Amount: 1, StartTime: 3}
	if got := single.Times(); len(got) != 1 || got[0] != 3 {
		t.Errorf("expected single administration at 3, got %v", got)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" Infusion "); err != nil || k != Infusion {
		t.Errorf("expected infusion, got %v (%v)", k, err)
	}
	if _, err := ParseKind("oral"); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("expected ErrInvalidKind, got %v", err)
	}
}
