package fitting

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/san-kum/pksim/internal/pk"
)

// Bounds are inclusive limits on a free parameter. A nil side is unbounded.
// On the wire a Bounds is the pair [lower|null, upper|null].
type Bounds struct {
	Lower *float64
	Upper *float64
}

// Open returns bounds unbounded on both sides.
func Open() Bounds { return Bounds{} }

// Closed returns bounds [lo, hi].
func Closed(lo, hi float64) Bounds { return Bounds{Lower: pk.Float(lo), Upper: pk.Float(hi)} }

func (b Bounds) Validate() error {
	if (b.Lower != nil && !pk.Finite(*b.Lower)) || (b.Upper != nil && !pk.Finite(*b.Upper)) {
		return ErrNonFiniteBound
	}
	if b.Lower != nil && b.Upper != nil && *b.Lower > *b.Upper {
		return ErrInvalidBounds
	}
	return nil
}

// Contains reports whether v satisfies both present sides.
func (b Bounds) Contains(v float64) bool {
	if b.Lower != nil && v < *b.Lower {
		return false
	}
	if b.Upper != nil && v > *b.Upper {
		return false
	}
	return true
}

func (b Bounds) Equal(o Bounds) bool {
	return sameSide(b.Lower, o.Lower) && sameSide(b.Upper, o.Upper)
}

func sameSide(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%s, %s]", side(b.Lower, "-inf"), side(b.Upper, "+inf"))
}

func side(v *float64, open string) string {
	if v == nil {
		return open
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func (b Bounds) clone() Bounds {
	var c Bounds
	if b.Lower != nil {
		c.Lower = pk.Float(*b.Lower)
	}
	if b.Upper != nil {
		c.Upper = pk.Float(*b.Upper)
	}
	return c
}

func (b Bounds) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]*float64{b.Lower, b.Upper})
}

func (b *Bounds) UnmarshalJSON(data []byte) error {
	var pair []*float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("fitting: bounds: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("fitting: bounds: expected [lower, upper], got %d values", len(pair))
	}
	b.Lower, b.Upper = pair[0], pair[1]
	return nil
}

func (b Bounds) MarshalYAML() (any, error) {
	return []*float64{b.Lower, b.Upper}, nil
}

func (b *Bounds) UnmarshalYAML(unmarshal func(any) error) error {
	var pair []*float64
	if err := unmarshal(&pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("fitting: bounds: expected [lower, upper], got %d values", len(pair))
	}
	b.Lower, b.Upper = pair[0], pair[1]
	return nil
}
