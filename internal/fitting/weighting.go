package fitting

import (
	"fmt"
	"strings"
)

// Weighting selects how residuals are scaled by the optimizer.
type Weighting string

const (
	None      Weighting = "none"
	OneOverY  Weighting = "1/Y"
	OneOverY2 Weighting = "1/Y2"
)

// Weightings lists every accepted scheme in display order.
var Weightings = []Weighting{None, OneOverY, OneOverY2}

// ParseWeighting accepts the wire names case-insensitively. An empty string is None.
func ParseWeighting(s string) (Weighting, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return None, nil
	}
	for _, w := range Weightings {
		if strings.EqualFold(s, string(w)) {
			return w, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWeighting, s)
}
