package fitting

import "errors"

var (
	ErrNoFreeParameters = errors.New("fitting: select at least one free parameter")
	ErrInvalidBounds    = errors.New("fitting: lower bound is greater than upper bound")
	ErrNonFiniteBound   = errors.New("fitting: bounds must be finite numbers")
	ErrMissingBounds    = errors.New("fitting: free parameter has no bounds entry")
	ErrInfeasibleGuess  = errors.New("fitting: current value lies outside the bounds")
	ErrInvalidFactor    = errors.New("fitting: auto-bound factor must be a positive number")
	ErrInvalidValue     = errors.New("fitting: value must be a finite number")
	ErrInvalidWeighting = errors.New("fitting: unknown weighting scheme")
)
