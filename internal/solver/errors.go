package solver

import "errors"

var (
	ErrEmptyEquations    = errors.New("solver: equations are empty")
	ErrMalformedResponse = errors.New("solver: malformed service response")
	ErrNoBaseURL         = errors.New("solver: service URL not configured")
)
