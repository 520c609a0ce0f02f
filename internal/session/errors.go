package session

import "errors"

var (
	ErrNoCompartmentsSelected = errors.New("session: select at least one compartment to plot")
	ErrInvalidTimeRange       = errors.New("session: end time must be greater than start time")
	ErrInvalidSteps           = errors.New("session: need at least 2 time steps")
	ErrNoMappedColumns        = errors.New("session: no observed column is mapped to a model variable")
	ErrInvalidValue           = errors.New("session: value must be a finite number")
	ErrUnsupportedFormat      = errors.New("session: unsupported document format")
)
