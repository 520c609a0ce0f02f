package pk

import (
	"errors"
	"fmt"
)

// Domain errors shared across the session components.
var (
	// ErrModelNotParsed indicates an operation that needs a parsed model.
	ErrModelNotParsed = errors.New("pk: model has not been parsed")

	// ErrUnknownCompartment indicates a reference to a compartment the model does not define.
	ErrUnknownCompartment = errors.New("pk: unknown compartment")

	// ErrUnknownParameter indicates a reference to a parameter the model does not define.
	ErrUnknownParameter = errors.New("pk: unknown parameter")

	// ErrUnknownVariable indicates a mapping target that is neither a compartment nor a derived variable.
	ErrUnknownVariable = errors.New("pk: unknown model variable")

	// ErrMisaligned indicates a column whose length differs from the Time axis.
	ErrMisaligned = errors.New("pk: column length does not match time axis")
)

// ValidationError is a client-side rejection raised before anything is sent to the solver.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError for field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// TransportError reports a network failure or a non-2xx response from the solver service.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: service responded %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SolverError reports a well-formed response carrying an explicit failure status.
type SolverError struct {
	Op      string
	Message string
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// DataIngestionError reports a file that could not become a dataset.
type DataIngestionError struct {
	File string
	Err  error
}

func (e *DataIngestionError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *DataIngestionError) Unwrap() error { return e.Err }
