package dosing

import "errors"

// Rejection kinds returned by Validate.
var (
	ErrInvalidAmount    = errors.New("dosing: amount must be a finite number greater than zero")
	ErrInvalidStartTime = errors.New("dosing: start time must be a finite number >= 0")
	ErrIncompleteRepeat = errors.New("dosing: repeat every and repeat until must be set together")
	ErrInvalidRepeat    = errors.New("dosing: repeat interval must be > 0 and repeat until must be after the start time")
	ErrDurationRequired = errors.New("dosing: infusion requires a duration greater than zero")
	ErrInvalidKind      = errors.New("dosing: kind must be bolus or infusion")
	ErrNotFound         = errors.New("dosing: no dose with that id")
)
