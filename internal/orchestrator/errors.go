package orchestrator

import "errors"

// ErrBusy indicates a submission while a request of the same kind is running.
var ErrBusy = errors.New("orchestrator: a request of this kind is already running")
