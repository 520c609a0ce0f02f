package telemetry

import (
	"context"
	"time"
)

// Noop is a recorder that does nothing.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) RequestStarted(context.Context, string)                         {}
func (Noop) RequestFinished(context.Context, string, string, time.Duration) {}
func (Noop) RequestRejected(context.Context, string, string)                {}
func (Noop) Close(context.Context) error                                    { return nil }
