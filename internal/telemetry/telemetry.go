// Package telemetry records solver request metrics through OpenTelemetry.
package telemetry

import (
	"context"
	"time"
)

// Outcomes of a finished request.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Recorder receives request lifecycle metrics from the orchestrator.
type Recorder interface {
	RequestStarted(ctx context.Context, kind string)
	RequestFinished(ctx context.Context, kind, outcome string, elapsed time.Duration)
	RequestRejected(ctx context.Context, kind, reason string)
	Close(ctx context.Context) error
}

// Config holds OTLP exporter configuration.
type Config struct {
	Endpoint string
	Enabled  bool
	Insecure bool
}

// New returns an OTLP-backed recorder when cfg enables one, and a no-op otherwise.
func New(ctx context.Context, cfg Config) (Recorder, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return NewNoop(), nil
	}
	return NewExporter(ctx, cfg)
}
