package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "pksim"
	serviceVersion = "0.1.0"
)

// Exporter records request metrics into an OpenTelemetry meter.
type Exporter struct {
	provider     *sdkmetric.MeterProvider
	started      metric.Int64Counter
	finished     metric.Int64Counter
	rejected     metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewExporter creates a recorder that pushes to an OTLP collector over gRPC.
func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("telemetry: exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
	}
	return NewWithReader(ctx, sdkmetric.NewPeriodicReader(exp))
}

// NewWithReader creates a recorder collected by reader.
func NewWithReader(ctx context.Context, reader sdkmetric.Reader) (*Exporter, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter(serviceName)

	e := &Exporter{provider: provider}
	if e.started, err = meter.Int64Counter(
		"pksim_requests_started_total",
		metric.WithDescription("Solver requests accepted for submission"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("telemetry: creating started counter: %w", err)
	}
	if e.finished, err = meter.Int64Counter(
		"pksim_requests_finished_total",
		metric.WithDescription("Solver requests that reached a terminal state"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("telemetry: creating finished counter: %w", err)
	}
	if e.rejected, err = meter.Int64Counter(
		"pksim_requests_rejected_total",
		metric.WithDescription("Submissions rejected before reaching the solver"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("telemetry: creating rejected counter: %w", err)
	}
	if e.durationHist, err = meter.Float64Histogram(
		"pksim_request_duration_seconds",
		metric.WithDescription("Wall time of solver requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("telemetry: creating duration histogram: %w", err)
	}
	return e, nil
}

func (e *Exporter) RequestStarted(ctx context.Context, kind string) {
	e.started.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (e *Exporter) RequestFinished(ctx context.Context, kind, outcome string, elapsed time.Duration) {
	opt := metric.WithAttributes(attribute.String("kind", kind), attribute.String("outcome", outcome))
	e.finished.Add(ctx, 1, opt)
	e.durationHist.Record(ctx, elapsed.Seconds(), opt)
}

func (e *Exporter) RequestRejected(ctx context.Context, kind, reason string) {
	e.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind), attribute.String("reason", reason)))
}

// Close shuts down the provider and flushes pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
