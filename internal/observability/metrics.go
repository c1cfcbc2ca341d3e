package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the metrics of one hydractl run:
// - Hydra requests: latency, traffic and errors per endpoint
// - Provisioning runs: outcome, duration and the stage reached
//
// Every Metrics value owns a private registry. A one-shot CLI has nothing
// to scrape it, so the registry is pushed to a Pushgateway when configured.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	// Hydra request metrics (Latency, Traffic, Errors)
	HydraRequestDuration metric.Float64Histogram
	HydraRequestsTotal   metric.Int64Counter
	HydraErrorsTotal     metric.Int64Counter

	// Provisioning run metrics
	RunDuration metric.Float64Histogram
	RunsTotal   metric.Int64Counter
}

// NewMetrics creates all metrics with a Prometheus exporter bound to a
// private registry.
func NewMetrics(ctx context.Context) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("hydractl")
	m := &Metrics{registry: registry, provider: provider}

	m.HydraRequestDuration, err = meter.Float64Histogram(
		"hydra_request_duration_seconds",
		metric.WithDescription("Hydra API request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	m.HydraRequestsTotal, err = meter.Int64Counter(
		"hydra_requests_total",
		metric.WithDescription("Total number of Hydra API requests that received a response"),
	)
	if err != nil {
		return nil, err
	}

	m.HydraErrorsTotal, err = meter.Int64Counter(
		"hydra_errors_total",
		metric.WithDescription("Total number of failed Hydra API requests (transport errors, 4xx and 5xx)"),
	)
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram(
		"provision_run_duration_seconds",
		metric.WithDescription("Provisioning run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	m.RunsTotal, err = meter.Int64Counter(
		"provision_runs_total",
		metric.WithDescription("Total number of provisioning runs by outcome and last stage reached"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordHydraRequest records a Hydra request that received a response.
func (m *Metrics) RecordHydraRequest(ctx context.Context, method, path string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		endpointAttr(path),
		statusAttr(statusCode),
	)

	m.HydraRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HydraRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HydraErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordHydraTransportError records a Hydra request that got no response.
func (m *Metrics) RecordHydraTransportError(ctx context.Context, method, path string, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		endpointAttr(path),
		transportStatusAttr(),
	)

	m.HydraRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HydraErrorsTotal.Add(ctx, 1, attrs)
}

// RecordRun records the outcome of a provisioning run.
func (m *Metrics) RecordRun(ctx context.Context, stage string, success bool, durationSeconds float64) {
	attrs := metric.WithAttributes(stageAttr(stage), successAttr(success))
	m.RunDuration.Record(ctx, durationSeconds, metric.WithAttributes(successAttr(success)))
	m.RunsTotal.Add(ctx, 1, attrs)
}

// Registry returns the registry the metrics are exported to.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push sends the current metrics to a Pushgateway under the given job name.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}

// Shutdown releases the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
