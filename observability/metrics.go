package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/hupe1980/agentrail/core"
)

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `yaml:"addr,omitempty"`
}

// Metrics records run, model, tool, guardrail and handoff measurements.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	runsTotal   metric.Int64Counter
	runDuration metric.Float64Histogram

	modelCallsTotal   metric.Int64Counter
	modelErrorsTotal  metric.Int64Counter
	modelDuration     metric.Float64Histogram
	modelInputTokens  metric.Int64Counter
	modelOutputTokens metric.Int64Counter

	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter
	toolDuration    metric.Float64Histogram

	guardrailEvalsTotal metric.Int64Counter
	guardrailTripsTotal metric.Int64Counter

	handoffsTotal metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.runsTotal, "agentrail_runs_total", "Total runs by terminal status"},
		{&m.modelCallsTotal, "agentrail_model_calls_total", "Total model calls"},
		{&m.modelErrorsTotal, "agentrail_model_errors_total", "Total failed model calls"},
		{&m.modelInputTokens, "agentrail_model_tokens_input_total", "Total input tokens sent to models"},
		{&m.modelOutputTokens, "agentrail_model_tokens_output_total", "Total output tokens received from models"},
		{&m.toolCallsTotal, "agentrail_tool_calls_total", "Total tool calls"},
		{&m.toolErrorsTotal, "agentrail_tool_errors_total", "Total failed tool calls"},
		{&m.guardrailEvalsTotal, "agentrail_guardrail_evaluations_total", "Total guardrail evaluations"},
		{&m.guardrailTripsTotal, "agentrail_guardrail_trips_total", "Total triggered guardrail tripwires"},
		{&m.handoffsTotal, "agentrail_handoffs_total", "Total handoffs between agents"},
	}
	for _, c := range counters {
		if *c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.runDuration, "agentrail_run_duration_seconds", "Run duration in seconds"},
		{&m.modelDuration, "agentrail_model_call_duration_seconds", "Model call duration in seconds"},
		{&m.toolDuration, "agentrail_tool_execution_duration_seconds", "Tool execution duration in seconds"},
	}
	for _, h := range histograms {
		if *h.dst, err = meter.Float64Histogram(h.name, metric.WithDescription(h.desc)); err != nil {
			return nil, fmt.Errorf("failed to create %s histogram: %w", h.name, err)
		}
	}

	return &m, nil
}

// NewPrometheusMetrics creates Metrics exported through a Prometheus
// registerer. The returned provider must be shut down by the caller.
func NewPrometheusMetrics(reg prometheus.Registerer) (*Metrics, *sdkmetric.MeterProvider, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	m, err := NewMetrics(provider.Meter(DefaultServiceName))
	if err != nil {
		return nil, nil, err
	}

	return m, provider, nil
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(ctx context.Context, agent, status string, d time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("status", status),
	)

	m.runsTotal.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordModelCall records one model call.
func (m *Metrics) RecordModelCall(ctx context.Context, agent, modelName string, d time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("model", modelName),
	)

	m.modelCallsTotal.Add(ctx, 1, attrs)
	m.modelDuration.Record(ctx, d.Seconds(), attrs)
	if inputTokens > 0 {
		m.modelInputTokens.Add(ctx, int64(inputTokens), attrs)
	}
	if outputTokens > 0 {
		m.modelOutputTokens.Add(ctx, int64(outputTokens), attrs)
	}
	if err != nil {
		m.modelErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordToolCall records one tool execution.
func (m *Metrics) RecordToolCall(ctx context.Context, agent, tool string, d time.Duration, err error) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("tool", tool),
	)

	m.toolCallsTotal.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.toolErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordGuardrails records a batch of guardrail verdicts.
func (m *Metrics) RecordGuardrails(ctx context.Context, results []core.GuardrailResult) {
	if m == nil {
		return
	}

	for _, r := range results {
		attrs := metric.WithAttributes(
			attribute.String("guardrail", r.Guardrail),
			attribute.String("direction", string(r.Direction)),
		)
		m.guardrailEvalsTotal.Add(ctx, 1, attrs)
		if r.TripwireTriggered {
			m.guardrailTripsTotal.Add(ctx, 1, attrs)
		}
	}
}

// RecordHandoff records a handoff.
func (m *Metrics) RecordHandoff(ctx context.Context, from, to string) {
	if m == nil {
		return
	}

	m.handoffsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
