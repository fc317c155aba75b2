package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/model"
)

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on tracing. Default: false
	Enabled bool `yaml:"enabled,omitempty"`

	// Exporter specifies the span exporter. Values: "stdout" (default)
	Exporter string `yaml:"exporter,omitempty"`

	// SamplingRate controls what fraction of runs are sampled (0.0 - 1.0).
	// Default: 1.0
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`

	// ServiceName identifies this service in traces. Default: "agentrail"
	ServiceName string `yaml:"service_name,omitempty"`

	// ServiceVersion is the version of this service.
	ServiceVersion string `yaml:"service_version,omitempty"`

	// Output receives stdout exporter spans. Default: os.Stderr
	Output io.Writer `yaml:"-"`
}

// SetDefaults fills unset fields.
func (c *TracingConfig) SetDefaults() {
	if c.Exporter == "" {
		c.Exporter = "stdout"
	}
	if c.SamplingRate <= 0 {
		c.SamplingRate = 1.0
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
}

// Tracer wraps an OpenTelemetry tracer with run specific helpers.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer creates a Tracer from configuration. A disabled config yields a
// nil Tracer, which is valid and produces no-op spans.
func NewTracer(ctx context.Context, cfg *TracingConfig) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	cfg.SetDefaults()

	exporter, err := createExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String(AttrGenAISystem, DefaultServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithBatcher(exporter),
	)

	return &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}, nil
}

// NewTracerFromProvider wraps an existing provider (for example a test
// provider with a span recorder).
func NewTracerFromProvider(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		return nil
	}
	return &Tracer{tracer: tp.Tracer(DefaultServiceName)}
}

func createExporter(cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(cfg.Output), stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

// Start begins a new span with the given name.
func (t *Tracer) Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// StartRun begins the root span of a run.
func (t *Tracer) StartRun(ctx context.Context, runID, agentName string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanRun,
		attribute.String(AttrRunID, runID),
		attribute.String(AttrAgentName, agentName),
	)
}

// StartTurn begins a span for one model call.
func (t *Tracer) StartTurn(ctx context.Context, agentName, modelName string, turn, visibleTools int) (context.Context, trace.Span) {
	return t.Start(ctx, SpanTurn,
		attribute.String(AttrAgentName, agentName),
		attribute.String(AttrGenAIRequestModel, modelName),
		attribute.Int(AttrTurn, turn),
		attribute.Int(AttrVisibleTools, visibleTools),
	)
}

// StartTool begins a span for one tool call.
func (t *Tracer) StartTool(ctx context.Context, agentName string, fc core.FunctionCall) (context.Context, trace.Span) {
	return t.Start(ctx, SpanTool,
		attribute.String(AttrAgentName, agentName),
		attribute.String(AttrToolName, fc.Name),
		attribute.String(AttrToolCallID, fc.ID),
	)
}

// StartGuardrails begins a span for a guardrail batch.
func (t *Tracer) StartGuardrails(ctx context.Context, agentName string, direction core.Direction, count int) (context.Context, trace.Span) {
	return t.Start(ctx, SpanGuardrail,
		attribute.String(AttrAgentName, agentName),
		attribute.String(AttrGuardrailDir, string(direction)),
		attribute.Int(AttrGuardrailCount, count),
	)
}

// StartHandoff begins a span for a handoff.
func (t *Tracer) StartHandoff(ctx context.Context, from, to string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanHandoff,
		attribute.String(AttrHandoffFrom, from),
		attribute.String(AttrHandoffTo, to),
	)
}

// AddResponse records finish reason and token usage on a turn span.
func (t *Tracer) AddResponse(span trace.Span, resp model.Response, outcome string) {
	if t == nil {
		return
	}
	span.SetAttributes(
		attribute.String(AttrFinishReason, resp.FinishReason),
		attribute.String(AttrOutcome, outcome),
	)
	if resp.Usage != nil {
		span.SetAttributes(
			attribute.Int(AttrGenAIUsageInputTokens, resp.Usage.PromptTokens),
			attribute.Int(AttrGenAIUsageOutputTokens, resp.Usage.CompletionTokens),
		)
	}
}

// AddVerdicts records guardrail verdicts as span events.
func (t *Tracer) AddVerdicts(span trace.Span, verdicts []core.GuardrailResult) {
	if t == nil {
		return
	}
	for _, v := range verdicts {
		span.AddEvent("guardrail.verdict", trace.WithAttributes(
			attribute.String(AttrGuardrailName, v.Guardrail),
			attribute.Bool(AttrTripwire, v.TripwireTriggered),
		))
	}
}

// RecordError marks span as failed. A *core.RunError adds its kind.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if t == nil || err == nil {
		return
	}
	if kind := core.KindOf(err); kind != "" {
		span.SetAttributes(attribute.String(AttrErrorKind, string(kind)))
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Shutdown flushes and stops the provider created by NewTracer.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
