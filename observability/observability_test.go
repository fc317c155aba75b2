package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/agentrail/core"
)

func TestNilSafety(t *testing.T) {
	ctx := context.Background()

	var tracer *Tracer
	_, span := tracer.StartRun(ctx, "run", "A")
	tracer.RecordError(span, errors.New("boom"))
	span.End()

	var metrics *Metrics
	metrics.RecordRun(ctx, "A", "done", time.Second)
	metrics.RecordToolCall(ctx, "A", "t", time.Millisecond, nil)
	metrics.RecordGuardrails(ctx, []core.GuardrailResult{{Guardrail: "g", TripwireTriggered: true}})
	metrics.RecordHandoff(ctx, "A", "B")

	inst := Instrumentation{}
	inst.ToolFinished(inst.ToolStarted(ctx, "A", core.FunctionCall{Name: "t"}), "A", core.FunctionCall{Name: "t"}, nil, time.Millisecond)
}

func TestNewTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(context.Background(), &TracingConfig{})
	require.NoError(t, err)
	assert.Nil(t, tracer)
	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestInstrumentation_ToolSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	inst := Instrumentation{Tracer: NewTracerFromProvider(tp)}

	ctx, run := inst.Tracer.StartRun(context.Background(), "run-1", "Bank")
	fc := core.FunctionCall{ID: "c1", Name: "check_balance"}
	toolCtx := inst.ToolStarted(ctx, "Bank", fc)
	inst.ToolFinished(toolCtx, "Bank", fc, &core.RunError{Kind: core.KindToolExecutionFailed, Tool: fc.Name}, time.Millisecond)
	run.End()

	ended := sr.Ended()
	require.Len(t, ended, 2)

	toolSpan := ended[0]
	assert.Equal(t, SpanTool, toolSpan.Name())
	assert.Equal(t, codes.Error, toolSpan.Status().Code)
	assert.Contains(t, toolSpan.Attributes(), attribute.String(AttrToolName, "check_balance"))
	assert.Contains(t, toolSpan.Attributes(), attribute.String(AttrErrorKind, string(core.KindToolExecutionFailed)))
	assert.Equal(t, ended[1].SpanContext().SpanID(), toolSpan.Parent().SpanID())
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordToolCall(ctx, "Bank", "check_balance", time.Millisecond, nil)
	m.RecordToolCall(ctx, "Bank", "check_balance", time.Millisecond, errors.New("boom"))
	m.RecordGuardrails(ctx, []core.GuardrailResult{
		{Guardrail: "topic", Direction: core.DirectionInput, TripwireTriggered: true},
		{Guardrail: "pii", Direction: core.DirectionInput},
	})
	m.RecordHandoff(ctx, "Triage", "Billing")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.Equal(t, int64(2), sumOf(t, rm, "agentrail_tool_calls_total"))
	assert.Equal(t, int64(1), sumOf(t, rm, "agentrail_tool_errors_total"))
	assert.Equal(t, int64(2), sumOf(t, rm, "agentrail_guardrail_evaluations_total"))
	assert.Equal(t, int64(1), sumOf(t, rm, "agentrail_guardrail_trips_total"))
	assert.Equal(t, int64(1), sumOf(t, rm, "agentrail_handoffs_total"))
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, mp, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m.RecordRun(context.Background(), "Bank", "done", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "agentrail_runs_total"))
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, mm := range sm.Metrics {
			if mm.Name != name {
				continue
			}
			sum, ok := mm.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}
