package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrail/core"
)

// Instrumentation bundles a Tracer and Metrics. The zero value is a no-op.
// It satisfies the tool observer hook of the dispatcher.
type Instrumentation struct {
	Tracer  *Tracer
	Metrics *Metrics
}

// ToolStarted opens a tool span and returns the context carrying it.
func (i Instrumentation) ToolStarted(ctx context.Context, agent string, fc core.FunctionCall) context.Context {
	if i.Tracer == nil {
		return ctx
	}
	ctx, _ = i.Tracer.StartTool(ctx, agent, fc)
	return ctx
}

// ToolFinished ends the tool span in ctx and records the call.
func (i Instrumentation) ToolFinished(ctx context.Context, agent string, fc core.FunctionCall, err error, d time.Duration) {
	if i.Tracer != nil {
		span := trace.SpanFromContext(ctx)
		i.Tracer.RecordError(span, err)
		span.End()
	}
	i.Metrics.RecordToolCall(ctx, agent, fc.Name, d, err)
}
