package core

import (
	"context"

	"github.com/hupe1980/agentrail/logging"
)

// RunContext carries the execution scope of one run:
//   - The ambient cancellation Context
//   - The run identifier
//   - The caller owned context cell
//   - The logger
//
// The cell is held by reference and handed unchanged to every tool, capability
// predicate, derived instruction and guardrail evaluator of the run, across
// handoffs. The runtime never inspects or copies it.
type RunContext struct {
	Context context.Context
	RunID   string

	cell any

	*loggerAdapter
}

// NewRunContext constructs a RunContext.
func NewRunContext(ctx context.Context, runID string, cell any, logger logging.Logger) *RunContext {
	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		cell:          cell,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Cell returns the caller owned context cell (may be nil).
func (rc *RunContext) Cell() any { return rc.cell }

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// WithContext returns a shallow copy bound to ctx. The cell reference is shared.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	c := *rc
	c.Context = ctx
	return &c
}

// CellAs returns the context cell as T.
//
// Example:
//
//	acct, ok := core.CellAs[*Account](rc)
func CellAs[T any](rc *RunContext) (T, bool) {
	v, ok := rc.cell.(T)
	return v, ok
}
