package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies why a run failed.
type ErrorKind string

const (
	KindGuardrailEvaluationFailed  ErrorKind = "guardrail_evaluation_failed"
	KindGuardrailTripwireTriggered ErrorKind = "guardrail_tripwire_triggered"
	KindToolExecutionFailed        ErrorKind = "tool_execution_failed"
	KindToolNotVisible             ErrorKind = "tool_not_visible"
	KindHandoffTargetUnknown       ErrorKind = "handoff_target_unknown"
	KindHandoffCycle               ErrorKind = "handoff_cycle"
	KindCollaboratorError          ErrorKind = "collaborator_error"
	KindMaxTurnsExceeded           ErrorKind = "max_turns_exceeded"
	KindCancelled                  ErrorKind = "cancelled"
	KindTimeout                    ErrorKind = "timeout"
)

// RunError is the failure carried by a Failed run result. Only the fields
// relevant to Kind are populated.
type RunError struct {
	Kind      ErrorKind
	State     State
	Tool      string
	Handoff   string
	Chain     []string
	Direction Direction
	Guardrail string
	Err       error
}

// Sentinels for errors.Is matching on the error kind.
var (
	ErrGuardrailEvaluationFailed = &RunError{Kind: KindGuardrailEvaluationFailed}
	ErrToolExecutionFailed       = &RunError{Kind: KindToolExecutionFailed}
	ErrToolNotVisible            = &RunError{Kind: KindToolNotVisible}
	ErrHandoffTargetUnknown      = &RunError{Kind: KindHandoffTargetUnknown}
	ErrHandoffCycle              = &RunError{Kind: KindHandoffCycle}
	ErrCollaborator              = &RunError{Kind: KindCollaboratorError}
	ErrMaxTurnsExceeded          = &RunError{Kind: KindMaxTurnsExceeded}
	ErrCancelled                 = &RunError{Kind: KindCancelled}
	ErrTimeout                   = &RunError{Kind: KindTimeout}
)

func (e *RunError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.State != "" {
		fmt.Fprintf(&b, " in %s", e.State)
	}
	switch {
	case e.Tool != "":
		fmt.Fprintf(&b, ": tool %q", e.Tool)
	case e.Kind == KindHandoffCycle:
		fmt.Fprintf(&b, ": chain %s -> %s", strings.Join(e.Chain, " -> "), e.Handoff)
	case e.Handoff != "":
		fmt.Fprintf(&b, ": handoff target %q", e.Handoff)
	case e.Guardrail != "":
		fmt.Fprintf(&b, ": %s guardrail %q", e.Direction, e.Guardrail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *RunError) Unwrap() error { return e.Err }

// Is matches any *RunError of the same kind, so sentinels work with errors.Is.
func (e *RunError) Is(target error) bool {
	t, ok := target.(*RunError)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the ErrorKind from err, or "" when err is not a *RunError.
func KindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// ContextError maps a context error to Cancelled or Timeout.
func ContextError(state State, err error) *RunError {
	kind := KindCancelled
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &RunError{Kind: kind, State: state, Err: err}
}

// TripwireError describes a run halted by guardrails. The executor never returns
// it; it is offered to callers that prefer error style handling.
type TripwireError struct {
	Direction Direction
	Verdicts  []GuardrailResult
}

func (e *TripwireError) Error() string {
	names := make([]string, 0, len(e.Verdicts))
	for _, v := range e.Verdicts {
		names = append(names, v.Guardrail)
	}
	return fmt.Sprintf("%s guardrail tripwire triggered: %s", e.Direction, strings.Join(names, ", "))
}
