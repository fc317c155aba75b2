package runner

import (
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/guardrail"
	"github.com/hupe1980/agentrail/model"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusDone   Status = "done"
	StatusHalted Status = "halted"
	StatusFailed Status = "failed"
)

// Result is the outcome of a run. Exactly one of Done, Halted or Failed
// holds.
type Result struct {
	RunID  string
	Status Status

	// FinalOutput is the final message of a Done run.
	FinalOutput string
	// LastAgent is the agent that was active when the run ended.
	LastAgent string
	// Verdicts holds every guardrail verdict evaluated, input then output.
	Verdicts []core.GuardrailResult
	// Failure describes a Failed run.
	Failure *core.RunError

	History []core.Content
	// Chain lists the agents activated since the user input.
	Chain []string
	Turns int
	Usage model.TokenUsage
}

// Done reports whether the run produced a final message.
func (r *Result) Done() bool { return r.Status == StatusDone }

// Halted reports whether a guardrail tripwire stopped the run.
func (r *Result) Halted() bool { return r.Status == StatusHalted }

// Failed reports whether the run ended with an error.
func (r *Result) Failed() bool { return r.Status == StatusFailed }

// Tripped returns the verdicts whose tripwire triggered.
func (r *Result) Tripped() []core.GuardrailResult { return guardrail.Tripped(r.Verdicts) }

// Err returns nil for a Done run, a *core.TripwireError for a Halted run and
// the *core.RunError of a Failed run.
func (r *Result) Err() error {
	switch r.Status {
	case StatusHalted:
		tripped := r.Tripped()
		dir := core.DirectionInput
		if len(tripped) > 0 {
			dir = tripped[0].Direction
		}
		return &core.TripwireError{Direction: dir, Verdicts: tripped}
	case StatusFailed:
		if r.Failure == nil {
			return nil
		}
		return r.Failure
	default:
		return nil
	}
}
