package guardrail

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentrail/core"
)

// Evaluator produces a verdict for a candidate text.
type Evaluator interface {
	Evaluate(rc *core.RunContext, agent core.AgentInfo, text string) (any, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(rc *core.RunContext, agent core.AgentInfo, text string) (any, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(rc *core.RunContext, agent core.AgentInfo, text string) (any, error) {
	return f(rc, agent, text)
}

// Tripwire derives the halt signal from a verdict.
type Tripwire func(verdict any) bool

// ErrNoTripwire is reported by Validate for guardrails without a tripwire rule.
var ErrNoTripwire = errors.New("guardrail has no tripwire rule")

// Guardrail is an input or output check that can halt a run.
type Guardrail struct {
	name      string
	direction core.Direction
	evaluator Evaluator
	tripwire  Tripwire
}

// New creates a guardrail.
func New(name string, direction core.Direction, evaluator Evaluator, tripwire Tripwire) *Guardrail {
	return &Guardrail{name: name, direction: direction, evaluator: evaluator, tripwire: tripwire}
}

// NewInput creates an input guardrail.
func NewInput(name string, evaluator Evaluator, tripwire Tripwire) *Guardrail {
	return New(name, core.DirectionInput, evaluator, tripwire)
}

// NewOutput creates an output guardrail.
func NewOutput(name string, evaluator Evaluator, tripwire Tripwire) *Guardrail {
	return New(name, core.DirectionOutput, evaluator, tripwire)
}

// NewInputFunc creates an input guardrail from a typed evaluator and tripwire.
func NewInputFunc[V any](
	name string,
	eval func(rc *core.RunContext, agent core.AgentInfo, text string) (V, error),
	tripwire func(V) bool,
) *Guardrail {
	return NewTyped(name, core.DirectionInput, eval, tripwire)
}

// NewOutputFunc creates an output guardrail from a typed evaluator and tripwire.
func NewOutputFunc[V any](
	name string,
	eval func(rc *core.RunContext, agent core.AgentInfo, text string) (V, error),
	tripwire func(V) bool,
) *Guardrail {
	return NewTyped(name, core.DirectionOutput, eval, tripwire)
}

// NewTyped creates a guardrail whose verdict is a V.
func NewTyped[V any](
	name string,
	direction core.Direction,
	eval func(rc *core.RunContext, agent core.AgentInfo, text string) (V, error),
	tripwire func(V) bool,
) *Guardrail {
	var tw Tripwire
	if tripwire != nil {
		tw = func(verdict any) bool {
			v, ok := verdict.(V)
			return ok && tripwire(v)
		}
	}
	return New(name, direction, EvaluatorFunc(func(rc *core.RunContext, agent core.AgentInfo, text string) (any, error) {
		return eval(rc, agent, text)
	}), tw)
}

// Name returns the guardrail name.
func (g *Guardrail) Name() string { return g.name }

// Direction returns whether the guardrail gates input or output.
func (g *Guardrail) Direction() core.Direction { return g.direction }

// Validate checks that the guardrail is complete.
func (g *Guardrail) Validate() error {
	switch {
	case g.name == "":
		return errors.New("guardrail name is required")
	case g.evaluator == nil:
		return fmt.Errorf("guardrail %q has no evaluator", g.name)
	case g.tripwire == nil:
		return fmt.Errorf("guardrail %q: %w", g.name, ErrNoTripwire)
	case g.direction != core.DirectionInput && g.direction != core.DirectionOutput:
		return fmt.Errorf("guardrail %q has invalid direction %q", g.name, g.direction)
	}
	return nil
}

// Evaluate runs the evaluator over text and derives the tripwire. A failing
// or panicking evaluator yields a *core.RunError of kind
// KindGuardrailEvaluationFailed, never a tripped result.
func (g *Guardrail) Evaluate(rc *core.RunContext, agent core.AgentInfo, text string) (result core.GuardrailResult, err error) {
	fail := func(cause error) *core.RunError {
		return &core.RunError{
			Kind:      core.KindGuardrailEvaluationFailed,
			Direction: g.direction,
			Guardrail: g.name,
			Err:       cause,
		}
	}

	if vErr := g.Validate(); vErr != nil {
		return core.GuardrailResult{}, fail(vErr)
	}

	defer func() {
		if r := recover(); r != nil {
			rc.LogError("guardrail.panic", "guardrail", g.name, "recover", r)
			err = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	verdict, evalErr := g.evaluator.Evaluate(rc, agent, text)
	if evalErr != nil {
		return core.GuardrailResult{}, fail(evalErr)
	}

	return core.GuardrailResult{
		Guardrail:         g.name,
		Direction:         g.direction,
		Agent:             agent.Name,
		OutputInfo:        verdict,
		TripwireTriggered: g.tripwire(verdict),
	}, nil
}
