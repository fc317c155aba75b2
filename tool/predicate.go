package tool

import "github.com/hupe1980/agentrail/core"

// Predicate decides per turn whether a tool is callable. Implementations must
// be pure with respect to their inputs: the same cell state and agent yield
// the same answer.
type Predicate interface {
	Enabled(rc *core.RunContext, agent core.AgentInfo) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(rc *core.RunContext, agent core.AgentInfo) bool

// Enabled implements Predicate.
func (f PredicateFunc) Enabled(rc *core.RunContext, agent core.AgentInfo) bool { return f(rc, agent) }

// When builds a predicate over a typed context cell. It is false when the
// cell is not a T.
//
//	tool.When(func(acct *Account, _ core.AgentInfo) bool { return acct.Pin == 1234 })
func When[T any](fn func(cell T, agent core.AgentInfo) bool) Predicate {
	return PredicateFunc(func(rc *core.RunContext, agent core.AgentInfo) bool {
		cell, ok := core.CellAs[T](rc)
		if !ok {
			return false
		}
		return fn(cell, agent)
	})
}

// All is true when every predicate is true (nil entries count as true).
func All(ps ...Predicate) Predicate {
	return PredicateFunc(func(rc *core.RunContext, agent core.AgentInfo) bool {
		for _, p := range ps {
			if p != nil && !p.Enabled(rc, agent) {
				return false
			}
		}
		return true
	})
}

// Any is true when at least one predicate is true.
func Any(ps ...Predicate) Predicate {
	return PredicateFunc(func(rc *core.RunContext, agent core.AgentInfo) bool {
		for _, p := range ps {
			if p == nil || p.Enabled(rc, agent) {
				return true
			}
		}
		return false
	})
}

// Not negates p.
func Not(p Predicate) Predicate {
	return PredicateFunc(func(rc *core.RunContext, agent core.AgentInfo) bool {
		return p != nil && !p.Enabled(rc, agent)
	})
}

// IsEnabled evaluates the tool's predicate; tools without one are always enabled.
func IsEnabled(t Tool, rc *core.RunContext, agent core.AgentInfo) bool {
	p := PredicateOf(t)
	return p == nil || p.Enabled(rc, agent)
}
