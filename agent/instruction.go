package agent

import "github.com/hupe1980/agentrail/core"

// Provider supplies instruction text derived from the run's context cell.
// It is consulted at every turn; implementations must be pure with respect to
// the cell state.
type Provider interface {
	Instruction(rc *core.RunContext, agent core.AgentInfo) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(rc *core.RunContext, agent core.AgentInfo) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext, agent core.AgentInfo) (string, error) {
	return f(rc, agent)
}

// Instruction is either a fixed string or derived from the context cell.
type Instruction struct {
	text     string
	provider Provider
}

// Fixed creates an Instruction from a static string.
func Fixed(text string) Instruction { return Instruction{text: text} }

// Derived creates an Instruction computed from the run context on every turn.
func Derived(f func(rc *core.RunContext, agent core.AgentInfo) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// FromProvider creates an Instruction from a dynamic provider.
func FromProvider(p Provider) Instruction { return Instruction{provider: p} }

// DerivedFrom creates an Instruction from a typed context cell. When the cell
// is not a T, fallback is returned.
//
//	agent.DerivedFrom(func(u *User) string { return "Help " + u.Name }, "Help the user")
func DerivedFrom[T any](f func(cell T) string, fallback string) Instruction {
	return Derived(func(rc *core.RunContext, _ core.AgentInfo) (string, error) {
		cell, ok := core.CellAs[T](rc)
		if !ok {
			return fallback, nil
		}
		return f(cell), nil
	})
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(rc *core.RunContext, agent core.AgentInfo) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc, agent)
	}
	return i.text, nil
}
