package flow

import (
	"fmt"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
)

// Chain is the unbroken sequence of agents activated since the user input.
type Chain struct {
	agents []*agent.Agent
}

// NewChain starts a chain at start.
func NewChain(start *agent.Agent) *Chain {
	return &Chain{agents: []*agent.Agent{start}}
}

// Contains reports whether the descriptor a is already in the chain. Agents
// are compared by identity: distinct descriptors sharing a name (e.g. built
// with Clone) are different agents.
func (c *Chain) Contains(a *agent.Agent) bool {
	for _, v := range c.agents {
		if v == a {
			return true
		}
	}
	return false
}

// Push appends a as the active agent.
func (c *Chain) Push(a *agent.Agent) { c.agents = append(c.agents, a) }

// Current returns the active agent.
func (c *Chain) Current() *agent.Agent { return c.agents[len(c.agents)-1] }

// Len returns the number of agents in the chain.
func (c *Chain) Len() int { return len(c.agents) }

// Names returns the agent names in activation order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.agents))
	for i, a := range c.agents {
		names[i] = a.Name()
	}
	return names
}

// Router resolves handoff directives.
type Router struct{}

// NewRouter creates a new router.
func NewRouter() *Router { return &Router{} }

// Resolve finds the handoff of from named target (exact match) and appends
// the resolved agent to chain. Unknown names fail with
// KindHandoffTargetUnknown and a revisit of an agent already in chain with
// KindHandoffCycle. The chain is left untouched on error.
func (r *Router) Resolve(from *agent.Agent, target string, chain *Chain) (*agent.Agent, error) {
	for _, h := range from.Handoffs() {
		if h.Name() != target {
			continue
		}

		next := h.Target()
		if next == nil {
			return nil, &core.RunError{
				Kind:    core.KindHandoffTargetUnknown,
				State:   core.StateHandoff,
				Handoff: target,
				Err:     fmt.Errorf("handoff %q of agent %s resolved to no agent", target, from.Name()),
			}
		}

		if chain.Contains(next) {
			return nil, &core.RunError{
				Kind:    core.KindHandoffCycle,
				State:   core.StateHandoff,
				Handoff: next.Name(),
				Chain:   chain.Names(),
			}
		}

		chain.Push(next)

		return next, nil
	}

	return nil, &core.RunError{
		Kind:    core.KindHandoffTargetUnknown,
		State:   core.StateHandoff,
		Handoff: target,
		Err:     fmt.Errorf("agent %s has no handoff named %q", from.Name(), target),
	}
}
