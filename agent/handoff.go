package agent

// Handoff names an agent the current agent may transfer control to.
type Handoff struct {
	name        string
	description string
	target      func() *Agent
}

// HandoffTo creates a handoff to an already constructed agent.
func HandoffTo(a *Agent) Handoff {
	return Handoff{name: a.Name(), description: a.Description(), target: func() *Agent { return a }}
}

// HandoffLazy creates a handoff whose target is resolved when the handoff is
// taken. It allows agents that reference each other.
func HandoffLazy(name, description string, target func() *Agent) Handoff {
	return Handoff{name: name, description: description, target: target}
}

// Name returns the target name the model uses in a handoff directive.
func (h Handoff) Name() string { return h.name }

// Description returns the text shown to the model for this target.
func (h Handoff) Description() string { return h.description }

// Target resolves the target agent (nil when unresolvable).
func (h Handoff) Target() *Agent {
	if h.target == nil {
		return nil
	}
	return h.target()
}
