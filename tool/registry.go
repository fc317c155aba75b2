package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/model"
)

// ErrDuplicateTool is returned when two tools of one registry share a name.
var ErrDuplicateTool = errors.New("duplicate tool name")

// Registry is the ordered set of tools attached to one agent.
// It is immutable after construction.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

// NewRegistry builds a registry preserving the given order. Names must be unique.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make([]Tool, 0, len(tools)),
		index: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		if t == nil {
			continue
		}
		if _, exists := r.index[t.Name()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
		}
		r.index[t.Name()] = t
		r.tools = append(r.tools, t)
	}
	return r, nil
}

// Tools returns all registered tools regardless of visibility.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }

// Lookup finds a tool by exact name regardless of visibility.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// Visible evaluates every tool's predicate against the current cell state and
// returns the callable tools in registration order. It is never cached.
func (r *Registry) Visible(rc *core.RunContext, agent core.AgentInfo) []Tool {
	visible := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if IsEnabled(t, rc, agent) {
			visible = append(visible, t)
		}
	}
	return visible
}

// Definitions converts tools into model tool definitions.
func Definitions(tools []Tool) []model.ToolDefinition {
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition(t))
	}
	return defs
}

// Definition converts one tool into a model tool definition.
func Definition(t Tool) model.ToolDefinition {
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
