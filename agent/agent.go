package agent

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/guardrail"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/tool"
)

// ToolUseBehavior decides what happens after a turn's tool calls were dispatched.
type ToolUseBehavior string

const (
	// RunLLMAgain feeds tool results back to the model for another turn.
	RunLLMAgain ToolUseBehavior = "run_llm_again"
	// StopOnFirstTool uses the first tool's output as the final message.
	StopOnFirstTool ToolUseBehavior = "stop_on_first_tool"
)

// ToolErrorPolicy decides how a failing tool handler affects the run.
type ToolErrorPolicy string

const (
	// ToolErrorAsFeedback records the failure as the tool result and continues.
	ToolErrorAsFeedback ToolErrorPolicy = "feedback"
	// ToolErrorFatal fails the run with KindToolExecutionFailed.
	ToolErrorFatal ToolErrorPolicy = "fatal"
)

// Validation errors returned by New.
var (
	ErrInvalidAgent     = errors.New("invalid agent")
	ErrMutatingConflict = errors.New("parallel tool set has more than one mutating tool without explicit order")
)

// Options configures an Agent. Use functional options with New.
type Options struct {
	Description      string
	Instruction      Instruction
	Model            model.Model // nil falls back to the runner's default model
	Settings         model.Settings
	Tools            []tool.Tool
	InputGuardrails  []*guardrail.Guardrail
	OutputGuardrails []*guardrail.Guardrail
	Handoffs         []Handoff
	ToolUseBehavior  ToolUseBehavior
	// StopAtTools ends the run with the tool's output when any of the named tools is called.
	StopAtTools     []string
	ToolErrorPolicy ToolErrorPolicy
	// MutatingOrder is the serial order in which mutating tools run when
	// parallel tool calls are enabled.
	MutatingOrder []string
}

// Agent is the immutable definition of one agent.
type Agent struct {
	name     string
	opts     Options
	registry *tool.Registry
}

// New validates opts and creates an Agent.
//
//	bank, err := agent.New("Bank Agent", func(o *agent.Options) {
//	    o.Instruction = agent.Fixed("You are a bank agent.")
//	    o.Tools = []tool.Tool{checkBalance}
//	    o.InputGuardrails = []*guardrail.Guardrail{bankTopic}
//	})
func New(name string, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		Instruction:     Fixed(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		ToolUseBehavior: RunLLMAgain,
		ToolErrorPolicy: ToolErrorAsFeedback,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return build(name, opts)
}

// MustNew is like New but panics on invalid configuration.
func MustNew(name string, optFns ...func(o *Options)) *Agent {
	a, err := New(name, optFns...)
	if err != nil {
		panic(err)
	}
	return a
}

func build(name string, opts Options) (*Agent, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidAgent, name, fmt.Sprintf(format, args...))
	}

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAgent)
	}

	// Slices are copied so later changes by the caller cannot alter the agent.
	opts.Tools = slices.Clone(opts.Tools)
	opts.InputGuardrails = slices.Clone(opts.InputGuardrails)
	opts.OutputGuardrails = slices.Clone(opts.OutputGuardrails)
	opts.Handoffs = slices.Clone(opts.Handoffs)
	opts.StopAtTools = slices.Clone(opts.StopAtTools)
	opts.MutatingOrder = slices.Clone(opts.MutatingOrder)

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, invalid("%v", err)
	}
	if _, reserved := registry.Lookup(tool.TransferToAgentName); reserved {
		return nil, invalid("tool name %q is reserved", tool.TransferToAgentName)
	}

	switch opts.ToolUseBehavior {
	case "":
		opts.ToolUseBehavior = RunLLMAgain
	case RunLLMAgain, StopOnFirstTool:
	default:
		return nil, invalid("unknown tool use behavior %q", opts.ToolUseBehavior)
	}
	switch opts.ToolErrorPolicy {
	case "":
		opts.ToolErrorPolicy = ToolErrorAsFeedback
	case ToolErrorAsFeedback, ToolErrorFatal:
	default:
		return nil, invalid("unknown tool error policy %q", opts.ToolErrorPolicy)
	}

	for _, toolName := range opts.StopAtTools {
		if _, ok := registry.Lookup(toolName); !ok {
			return nil, invalid("stop-at tool %q is not registered", toolName)
		}
	}

	if err := validateGuardrails(opts.InputGuardrails, core.DirectionInput); err != nil {
		return nil, invalid("%v", err)
	}
	if err := validateGuardrails(opts.OutputGuardrails, core.DirectionOutput); err != nil {
		return nil, invalid("%v", err)
	}

	seen := make(map[string]struct{}, len(opts.Handoffs))
	for _, h := range opts.Handoffs {
		if h.Name() == "" {
			return nil, invalid("handoff without target name")
		}
		if _, dup := seen[h.Name()]; dup {
			return nil, invalid("duplicate handoff target %q", h.Name())
		}
		seen[h.Name()] = struct{}{}
	}

	if err := validateMutating(registry, opts); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidAgent, name, err)
	}

	return &Agent{name: name, opts: opts, registry: registry}, nil
}

func validateGuardrails(guardrails []*guardrail.Guardrail, direction core.Direction) error {
	for _, g := range guardrails {
		if g == nil {
			return errors.New("nil guardrail")
		}
		if err := g.Validate(); err != nil {
			return err
		}
		if g.Direction() != direction {
			return fmt.Errorf("guardrail %q is an %s guardrail, want %s", g.Name(), g.Direction(), direction)
		}
	}
	return nil
}

// validateMutating rejects a parallel tool set with more than one mutating tool
// unless MutatingOrder covers all of them.
func validateMutating(registry *tool.Registry, opts Options) error {
	for _, name := range opts.MutatingOrder {
		t, ok := registry.Lookup(name)
		if !ok {
			return fmt.Errorf("mutating order names unknown tool %q", name)
		}
		if !tool.IsMutating(t) {
			return fmt.Errorf("mutating order names non-mutating tool %q", name)
		}
	}

	if !opts.Settings.Parallel() {
		return nil
	}

	var mutating []string
	for _, t := range registry.Tools() {
		if tool.IsMutating(t) {
			mutating = append(mutating, t.Name())
		}
	}
	if len(mutating) <= 1 {
		return nil
	}
	for _, name := range mutating {
		if !slices.Contains(opts.MutatingOrder, name) {
			return fmt.Errorf("%w: %v", ErrMutatingConflict, mutating)
		}
	}
	return nil
}

// Clone derives a new agent named name from a, applying optFns on top of a's options.
func (a *Agent) Clone(name string, optFns ...func(o *Options)) (*Agent, error) {
	opts := a.opts
	for _, fn := range optFns {
		fn(&opts)
	}
	return build(name, opts)
}

// Name returns the agent name used for logging and handoff matching.
func (a *Agent) Name() string { return a.name }

// Description returns the description shown to other agents' models.
func (a *Agent) Description() string { return a.opts.Description }

// Info returns the agent identity handed to predicates, tools and guardrails.
func (a *Agent) Info() core.AgentInfo {
	return core.AgentInfo{Name: a.name, Description: a.opts.Description}
}

// Instruction returns the instruction variant.
func (a *Agent) Instruction() Instruction { return a.opts.Instruction }

// ResolveInstruction evaluates the instruction against the run context.
func (a *Agent) ResolveInstruction(rc *core.RunContext) (string, error) {
	return a.opts.Instruction.Resolve(rc, a.Info())
}

// Model returns the agent specific model (may be nil).
func (a *Agent) Model() model.Model { return a.opts.Model }

// Settings returns the model-call settings.
func (a *Agent) Settings() model.Settings { return a.opts.Settings }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tool.Registry { return a.registry }

// InputGuardrails returns the input guardrails.
func (a *Agent) InputGuardrails() []*guardrail.Guardrail { return slices.Clone(a.opts.InputGuardrails) }

// OutputGuardrails returns the output guardrails.
func (a *Agent) OutputGuardrails() []*guardrail.Guardrail {
	return slices.Clone(a.opts.OutputGuardrails)
}

// Handoffs returns the handoff targets.
func (a *Agent) Handoffs() []Handoff { return slices.Clone(a.opts.Handoffs) }

// ToolUseBehavior returns the continuation policy after tool calls.
func (a *Agent) ToolUseBehavior() ToolUseBehavior { return a.opts.ToolUseBehavior }

// StopAtTools returns the names of tools whose output ends the run.
func (a *Agent) StopAtTools() []string { return slices.Clone(a.opts.StopAtTools) }

// ToolErrorPolicy returns how tool failures are handled.
func (a *Agent) ToolErrorPolicy() ToolErrorPolicy { return a.opts.ToolErrorPolicy }

// MutatingOrder returns the serial order of mutating tools under parallel dispatch.
func (a *Agent) MutatingOrder() []string { return slices.Clone(a.opts.MutatingOrder) }

// StopsAt reports whether calling toolName ends the run with its output.
func (a *Agent) StopsAt(toolName string) bool {
	return a.opts.ToolUseBehavior == StopOnFirstTool || slices.Contains(a.opts.StopAtTools, toolName)
}
