package flow

import (
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/tool"
)

// OutcomeKind is the shape of a model turn.
type OutcomeKind int

const (
	// OutcomeFinalMessage is a reply without function calls.
	OutcomeFinalMessage OutcomeKind = iota
	// OutcomeToolCalls asks for one or more tool calls.
	OutcomeToolCalls
	// OutcomeHandoff names a handoff target via transfer_to_agent.
	OutcomeHandoff
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeToolCalls:
		return "tool_calls"
	case OutcomeHandoff:
		return "handoff"
	default:
		return "final_message"
	}
}

// Outcome is a classified model reply.
type Outcome struct {
	Kind OutcomeKind
	// Text is the assistant text, also present next to calls.
	Text string
	// Calls are the tool calls in model order, without handoff calls.
	Calls []core.FunctionCall
	// Handoff is the first transfer_to_agent call, if any.
	Handoff *core.FunctionCall
	// Skipped are calls of a handoff turn that are not executed, in model order.
	Skipped []core.FunctionCall
}

// Classify turns a model reply into an Outcome. A handoff call wins over
// every other call of the same reply.
func Classify(content core.Content) Outcome {
	out := Outcome{Text: content.Text()}

	for _, fc := range content.FunctionCalls() {
		if tool.IsHandoff(fc) && out.Handoff == nil {
			h := fc
			out.Handoff = &h
			continue
		}
		out.Calls = append(out.Calls, fc)
	}

	switch {
	case out.Handoff != nil:
		out.Kind = OutcomeHandoff
		out.Skipped = out.Calls
		out.Calls = nil
	case len(out.Calls) > 0:
		out.Kind = OutcomeToolCalls
	default:
		out.Kind = OutcomeFinalMessage
	}

	return out
}
