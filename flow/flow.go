// Package flow holds the per-turn machinery of the agent executor.
//
// A turn is assembled by a pipeline of request processors (instruction,
// contents, visible tools, handoff tool, settings), the model reply is
// classified into an Outcome, tool calls are executed by a Dispatcher and
// handoff directives are resolved by a Router against a Chain.
package flow

import (
	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/tool"
)

// Turn is the input of one model call.
type Turn struct {
	Agent   *agent.Agent
	History []core.Content
	Stream  bool

	// ToolsUsed is set once the agent has had a tool call dispatched in this
	// run. A forcing tool choice is then relaxed to avoid tool loops.
	ToolsUsed bool

	// Visible is filled by the ToolsProcessor and is the only set of tools
	// the Dispatcher accepts for this turn.
	Visible []tool.Tool
}

// RequestProcessor processes the request before it is sent to the model.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request of the current turn.
	ProcessRequest(rc *core.RunContext, req *model.Request, turn *Turn) error
}

// DefaultProcessors returns the request pipeline used by BuildRequest.
func DefaultProcessors() []RequestProcessor {
	return []RequestProcessor{
		NewInstructionsProcessor(),
		NewContentsProcessor(),
		NewToolsProcessor(),
		NewTransferToolInjector(),
		NewSettingsProcessor(),
	}
}

// BuildRequest runs the default processors for turn. On return turn.Visible
// holds the tools offered in the request.
func BuildRequest(rc *core.RunContext, turn *Turn) (model.Request, error) {
	return BuildRequestWith(rc, turn, DefaultProcessors()...)
}

// BuildRequestWith is BuildRequest with an explicit processor pipeline.
func BuildRequestWith(rc *core.RunContext, turn *Turn, processors ...RequestProcessor) (model.Request, error) {
	req := model.Request{Stream: turn.Stream}
	for _, p := range processors {
		if err := p.ProcessRequest(rc, &req, turn); err != nil {
			return model.Request{}, err
		}
	}
	return req, nil
}
