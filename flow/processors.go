package flow

import (
	"fmt"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/tool"
)

// InstructionsProcessor resolves the agent instruction for the turn.
// Derived instructions are evaluated against the current cell every time.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest sets req.Instructions. A failing derived instruction is
// reported as a collaborator error.
func (p *InstructionsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request, turn *Turn) error {
	instructions, err := turn.Agent.ResolveInstruction(rc)
	if err != nil {
		return &core.RunError{
			Kind:  core.KindCollaboratorError,
			State: core.StateTurn,
			Err:   fmt.Errorf("failed to resolve instruction for %s: %w", turn.Agent.Name(), err),
		}
	}

	rc.LogDebug("agent.instruction.resolved", "agent", turn.Agent.Name(), "length", len(instructions))

	req.Instructions = instructions

	return nil
}

// ContentsProcessor copies the conversation history into the request.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest sets req.Contents.
func (p *ContentsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, turn *Turn) error {
	contents := make([]core.Content, 0, len(turn.History))
	for _, c := range turn.History {
		if len(c.Parts) > 0 {
			contents = append(contents, c)
		}
	}

	req.Contents = contents

	return nil
}

// ToolsProcessor evaluates capability predicates and offers only the visible
// tools. It runs on every turn so cell mutations take effect immediately.
type ToolsProcessor struct{}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor() *ToolsProcessor { return &ToolsProcessor{} }

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest fills turn.Visible and req.Tools.
func (p *ToolsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request, turn *Turn) error {
	turn.Visible = turn.Agent.Tools().Visible(rc, turn.Agent.Info())
	req.Tools = append(req.Tools, tool.Definitions(turn.Visible)...)

	rc.LogDebug(
		"agent.tools.visible",
		"agent", turn.Agent.Name(),
		"visible", len(turn.Visible),
		"registered", turn.Agent.Tools().Len(),
	)

	return nil
}

// TransferToolInjector adds the transfer_to_agent definition when the agent
// has handoffs.
type TransferToolInjector struct{}

// NewTransferToolInjector creates a new injector.
func NewTransferToolInjector() *TransferToolInjector { return &TransferToolInjector{} }

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_tool_injector" }

// ProcessRequest appends the handoff tool definition once.
func (p *TransferToolInjector) ProcessRequest(_ *core.RunContext, req *model.Request, turn *Turn) error {
	handoffs := turn.Agent.Handoffs()
	if len(handoffs) == 0 {
		return nil
	}

	for _, td := range req.Tools {
		if td.Function.Name == tool.TransferToAgentName {
			return nil
		}
	}

	targets := make([]tool.HandoffTarget, 0, len(handoffs))
	for _, h := range handoffs {
		targets = append(targets, tool.HandoffTarget{Name: h.Name(), Description: h.Description()})
	}

	req.Tools = append(req.Tools, tool.Definition(tool.NewTransferToAgentTool(targets...)))

	return nil
}

// SettingsProcessor copies the agent's model-call settings. Tool choice and
// the parallel flag are dropped when no tool is offered, and a tool choice
// naming a tool that is not offered falls back to the provider default. After
// the first dispatched tool call, required or named choices are reset.
type SettingsProcessor struct{}

// NewSettingsProcessor creates a new settings processor.
func NewSettingsProcessor() *SettingsProcessor { return &SettingsProcessor{} }

// Name returns the processor's identifier.
func (p *SettingsProcessor) Name() string { return "settings" }

// ProcessRequest sets req.Settings.
func (p *SettingsProcessor) ProcessRequest(_ *core.RunContext, req *model.Request, turn *Turn) error {
	settings := turn.Agent.Settings()
	if len(req.Tools) == 0 {
		settings.ToolChoice = ""
		settings.ParallelToolCalls = nil
	}

	if !isPolicyChoice(settings.ToolChoice) && !offered(req.Tools, settings.ToolChoice) {
		settings.ToolChoice = ""
	}

	if turn.ToolsUsed && settings.ToolChoice != model.ToolChoiceNone {
		settings.ToolChoice = ""
	}

	req.Settings = settings

	return nil
}

func isPolicyChoice(choice string) bool {
	switch choice {
	case "", model.ToolChoiceAuto, model.ToolChoiceRequired, model.ToolChoiceNone:
		return true
	}
	return false
}

func offered(defs []model.ToolDefinition, name string) bool {
	for _, td := range defs {
		if td.Function.Name == name {
			return true
		}
	}
	return false
}
