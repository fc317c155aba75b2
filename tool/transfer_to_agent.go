package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrail/core"
)

// TransferToAgentName is the reserved function name a model calls to hand off.
const TransferToAgentName = "transfer_to_agent"

// HandoffTarget describes one agent reachable through transfer_to_agent.
type HandoffTarget struct {
	Name        string
	Description string
}

// transferToAgentTool requests transfer of control to a named agent. The
// runtime intercepts calls to it; Call only renders the acknowledgement that
// is recorded in the conversation history.
type transferToAgentTool struct {
	targets []HandoffTarget
}

// NewTransferToAgentTool constructs the transfer tool for the given targets.
func NewTransferToAgentTool(targets ...HandoffTarget) Tool {
	return &transferToAgentTool{targets: targets}
}

func (t *transferToAgentTool) Name() string { return TransferToAgentName }

func (t *transferToAgentTool) Description() string {
	var b strings.Builder
	b.WriteString("Transfer control to another agent by name. Use when another agent is better suited.")
	if len(t.targets) > 0 {
		b.WriteString(" Available agents:")
		for _, target := range t.targets {
			b.WriteString("\n- ")
			b.WriteString(target.Name)
			if target.Description != "" {
				b.WriteString(": ")
				b.WriteString(target.Description)
			}
		}
	}
	return b.String()
}

func (t *transferToAgentTool) Parameters() map[string]any {
	agent := map[string]any{"type": "string", "description": "Target agent name"}
	if len(t.targets) > 0 {
		names := make([]any, len(t.targets))
		for i, target := range t.targets {
			names[i] = target.Name
		}
		agent["enum"] = names
	}
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"agent": agent},
		"required":   []string{"agent"},
	}
}

func (t *transferToAgentTool) Call(_ *core.ToolContext, args map[string]any) (any, error) {
	name, err := agentArg(args)
	if err != nil {
		return nil, err
	}
	return TransferResult(name), nil
}

// TransferResult is the function response recorded for an accepted handoff.
func TransferResult(agent string) map[string]any {
	return map[string]any{"transferred": true, "agent": agent}
}

// IsHandoff reports whether fc is a handoff directive.
func IsHandoff(fc core.FunctionCall) bool { return fc.Name == TransferToAgentName }

// ParseHandoff extracts the target agent name from a transfer_to_agent call.
func ParseHandoff(fc core.FunctionCall) (string, error) {
	args, err := ParseArguments(fc.Arguments)
	if err != nil {
		return "", err
	}
	return agentArg(args)
}

func agentArg(args map[string]any) (string, error) {
	raw, ok := args["agent"]
	if !ok {
		return "", fmt.Errorf("missing required field 'agent'")
	}
	agentName, ok := raw.(string)
	if !ok || agentName == "" {
		return "", fmt.Errorf("field 'agent' must be non-empty string")
	}
	return agentName, nil
}

// ParseArguments decodes a serialized JSON argument payload. An empty payload
// yields an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}
	return args, nil
}
