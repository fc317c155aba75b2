package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/agentrail/core"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction describes the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // JSON string of arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Tool choice policies understood by every adapter. Any other non-empty value
// names a specific function the model is forced to call.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceRequired = "required"
	ToolChoiceNone     = "none"
)

// Settings are the per-agent model-call settings.
type Settings struct {
	// Temperature overrides the provider default when non-nil.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	// ToolChoice is auto, required, none or a function name. Empty means provider default.
	ToolChoice string `json:"tool_choice,omitempty" yaml:"tool_choice,omitempty"`
	// ParallelToolCalls allows multiple tool calls per turn to run concurrently.
	// Only an explicit true enables concurrent dispatch.
	ParallelToolCalls *bool `json:"parallel_tool_calls,omitempty" yaml:"parallel_tool_calls,omitempty"`
	// MaxTokens caps the completion length when > 0.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Parallel reports whether concurrent tool dispatch was explicitly enabled.
func (s Settings) Parallel() bool { return s.ParallelToolCalls != nil && *s.ParallelToolCalls }

// Float returns a pointer to v, handy for Settings.Temperature.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v, handy for Settings.ParallelToolCalls.
func Bool(v bool) *bool { return &v }

// Request captures the normalized model input produced by the runtime for one turn.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Settings     Settings         `json:"settings"`
	Stream       bool             `json:"stream,omitempty"`
	// OutputSchema asks the provider for a JSON object matching the schema.
	// Used by guardrail sub-agents to obtain structured verdicts.
	OutputSchema map[string]any `json:"output_schema,omitempty"`
	// OutputName labels OutputSchema for providers that require a name.
	OutputName string `json:"output_name,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the runtime to drive generation.
//
// Generate must close both channels when done. Exactly one non-partial
// Response is expected on success; failures are reported on the error channel.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoFinalResponse is returned by Collect when a model closes its stream
// without producing a final response.
var ErrNoFinalResponse = errors.New("model produced no final response")

// Collect drives m.Generate to completion. Partial responses are passed to
// onPartial (may be nil). The final response is returned, or the first error.
func Collect(ctx context.Context, m Model, req Request, onPartial func(Response)) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	respCh, errCh := m.Generate(ctx, req)

	var (
		final Response
		found bool
	)
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				if onPartial != nil {
					onPartial(r)
				}
				continue
			}
			final, found = r, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}
	if !found {
		return Response{}, fmt.Errorf("%s: %w", m.Info().Name, ErrNoFinalResponse)
	}
	return final, nil
}
