// Package tool implements the function / tool calling subsystem that lets agents
// invoke structured capabilities with schema validated arguments, consistent
// error handling and per-call capability gating.
//
// A tool may carry a Predicate. The runtime evaluates it against the run's
// context cell at the start of every turn; tools whose predicate is false are
// not offered to the model and cannot be dispatched.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used with parallel tool calls
type Tool interface {
	// Name returns the unique identifier for this tool within one agent.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with structured arguments and ToolContext.
	// The run's context cell is reachable through toolCtx.Cell().
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Gated is implemented by tools that carry a capability predicate.
type Gated interface {
	Predicate() Predicate
}

// Mutator is implemented by tools that declare whether they write to the context cell.
type Mutator interface {
	Mutating() bool
}

// PredicateOf returns the tool's predicate, or nil when it is always visible.
func PredicateOf(t Tool) Predicate {
	if g, ok := t.(Gated); ok {
		return g.Predicate()
	}
	return nil
}

// IsMutating reports whether t declared itself as mutating the context cell.
func IsMutating(t Tool) bool {
	if m, ok := t.(Mutator); ok {
		return m.Mutating()
	}
	return false
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes used by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodePanic      = "PANIC"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes Details when it is an error.
func (e *ToolError) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
