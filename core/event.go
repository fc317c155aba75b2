package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the closed set of stream event variants.
type EventType string

const (
	EventAgentActivated EventType = "agent_activated"
	EventToolInvoked    EventType = "tool_invoked"
	EventToolResult     EventType = "tool_result"
	EventMessage        EventType = "message"
	EventHalted         EventType = "halted"
	EventFailed         EventType = "failed"
)

// Event is one entry of a run's ordered, append-only event stream. After
// emission it should be treated as immutable. Only the fields that belong to
// Type are populated:
//
//	AgentActivated: Agent
//	ToolInvoked:    Agent, ToolName, CallID, Arguments
//	ToolResult:     Agent, ToolName, CallID, Result, Output, Error
//	Message:        Agent, Text
//	Halted:         Agent, Verdicts
//	Failed:         Agent, Err
type Event struct {
	ID        string            `json:"id"`
	RunID     string            `json:"run_id"`
	Seq       int               `json:"seq"`
	Type      EventType         `json:"type"`
	Agent     string            `json:"agent"`
	Timestamp time.Time         `json:"timestamp"`
	ToolName  string            `json:"tool_name,omitempty"`
	CallID    string            `json:"call_id,omitempty"`
	Arguments string            `json:"arguments,omitempty"`
	Result    string            `json:"result,omitempty"`
	Output    any               `json:"-"`
	Error     string            `json:"error,omitempty"`
	Text      string            `json:"text,omitempty"`
	Verdicts  []GuardrailResult `json:"verdicts,omitempty"`
	Err       *RunError         `json:"-"`
}

// NewEvent creates a bare event of type t authored by agent.
// Prefer the typed constructors below.
func NewEvent(t EventType, agent string) Event {
	return Event{
		ID:        NewID(),
		Type:      t,
		Agent:     agent,
		Timestamp: time.Now().UTC(),
	}
}

// NewAgentActivatedEvent marks a change of the active agent.
func NewAgentActivatedEvent(agent string) Event { return NewEvent(EventAgentActivated, agent) }

// NewToolInvokedEvent records that a tool call is about to run.
func NewToolInvokedEvent(agent string, fc FunctionCall) Event {
	e := NewEvent(EventToolInvoked, agent)
	e.ToolName = fc.Name
	e.CallID = fc.ID
	e.Arguments = fc.Arguments
	return e
}

// NewToolResultEvent records the rendered outcome of a tool call. When err is
// non-nil its message is copied into Error.
func NewToolResultEvent(agent string, fc FunctionCall, result string, output any, err error) Event {
	e := NewEvent(EventToolResult, agent)
	e.ToolName = fc.Name
	e.CallID = fc.ID
	e.Result = result
	e.Output = output
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// NewMessageEvent carries a message produced by agent.
func NewMessageEvent(agent, text string) Event {
	e := NewEvent(EventMessage, agent)
	e.Text = text
	return e
}

// NewHaltedEvent carries the tripped guardrail verdicts.
func NewHaltedEvent(agent string, verdicts []GuardrailResult) Event {
	e := NewEvent(EventHalted, agent)
	e.Verdicts = verdicts
	return e
}

// NewFailedEvent carries the run failure.
func NewFailedEvent(agent string, err *RunError) Event {
	e := NewEvent(EventFailed, agent)
	e.Err = err
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// ErrorKind returns the failure kind of a Failed event.
func (e Event) ErrorKind() ErrorKind {
	if e.Err == nil {
		return ""
	}
	return e.Err.Kind
}

// IsTerminal reports whether the event closes the stream on its own.
func (e Event) IsTerminal() bool { return e.Type == EventHalted || e.Type == EventFailed }

// NewID generates a new unique identifier for events and runs.
func NewID() string { return uuid.NewString() }
