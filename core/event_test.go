package core

import (
	"errors"
	"testing"
)

func TestEvent_Constructors(t *testing.T) {
	e := NewAgentActivatedEvent("Triage")
	if e.Type != EventAgentActivated || e.Agent != "Triage" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewAgentActivatedEvent did not initialize fields correctly: %+v", e)
	}

	fc := FunctionCall{ID: "c1", Name: "check_balance", Arguments: `{"account":"1"}`}
	inv := NewToolInvokedEvent("Bank", fc)
	if inv.ToolName != "check_balance" || inv.CallID != "c1" || inv.Arguments != fc.Arguments {
		t.Fatalf("NewToolInvokedEvent malformed: %+v", inv)
	}

	res := NewToolResultEvent("Bank", fc, "", nil, errors.New("boom"))
	if res.Type != EventToolResult || res.Error != "boom" {
		t.Fatalf("NewToolResultEvent malformed: %+v", res)
	}

	msg := NewMessageEvent("Bank", "hello")
	if msg.Text != "hello" || msg.IsTerminal() {
		t.Fatalf("NewMessageEvent malformed: %+v", msg)
	}

	halted := NewHaltedEvent("Bank", []GuardrailResult{{Guardrail: "topic", TripwireTriggered: true}})
	if !halted.IsTerminal() || len(halted.Verdicts) != 1 {
		t.Fatalf("NewHaltedEvent malformed: %+v", halted)
	}

	failed := NewFailedEvent("Bank", &RunError{Kind: KindHandoffCycle, Handoff: "A", Chain: []string{"A", "B"}})
	if !failed.IsTerminal() || failed.ErrorKind() != KindHandoffCycle || failed.Error == "" {
		t.Fatalf("NewFailedEvent malformed: %+v", failed)
	}
}

func TestContent_Helpers(t *testing.T) {
	c := Content{Role: RoleAssistant, Parts: []Part{
		TextPart{Text: "let me "},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "1", Name: "a"}},
		TextPart{Text: "check"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "2", Name: "b"}},
	}}
	if c.Text() != "let me check" {
		t.Fatalf("unexpected text %q", c.Text())
	}
	calls := c.FunctionCalls()
	if len(calls) != 2 || calls[0].Name != "a" || calls[1].Name != "b" {
		t.Fatalf("unexpected calls %+v", calls)
	}

	resp := NewFunctionResponseContent("1", "a", nil, errors.New("denied"))
	frs := resp.FunctionResponses()
	if resp.Role != RoleTool || len(frs) != 1 || frs[0].Error != "denied" {
		t.Fatalf("unexpected function response content %+v", resp)
	}
}

func TestHistory_AppendIsolated(t *testing.T) {
	h := NewHistory(NewTextContent(RoleUser, "hi"))
	snapshot := h.Contents()
	h.Append(NewTextContent(RoleAssistant, "hello"))
	if len(snapshot) != 1 || h.Len() != 2 {
		t.Fatalf("history copy leaked: snapshot=%d len=%d", len(snapshot), h.Len())
	}
}
