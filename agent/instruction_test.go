package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentrail/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(*core.RunContext, core.AgentInfo) (string, error) { return m.text, m.err }

type member struct {
	Name string
	ID   int
}

func newTestRunContext(cell any) *core.RunContext {
	return core.NewRunContext(context.Background(), "run-id", cell, nil)
}

func TestInstruction_Static(t *testing.T) {
	inst := Fixed("static instruction")
	if !inst.IsStatic() {
		t.Fatalf("expected static instruction")
	}
	got, err := inst.Resolve(newTestRunContext(nil), core.AgentInfo{Name: "A"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "static instruction" {
		t.Fatalf("expected 'static instruction', got %q", got)
	}
}

func TestInstruction_Provider(t *testing.T) {
	inst := FromProvider(mockProvider{text: "dynamic"})
	if inst.IsStatic() {
		t.Fatalf("expected dynamic instruction")
	}
	got, err := inst.Resolve(newTestRunContext(nil), core.AgentInfo{})
	if err != nil || got != "dynamic" {
		t.Fatalf("expected 'dynamic', got %q (err=%v)", got, err)
	}
}

func TestInstruction_ProviderError(t *testing.T) {
	inst := FromProvider(mockProvider{err: errors.New("boom")})
	if _, err := inst.Resolve(newTestRunContext(nil), core.AgentInfo{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestInstruction_DerivedSeesCurrentCell(t *testing.T) {
	m := &member{Name: "Ali", ID: 1001}
	inst := DerivedFrom(func(m *member) string { return "Help member " + m.Name }, "Help the member")
	rc := newTestRunContext(m)

	got, _ := inst.Resolve(rc, core.AgentInfo{})
	if got != "Help member Ali" {
		t.Fatalf("unexpected instruction %q", got)
	}

	m.Name = "Sara"
	got, _ = inst.Resolve(rc, core.AgentInfo{})
	if got != "Help member Sara" {
		t.Fatalf("instruction not re-derived, got %q", got)
	}

	got, _ = inst.Resolve(newTestRunContext("other"), core.AgentInfo{})
	if got != "Help the member" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestInstruction_DerivedReceivesAgent(t *testing.T) {
	inst := Derived(func(_ *core.RunContext, a core.AgentInfo) (string, error) {
		return "You are " + a.Name, nil
	})
	got, _ := inst.Resolve(newTestRunContext(nil), core.AgentInfo{Name: "Librarian"})
	if got != "You are Librarian" {
		t.Fatalf("unexpected %q", got)
	}
}
