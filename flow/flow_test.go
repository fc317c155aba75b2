package flow

import (
	"errors"
	"testing"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/tool"
)

type pinCell struct {
	Pin int
}

func pinTool() tool.Tool {
	return tool.NewFunctionTool("check_balance", "Check the balance", nil,
		func(*core.ToolContext, map[string]any) (any, error) { return "$100", nil },
		tool.WithPredicate(tool.When(func(c *pinCell, _ core.AgentInfo) bool { return c.Pin == 1234 })),
	)
}

func toolNames(defs []model.ToolDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, td := range defs {
		names = append(names, td.Function.Name)
	}
	return names
}

func TestBuildRequest_VisibilityFollowsCell(t *testing.T) {
	a := agent.MustNew("Bank", func(o *agent.Options) {
		o.Tools = []tool.Tool{pinTool()}
		o.Settings.ToolChoice = "check_balance"
	})

	cell := &pinCell{Pin: 1234}
	rc := core.NewRunContext(t.Context(), "run", cell, nil)

	turn := &Turn{Agent: a, History: []core.Content{core.NewTextContent(core.RoleUser, "balance?")}}
	req, err := BuildRequest(rc, turn)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := toolNames(req.Tools); len(got) != 1 || got[0] != "check_balance" {
		t.Fatalf("expected check_balance offered, got %v", got)
	}
	if req.Settings.ToolChoice != "check_balance" {
		t.Fatalf("expected named tool choice kept, got %q", req.Settings.ToolChoice)
	}

	cell.Pin = 9999
	turn = &Turn{Agent: a, History: turn.History}
	req, err = BuildRequest(rc, turn)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(req.Tools) != 0 || len(turn.Visible) != 0 {
		t.Fatalf("expected no tools offered, got %v", toolNames(req.Tools))
	}
	if req.Settings.ToolChoice != "" {
		t.Fatalf("expected tool choice cleared, got %q", req.Settings.ToolChoice)
	}
}

func TestBuildRequest_DerivedInstructionFailure(t *testing.T) {
	a := agent.MustNew("A", func(o *agent.Options) {
		o.Instruction = agent.Derived(func(*core.RunContext, core.AgentInfo) (string, error) {
			return "", errors.New("boom")
		})
	})

	_, err := BuildRequest(core.NewRunContext(t.Context(), "run", nil, nil), &Turn{Agent: a})
	if core.KindOf(err) != core.KindCollaboratorError {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}

func TestTransferToolInjector(t *testing.T) {
	billing := agent.MustNew("Billing", func(o *agent.Options) { o.Description = "Handles invoices" })
	triage := agent.MustNew("Triage", func(o *agent.Options) {
		o.Handoffs = []agent.Handoff{agent.HandoffTo(billing)}
		o.Settings.ParallelToolCalls = model.Bool(true)
	})

	rc := core.NewRunContext(t.Context(), "run", nil, nil)
	turn := &Turn{Agent: triage}
	req, err := BuildRequest(rc, turn)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if got := toolNames(req.Tools); len(got) != 1 || got[0] != tool.TransferToAgentName {
		t.Fatalf("expected transfer tool injected, got %v", got)
	}
	if !req.Settings.Parallel() {
		t.Fatalf("expected parallel flag kept when tools are offered")
	}

	// second pass over the same request must not duplicate
	if err := NewTransferToolInjector().ProcessRequest(rc, &req, turn); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if len(req.Tools) != 1 {
		t.Fatalf("expected 1 tool definition, got %d", len(req.Tools))
	}
}

func TestSettingsProcessor_RelaxesForcedChoiceAfterToolUse(t *testing.T) {
	a := agent.MustNew("A", func(o *agent.Options) {
		o.Tools = []tool.Tool{pinTool()}
		o.Settings.ToolChoice = model.ToolChoiceRequired
	})
	rc := core.NewRunContext(t.Context(), "run", &pinCell{Pin: 1234}, nil)

	req, err := BuildRequest(rc, &Turn{Agent: a, ToolsUsed: true})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if req.Settings.ToolChoice != "" {
		t.Fatalf("expected forced tool choice relaxed, got %q", req.Settings.ToolChoice)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		content core.Content
		kind    OutcomeKind
		calls   int
		skipped int
	}{
		{"text", core.NewTextContent(core.RoleAssistant, "done"), OutcomeFinalMessage, 0, 0},
		{"calls", core.Content{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "1", Name: "a"}},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "2", Name: "b"}},
		}}, OutcomeToolCalls, 2, 0},
		{"handoff wins", core.Content{Role: core.RoleAssistant, Parts: []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "1", Name: "a"}},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "2", Name: tool.TransferToAgentName, Arguments: `{"agent":"B"}`}},
		}}, OutcomeHandoff, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.content)
			if out.Kind != tt.kind {
				t.Fatalf("kind = %s, want %s", out.Kind, tt.kind)
			}
			if len(out.Calls) != tt.calls || len(out.Skipped) != tt.skipped {
				t.Fatalf("calls=%d skipped=%d", len(out.Calls), len(out.Skipped))
			}
			if tt.kind == OutcomeHandoff && out.Handoff.ID != "2" {
				t.Fatalf("unexpected handoff call %+v", out.Handoff)
			}
		})
	}
}

func TestRouter_Resolve(t *testing.T) {
	var a *agent.Agent
	b := agent.MustNew("B", func(o *agent.Options) {
		o.Handoffs = []agent.Handoff{agent.HandoffLazy("A", "back to A", func() *agent.Agent { return a })}
	})
	a = agent.MustNew("A", func(o *agent.Options) { o.Handoffs = []agent.Handoff{agent.HandoffTo(b)} })

	router := NewRouter()
	chain := NewChain(a)

	next, err := router.Resolve(a, "B", chain)
	if err != nil || next != b {
		t.Fatalf("expected B, got %v (%v)", next, err)
	}
	if chain.Current() != b || chain.Len() != 2 {
		t.Fatalf("expected chain to advance, got %v", chain.Names())
	}

	_, err = router.Resolve(b, "A", chain)
	if !errors.Is(err, core.ErrHandoffCycle) {
		t.Fatalf("expected handoff cycle, got %v", err)
	}
	var re *core.RunError
	if !errors.As(err, &re) || len(re.Chain) != 2 || re.Handoff != "A" {
		t.Fatalf("unexpected cycle error %+v", re)
	}
	if chain.Len() != 2 {
		t.Fatalf("chain must not change on error")
	}

	_, err = router.Resolve(b, "Nobody", chain)
	if !errors.Is(err, core.ErrHandoffTargetUnknown) {
		t.Fatalf("expected unknown target, got %v", err)
	}
}

func TestChain_ComparesDescriptorIdentity(t *testing.T) {
	first := agent.MustNew("Support")
	second := agent.MustNew("Support")
	from := agent.MustNew("Triage", func(o *agent.Options) {
		o.Handoffs = []agent.Handoff{agent.HandoffLazy("Support", "escalate", func() *agent.Agent { return second })}
	})

	chain := NewChain(first)
	chain.Push(from)
	if !chain.Contains(first) || chain.Contains(second) {
		t.Fatalf("chain must match descriptors, not names")
	}

	next, err := NewRouter().Resolve(from, "Support", chain)
	if err != nil || next != second {
		t.Fatalf("expected the second Support descriptor, got %v (%v)", next, err)
	}
	if got := chain.Names(); len(got) != 3 || got[2] != "Support" {
		t.Fatalf("unexpected chain %v", got)
	}
}
