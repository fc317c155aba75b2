package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrail/core"
)

type account struct {
	Name string
	Pin  int
}

func newToolContext(cell any, fcID string) *core.ToolContext {
	rc := core.NewRunContext(context.Background(), "run-1", cell, nil)
	return core.NewToolContext(rc, core.AgentInfo{Name: "Bank"}, fcID)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(newToolContext(nil, "fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
	assert.False(t, sumTool.Mutating())
	assert.Nil(t, sumTool.Predicate())
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "number"}},
		"required":   []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(newToolContext(nil, "fc2"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	boom := errors.New("boom")
	execTool := NewFunctionTool("fail", "Fails", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, boom
	})

	_, err := execTool.Call(newToolContext(nil, "fc3"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.ErrorIs(t, err, boom)
}

func TestNewTypedTool(t *testing.T) {
	type args struct {
		Name string `json:"name"`
		Pin  int    `json:"pin"`
	}

	checkBalance, err := NewTypedTool("check_balance", "Check the balance",
		func(tc *core.ToolContext, a args) (any, error) {
			return a.Name + " has $100", nil
		},
		WithPredicate(When(func(acct *account, _ core.AgentInfo) bool { return acct.Pin == 1234 })),
	)
	require.NoError(t, err)

	assert.ElementsMatch(t, []any{"name", "pin"}, checkBalance.Parameters()["required"])

	out, err := checkBalance.Call(newToolContext(nil, "fc"), map[string]any{"name": "Alishba", "pin": float64(1234)})
	require.NoError(t, err)
	assert.Equal(t, "Alishba has $100", out)

	_, err = checkBalance.Call(newToolContext(nil, "fc"), map[string]any{"name": "Alishba"})
	assert.Error(t, err)
}

// -------------------- Predicate & Registry Tests --------------------

func TestPredicates(t *testing.T) {
	acct := &account{Name: "Alishba", Pin: 1234}
	rc := core.NewRunContext(context.Background(), "r", acct, nil)
	info := core.AgentInfo{Name: "Bank"}

	pinOK := When(func(a *account, _ core.AgentInfo) bool { return a.Pin == 1234 })
	nameOK := When(func(a *account, _ core.AgentInfo) bool { return a.Name == "Alishba" })
	never := PredicateFunc(func(*core.RunContext, core.AgentInfo) bool { return false })

	assert.True(t, pinOK.Enabled(rc, info))
	assert.True(t, All(pinOK, nameOK, nil).Enabled(rc, info))
	assert.False(t, All(pinOK, never).Enabled(rc, info))
	assert.True(t, Any(never, nameOK).Enabled(rc, info))
	assert.False(t, Any(never).Enabled(rc, info))
	assert.True(t, Not(never).Enabled(rc, info))

	wrongCell := core.NewRunContext(context.Background(), "r", "not an account", nil)
	assert.False(t, pinOK.Enabled(wrongCell, info))
}

func TestRegistry_VisibleReevaluatesEveryCall(t *testing.T) {
	acct := &account{Pin: 1234}
	rc := core.NewRunContext(context.Background(), "r", acct, nil)
	info := core.AgentInfo{Name: "Bank"}

	gated := NewFunctionTool("check_balance", "", nil, nil,
		WithPredicate(When(func(a *account, _ core.AgentInfo) bool { return a.Pin == 1234 })))
	open := NewFunctionTool("greet", "", nil, nil)

	reg, err := NewRegistry(gated, open)
	require.NoError(t, err)
	assert.Equal(t, []string{"check_balance", "greet"}, names(reg.Visible(rc, info)))

	acct.Pin = 9999
	assert.Equal(t, []string{"greet"}, names(reg.Visible(rc, info)))

	_, ok := reg.Lookup("check_balance")
	assert.True(t, ok)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	a := NewFunctionTool("dup", "", nil, nil)
	b := NewFunctionTool("dup", "", nil, nil)

	_, err := NewRegistry(a, b)
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestDefinitions(t *testing.T) {
	defs := Definitions([]Tool{NewFunctionTool("greet", "Say hi", nil, nil)})
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "greet", defs[0].Function.Name)
	assert.Equal(t, "Say hi", defs[0].Function.Description)
}

// -------------------- Handoff Tool Tests --------------------

func TestTransferToAgentTool(t *testing.T) {
	tr := NewTransferToAgentTool(HandoffTarget{Name: "Billing", Description: "Billing questions"}, HandoffTarget{Name: "Technical"})
	assert.Equal(t, TransferToAgentName, tr.Name())
	assert.Contains(t, tr.Description(), "Billing: Billing questions")

	props := tr.Parameters()["properties"].(map[string]any)
	assert.Equal(t, []any{"Billing", "Technical"}, props["agent"].(map[string]any)["enum"])

	out, err := tr.Call(newToolContext(nil, "fc"), map[string]any{"agent": "Billing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"transferred": true, "agent": "Billing"}, out)
}

func TestParseHandoff(t *testing.T) {
	fc := core.FunctionCall{Name: TransferToAgentName, Arguments: `{"agent":"Billing"}`}
	assert.True(t, IsHandoff(fc))

	name, err := ParseHandoff(fc)
	require.NoError(t, err)
	assert.Equal(t, "Billing", name)

	_, err = ParseHandoff(core.FunctionCall{Name: TransferToAgentName, Arguments: `{}`})
	assert.Error(t, err)

	_, err = ParseHandoff(core.FunctionCall{Name: TransferToAgentName, Arguments: `{`})
	assert.Error(t, err)
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "", FormatResult(nil))
	assert.Equal(t, "ok", FormatResult("ok"))
	assert.Equal(t, `{"a":1}`, FormatResult(map[string]int{"a": 1}))
	assert.Equal(t, "42", FormatResult(42))
	assert.Equal(t, "boom", FormatResult(errors.New("boom")))
}

func names(tools []Tool) []string {
	out := make([]string, len(tools))
	for i, t := range tools {
		out[i] = t.Name()
	}
	return out
}
