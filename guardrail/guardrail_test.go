package guardrail

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/model"
)

type topicVerdict struct {
	IsBankRelated bool   `json:"is_bank_related"`
	Reasoning     string `json:"reasoning"`
}

func newRunContext(ctx context.Context) *core.RunContext {
	return core.NewRunContext(ctx, "run-1", nil, nil)
}

var bankAgent = core.AgentInfo{Name: "Bank Agent"}

func TestGuardrail_ExplicitPolarity(t *testing.T) {
	eval := func(_ *core.RunContext, _ core.AgentInfo, text string) (topicVerdict, error) {
		return topicVerdict{IsBankRelated: text == "check my balance"}, nil
	}
	notRelated := NewInputFunc("bank_topic", eval, func(v topicVerdict) bool { return !v.IsBankRelated })
	related := NewInputFunc("bank_topic_inverse", eval, func(v topicVerdict) bool { return v.IsBankRelated })

	rc := newRunContext(context.Background())

	res, err := notRelated.Evaluate(rc, bankAgent, "what's the weather")
	require.NoError(t, err)
	assert.True(t, res.TripwireTriggered)
	assert.Equal(t, topicVerdict{}, res.OutputInfo)
	assert.Equal(t, core.DirectionInput, res.Direction)
	assert.Equal(t, "Bank Agent", res.Agent)

	res, err = related.Evaluate(rc, bankAgent, "what's the weather")
	require.NoError(t, err)
	assert.False(t, res.TripwireTriggered)
}

func TestGuardrail_EvaluationFailureIsDistinct(t *testing.T) {
	boom := errors.New("collaborator down")
	g := NewOutput("apology", EvaluatorFunc(func(*core.RunContext, core.AgentInfo, string) (any, error) {
		return nil, boom
	}), func(any) bool { return true })

	_, err := g.Evaluate(newRunContext(context.Background()), bankAgent, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrGuardrailEvaluationFailed)
	assert.ErrorIs(t, err, boom)

	var re *core.RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, core.DirectionOutput, re.Direction)
	assert.Equal(t, "apology", re.Guardrail)
}

func TestGuardrail_PanicBecomesEvaluationFailure(t *testing.T) {
	g := NewInput("panicky", EvaluatorFunc(func(*core.RunContext, core.AgentInfo, string) (any, error) {
		panic("bad")
	}), func(any) bool { return false })

	_, err := g.Evaluate(newRunContext(context.Background()), bankAgent, "x")
	assert.Equal(t, core.KindGuardrailEvaluationFailed, core.KindOf(err))
}

func TestGuardrail_Validate(t *testing.T) {
	g := NewInput("no_tripwire", EvaluatorFunc(func(*core.RunContext, core.AgentInfo, string) (any, error) {
		return nil, nil
	}), nil)
	assert.ErrorIs(t, g.Validate(), ErrNoTripwire)
}

func TestEvaluateAll_ReportsAllTrippedInOrder(t *testing.T) {
	trip := func(name string, tripped bool) *Guardrail {
		return NewInputFunc(name, func(*core.RunContext, core.AgentInfo, string) (bool, error) {
			return tripped, nil
		}, func(v bool) bool { return v })
	}

	results, err := EvaluateAll(newRunContext(context.Background()),
		[]*Guardrail{trip("a", true), trip("b", false), trip("c", true)}, bankAgent, "input", 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].Guardrail, results[1].Guardrail, results[2].Guardrail})

	tripped := Tripped(results)
	require.Len(t, tripped, 2)
	assert.Equal(t, "a", tripped[0].Guardrail)
	assert.Equal(t, "c", tripped[1].Guardrail)
}

func TestEvaluateAll_BoundedFanOut(t *testing.T) {
	var inFlight, peak int32
	slow := func(name string) *Guardrail {
		return NewInputFunc(name, func(*core.RunContext, core.AgentInfo, string) (bool, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return false, nil
		}, func(v bool) bool { return v })
	}

	guardrails := []*Guardrail{slow("1"), slow("2"), slow("3"), slow("4"), slow("5")}
	_, err := EvaluateAll(newRunContext(context.Background()), guardrails, bankAgent, "x", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestEvaluateAll_CancelledAbandons(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	block := make(chan struct{})
	defer close(block)

	g := NewInputFunc("blocking", func(*core.RunContext, core.AgentInfo, string) (bool, error) {
		<-block
		return false, nil
	}, func(v bool) bool { return v })

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := EvaluateAll(newRunContext(ctx), []*Guardrail{g}, bankAgent, "x", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAgentEvaluator(t *testing.T) {
	m := model.NewMockModel("guard", "mock").
		EnqueueText("```json\n{\"is_bank_related\": false, \"reasoning\": \"weather\"}\n```")

	ev, err := NewAgentEvaluator[topicVerdict]("Guardrail check", m, "Decide if the input is about banking.")
	require.NoError(t, err)

	g := FromAgent("bank_topic", core.DirectionInput, ev, func(v topicVerdict) bool { return !v.IsBankRelated })
	res, err := g.Evaluate(newRunContext(context.Background()), bankAgent, "what's the weather")
	require.NoError(t, err)
	assert.True(t, res.TripwireTriggered)
	assert.Equal(t, topicVerdict{IsBankRelated: false, Reasoning: "weather"}, res.OutputInfo)

	req, ok := m.LastRequest()
	require.True(t, ok)
	assert.Empty(t, req.Tools)
	assert.Equal(t, "guardrail_check", req.OutputName)
	assert.NotNil(t, req.OutputSchema)
}

func TestAgentEvaluator_UndecodableVerdictFails(t *testing.T) {
	m := model.NewMockModel("guard", "mock").EnqueueText("I cannot answer")
	ev, err := NewAgentEvaluator[topicVerdict]("check", m, "")
	require.NoError(t, err)

	g := FromAgent("bank_topic", core.DirectionInput, ev, func(v topicVerdict) bool { return !v.IsBankRelated })
	_, err = g.Evaluate(newRunContext(context.Background()), bankAgent, "x")
	assert.ErrorIs(t, err, core.ErrGuardrailEvaluationFailed)
}
