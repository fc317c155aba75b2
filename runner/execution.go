package runner

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/flow"
	"github.com/hupe1980/agentrail/guardrail"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/observability"
	"github.com/hupe1980/agentrail/tool"
)

// execution is the state of one run. It is owned by a single goroutine.
type execution struct {
	runner     *Runner
	opts       RunOptions
	stream     bool
	sink       func(core.Event)
	tracer     *observability.Tracer
	metrics    *observability.Metrics
	dispatcher *flow.Dispatcher

	rc      *core.RunContext
	span    trace.Span
	history *core.History
	chain   *flow.Chain
	current *agent.Agent
	limiter *core.TurnLimiter
	used    map[string]bool // agents that had a tool call dispatched

	outcome flow.Outcome
	visible []tool.Tool
	final   string
	seq     int

	result *Result
}

func (x *execution) run(start *agent.Agent, input string) *Result {
	begin := time.Now()
	x.current = start

	x.rc.LogInfo("run.start", "agent", start.Name(), "stream", x.stream)

	state := core.StateInit
	for !state.IsTerminal() {
		if err := x.rc.Err(); err != nil {
			state = x.fail(core.ContextError(state, err))
			break
		}

		var next core.State
		switch state {
		case core.StateInit:
			next = x.init(start, input)
		case core.StateInputGuardrailCheck:
			next = x.inputGuardrails(input)
		case core.StateTurn:
			next = x.turn()
		case core.StateToolDispatch:
			next = x.dispatch()
		case core.StateHandoff:
			next = x.handoff()
		case core.StateFinalMessage:
			next = core.StateOutputGuardrailCheck
		case core.StateOutputGuardrailCheck:
			next = x.outputGuardrails()
		default:
			next = x.fail(&core.RunError{Kind: core.KindCollaboratorError, State: state, Err: fmt.Errorf("unknown state %q", state)})
		}

		x.rc.LogDebug("run.state", "from", state, "to", next, "agent", x.agentName())
		state = next
	}

	x.result.LastAgent = x.agentName()
	x.result.History = x.history.Contents()
	x.result.Turns = x.limiter.Count()
	if x.chain != nil {
		x.result.Chain = x.chain.Names()
	}

	d := time.Since(begin)
	x.metrics.RecordRun(x.rc.Context, x.result.LastAgent, string(x.result.Status), d)
	x.rc.LogInfo(
		"run.complete",
		"agent", x.result.LastAgent,
		"status", x.result.Status,
		"turns", x.result.Turns,
		"duration_ms", d.Milliseconds(),
	)

	return x.result
}

func (x *execution) init(start *agent.Agent, input string) core.State {
	x.chain = flow.NewChain(start)
	x.history.Append(core.NewTextContent(core.RoleUser, input))

	x.emit(core.NewAgentActivatedEvent(start.Name()))

	return core.StateInputGuardrailCheck
}

func (x *execution) inputGuardrails(input string) core.State {
	// Entered once, while the starting agent is active. Handoff targets
	// never re-run input guardrails.
	guardrails := x.current.InputGuardrails()
	if len(guardrails) == 0 {
		return core.StateTurn
	}

	results, err := x.evaluate(guardrails, core.DirectionInput, input)
	if err != nil {
		return x.fail(x.guardrailError(core.StateInputGuardrailCheck, err))
	}

	if tripped := guardrail.Tripped(results); len(tripped) > 0 {
		return x.halt(tripped)
	}

	return core.StateTurn
}

func (x *execution) outputGuardrails() core.State {
	guardrails := x.current.OutputGuardrails()

	if len(guardrails) > 0 {
		results, err := x.evaluate(guardrails, core.DirectionOutput, x.final)
		if err != nil {
			return x.fail(x.guardrailError(core.StateOutputGuardrailCheck, err))
		}

		if tripped := guardrail.Tripped(results); len(tripped) > 0 {
			return x.halt(tripped)
		}
	}

	x.emit(core.NewMessageEvent(x.current.Name(), x.final))
	x.result.Status = StatusDone
	x.result.FinalOutput = x.final

	return core.StateDone
}

func (x *execution) evaluate(guardrails []*guardrail.Guardrail, dir core.Direction, text string) ([]core.GuardrailResult, error) {
	ctx, span := x.tracer.StartGuardrails(x.rc.Context, x.current.Name(), dir, len(guardrails))
	defer span.End()

	results, err := guardrail.EvaluateAll(x.rc.WithContext(ctx), guardrails, x.current.Info(), text, x.opts.MaxGuardrailFanOut)
	if err != nil {
		x.tracer.RecordError(span, err)
		return nil, err
	}

	x.tracer.AddVerdicts(span, results)
	x.metrics.RecordGuardrails(x.rc.Context, results)
	x.result.Verdicts = append(x.result.Verdicts, results...)

	return results, nil
}

// guardrailError maps a guardrail batch error. Cancellation wins over the
// evaluator error it caused.
func (x *execution) guardrailError(state core.State, err error) *core.RunError {
	if ctxErr := x.rc.Err(); ctxErr != nil {
		return core.ContextError(state, ctxErr)
	}

	return asRunError(state, core.KindGuardrailEvaluationFailed, err)
}

func (x *execution) turn() core.State {
	if err := x.limiter.Increment(); err != nil {
		return x.fail(&core.RunError{Kind: core.KindMaxTurnsExceeded, State: core.StateTurn, Err: err})
	}
	turn := x.limiter.Count()

	a := x.current
	t := &flow.Turn{
		Agent:     a,
		History:   x.history.Contents(),
		Stream:    x.stream,
		ToolsUsed: x.used[a.Name()],
	}

	req, err := flow.BuildRequest(x.rc, t)
	if err != nil {
		return x.fail(asRunError(core.StateTurn, core.KindCollaboratorError, err))
	}
	x.visible = t.Visible

	m := x.model(a)
	if m == nil {
		return x.fail(&core.RunError{
			Kind:  core.KindCollaboratorError,
			State: core.StateTurn,
			Err:   fmt.Errorf("no model configured for agent %s", a.Name()),
		})
	}

	modelName := m.Info().Name
	ctx, span := x.tracer.StartTurn(x.rc.Context, a.Name(), modelName, turn, len(t.Visible))
	defer span.End()

	start := time.Now()
	resp, err := model.Collect(ctx, m, req, nil)
	d := time.Since(start)

	var in, out int
	if resp.Usage != nil {
		in, out = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
		x.result.Usage.PromptTokens += in
		x.result.Usage.CompletionTokens += out
		x.result.Usage.TotalTokens += resp.Usage.TotalTokens
	}
	x.metrics.RecordModelCall(x.rc.Context, a.Name(), modelName, d, in, out, err)

	if err != nil {
		x.tracer.RecordError(span, err)
		if ctxErr := x.rc.Err(); ctxErr != nil {
			return x.fail(core.ContextError(core.StateTurn, ctxErr))
		}
		return x.fail(&core.RunError{
			Kind:  core.KindCollaboratorError,
			State: core.StateTurn,
			Err:   fmt.Errorf("model %s: %w", modelName, err),
		})
	}

	content := resp.Content
	if content.Role == "" {
		content.Role = core.RoleAssistant
	}

	x.outcome = flow.Classify(content)
	x.tracer.AddResponse(span, resp, x.outcome.Kind.String())

	x.rc.LogDebug(
		"agent.turn.complete",
		"agent", a.Name(),
		"turn", turn,
		"outcome", x.outcome.Kind.String(),
		"calls", len(x.outcome.Calls),
		"duration_ms", d.Milliseconds(),
	)

	if len(content.Parts) > 0 {
		x.history.Append(content)
	}

	switch x.outcome.Kind {
	case flow.OutcomeHandoff:
		x.emitText()
		return core.StateHandoff
	case flow.OutcomeToolCalls:
		x.emitText()
		return core.StateToolDispatch
	default:
		x.final = x.outcome.Text
		return core.StateFinalMessage
	}
}

// emitText publishes assistant text that accompanies calls.
func (x *execution) emitText() {
	if x.outcome.Text != "" {
		x.emit(core.NewMessageEvent(x.current.Name(), x.outcome.Text))
	}
}

// model picks the run override, then the agent's model, then the runner default.
func (x *execution) model(a *agent.Agent) model.Model {
	if x.opts.Model != nil {
		return x.opts.Model
	}
	if m := a.Model(); m != nil {
		return m
	}
	return x.runner.opts.Model
}

func (x *execution) dispatch() core.State {
	a := x.current

	results, err := x.dispatcher.Dispatch(x.rc, a, x.visible, x.outcome.Calls, x.emit)
	for _, r := range results {
		x.history.Append(r.Content())
	}
	if len(results) > 0 {
		x.used[a.Name()] = true
	}
	if err != nil {
		return x.fail(asRunError(core.StateToolDispatch, core.KindToolExecutionFailed, err))
	}

	if final, ok := x.terminalToolOutput(a, results); ok {
		x.final = final
		return core.StateFinalMessage
	}

	return core.StateTurn
}

// terminalToolOutput applies the continuation policy: StopAtTools picks the
// first listed tool in call order, StopOnFirstTool the first call.
func (x *execution) terminalToolOutput(a *agent.Agent, results []flow.CallResult) (string, bool) {
	for _, r := range results {
		if a.StopsAt(r.Call.Name) {
			return resultText(r), true
		}
	}
	if a.ToolUseBehavior() == agent.StopOnFirstTool && len(results) > 0 {
		return resultText(results[0]), true
	}
	return "", false
}

func resultText(r flow.CallResult) string {
	if r.Err != nil {
		return "error: " + r.Err.Error()
	}
	return r.Result
}

func (x *execution) handoff() core.State {
	from := x.current
	fc := *x.outcome.Handoff

	target, err := tool.ParseHandoff(fc)
	if err != nil {
		return x.fail(&core.RunError{
			Kind:  core.KindHandoffTargetUnknown,
			State: core.StateHandoff,
			Err:   err,
		})
	}

	next, err := x.runner.router.Resolve(from, target, x.chain)
	if err != nil {
		x.rc.LogWarn("agent.handoff.rejected", "from", from.Name(), "to", target, "error", err.Error())
		return x.fail(asRunError(core.StateHandoff, core.KindHandoffTargetUnknown, err))
	}

	_, span := x.tracer.StartHandoff(x.rc.Context, from.Name(), next.Name())
	span.End()
	x.metrics.RecordHandoff(x.rc.Context, from.Name(), next.Name())

	// Every call of the turn gets a response so providers accept the history.
	x.history.Append(core.NewFunctionResponseContent(fc.ID, fc.Name, tool.FormatResult(tool.TransferResult(next.Name())), nil))
	for _, skipped := range x.outcome.Skipped {
		x.history.Append(core.NewFunctionResponseContent(
			skipped.ID, skipped.Name, fmt.Sprintf("skipped: control transferred to %s", next.Name()), nil,
		))
	}

	x.rc.LogInfo("agent.handoff", "from", from.Name(), "to", next.Name(), "chain", x.chain.Names())

	x.current = next
	x.emit(core.NewAgentActivatedEvent(next.Name()))

	return core.StateTurn
}

func (x *execution) halt(tripped []core.GuardrailResult) core.State {
	dir := tripped[0].Direction
	names := make([]string, len(tripped))
	for i, v := range tripped {
		names[i] = v.Guardrail
	}

	x.rc.LogWarn("run.guardrail.tripped", "agent", x.agentName(), "direction", dir, "guardrails", names)

	x.result.Status = StatusHalted
	x.emit(core.NewHaltedEvent(x.agentName(), tripped))

	return core.StateHalted
}

func (x *execution) fail(err *core.RunError) core.State {
	x.rc.LogError("run.failed", "agent", x.agentName(), "kind", err.Kind, "state", err.State, "error", err.Error())

	if x.span != nil {
		x.tracer.RecordError(x.span, err)
	}

	x.result.Status = StatusFailed
	x.result.Failure = err
	x.emit(core.NewFailedEvent(x.agentName(), err))

	return core.StateFailed
}

// emit stamps ev with the run identity and sequence number.
func (x *execution) emit(ev core.Event) {
	ev.RunID = x.rc.RunID
	ev.Seq = x.seq
	x.seq++
	x.sink(ev)
}

func (x *execution) agentName() string {
	if x.current == nil {
		return ""
	}
	return x.current.Name()
}

// asRunError returns err as a *core.RunError with state set, wrapping foreign
// errors in kind.
func asRunError(state core.State, kind core.ErrorKind, err error) *core.RunError {
	var re *core.RunError
	if errors.As(err, &re) {
		cp := *re
		if cp.State == "" {
			cp.State = state
		}
		return &cp
	}
	return &core.RunError{Kind: kind, State: state, Err: err}
}
