package flow

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/tool"
)

// ToolObserver receives callbacks around every tool execution. It must be
// safe for concurrent use. The context returned by ToolStarted is the one the
// tool runs with.
type ToolObserver interface {
	ToolStarted(ctx context.Context, agent string, fc core.FunctionCall) context.Context
	ToolFinished(ctx context.Context, agent string, fc core.FunctionCall, err error, d time.Duration)
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(calls))
	LogStartEvents bool // log a start line per tool call
	Observer       ToolObserver
}

// CallResult is the outcome of one dispatched tool call.
type CallResult struct {
	Call   core.FunctionCall
	Output any    // raw handler output
	Result string // rendered output, empty on failure
	Err    error
}

// Content renders the result as a tool-role history item.
func (r CallResult) Content() core.Content {
	return core.NewFunctionResponseContent(r.Call.ID, r.Call.Name, r.Result, r.Err)
}

// Dispatcher executes the tool calls of one turn.
//
// Calls are checked against the tools visible in that turn before any of them
// runs. Execution is sequential in model order unless the agent explicitly
// enables parallel tool calls. In parallel mode non-mutating calls run
// concurrently while mutating calls run one at a time in the agent's
// mutating order.
type Dispatcher struct {
	opts DispatcherOptions
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(optFns ...func(o *DispatcherOptions)) *Dispatcher {
	opts := DispatcherOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Dispatcher{opts: opts}
}

// Dispatch runs calls for agent a and reports events through emit, which is
// only called from the dispatching goroutine. The returned error is a
// *core.RunError: KindToolNotVisible, KindToolExecutionFailed under the fatal
// policy, or Cancelled/Timeout.
func (d *Dispatcher) Dispatch(
	rc *core.RunContext,
	a *agent.Agent,
	visible []tool.Tool,
	calls []core.FunctionCall,
	emit func(core.Event),
) ([]CallResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	tools, err := resolveCalls(rc, a, visible, calls)
	if err != nil {
		return nil, err
	}

	if a.Settings().Parallel() && len(calls) > 1 {
		return d.dispatchParallel(rc, a, tools, calls, emit)
	}
	return d.dispatchSequential(rc, a, tools, calls, emit)
}

// resolveCalls maps every call to a tool of the visible set.
func resolveCalls(rc *core.RunContext, a *agent.Agent, visible []tool.Tool, calls []core.FunctionCall) ([]tool.Tool, error) {
	byName := make(map[string]tool.Tool, len(visible))
	for _, t := range visible {
		byName[t.Name()] = t
	}

	tools := make([]tool.Tool, len(calls))
	for i, fc := range calls {
		t, ok := byName[fc.Name]
		if !ok {
			_, registered := a.Tools().Lookup(fc.Name)
			rc.LogWarn("agent.tool.not_visible", "agent", a.Name(), "tool", fc.Name, "registered", registered)

			reason := "not registered"
			if registered {
				reason = "hidden by its capability predicate"
			}
			return nil, &core.RunError{
				Kind:  core.KindToolNotVisible,
				State: core.StateToolDispatch,
				Tool:  fc.Name,
				Err:   fmt.Errorf("tool %s is %s for agent %s", fc.Name, reason, a.Name()),
			}
		}
		tools[i] = t
	}

	return tools, nil
}

func (d *Dispatcher) dispatchSequential(
	rc *core.RunContext,
	a *agent.Agent,
	tools []tool.Tool,
	calls []core.FunctionCall,
	emit func(core.Event),
) ([]CallResult, error) {
	results := make([]CallResult, 0, len(calls))

	for i, fc := range calls {
		if err := rc.Err(); err != nil {
			return results, core.ContextError(core.StateToolDispatch, err)
		}

		emit(core.NewToolInvokedEvent(a.Name(), fc))

		r := d.execute(rc, a, tools[i], fc)
		emit(core.NewToolResultEvent(a.Name(), fc, r.Result, r.Output, r.Err))
		results = append(results, r)

		if r.Err != nil && a.ToolErrorPolicy() == agent.ToolErrorFatal {
			return results, toolFailure(r)
		}
	}

	return results, nil
}

func (d *Dispatcher) dispatchParallel(
	rc *core.RunContext,
	a *agent.Agent,
	tools []tool.Tool,
	calls []core.FunctionCall,
	emit func(core.Event),
) ([]CallResult, error) {
	n := len(calls)

	maxPar := d.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	for _, fc := range calls {
		emit(core.NewToolInvokedEvent(a.Name(), fc))
	}

	var (
		results  = make([]CallResult, n)
		sem      = semaphore.NewWeighted(int64(maxPar))
		wg       sync.WaitGroup
		mutating []int
	)

	batchStart := time.Now()

	run := func(idx int) {
		if err := sem.Acquire(rc.Context, 1); err != nil {
			return
		}
		defer sem.Release(1)

		results[idx] = d.execute(rc, a, tools[idx], calls[idx])
	}

	for i := range calls {
		if tool.IsMutating(tools[i]) {
			mutating = append(mutating, i)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			run(i)
		}()
	}

	if len(mutating) > 0 {
		order := a.MutatingOrder()
		rank := func(idx int) int {
			if r := slices.Index(order, calls[idx].Name); r >= 0 {
				return r
			}
			return len(order)
		}
		slices.SortStableFunc(mutating, func(x, y int) int { return rank(x) - rank(y) })

		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, idx := range mutating {
				if rc.Err() != nil {
					return
				}
				run(idx)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-rc.Done():
		rc.LogWarn("agent.tools.batch.abandoned", "agent", a.Name(), "count", n)
		return nil, core.ContextError(core.StateToolDispatch, rc.Err())
	}

	if err := rc.Err(); err != nil {
		return nil, core.ContextError(core.StateToolDispatch, err)
	}

	rc.LogDebug(
		"agent.tools.batch.complete",
		"agent", a.Name(),
		"count", n,
		"parallelism", maxPar,
		"mutating", len(mutating),
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	var failure error
	for i, r := range results {
		emit(core.NewToolResultEvent(a.Name(), calls[i], r.Result, r.Output, r.Err))
		if failure == nil && r.Err != nil && a.ToolErrorPolicy() == agent.ToolErrorFatal {
			failure = toolFailure(r)
		}
	}

	return results, failure
}

// execute runs one call with panic safety and renders its result.
func (d *Dispatcher) execute(rc *core.RunContext, a *agent.Agent, t tool.Tool, fc core.FunctionCall) (r CallResult) {
	r.Call = fc

	ctx := rc.Context
	if d.opts.Observer != nil {
		ctx = d.opts.Observer.ToolStarted(ctx, a.Name(), fc)
	}

	toolCtx := core.NewToolContext(rc.WithContext(ctx), a.Info(), fc.ID)
	if d.opts.LogStartEvents {
		rc.LogInfo("agent.tool.start", "agent", a.Name(), "tool", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()
	func() { // panic safety
		defer func() {
			if rec := recover(); rec != nil {
				r.Output = nil
				r.Err = tool.NewToolError(fc.Name, fmt.Sprintf("panic: %v", rec), tool.CodePanic)
				rc.LogError("agent.tool.panic", "agent", a.Name(), "tool", fc.Name, "recover", rec, "stack", string(debug.Stack()))
			}
		}()

		args, err := tool.ParseArguments(fc.Arguments)
		if err != nil {
			r.Err = &tool.ToolError{Tool: fc.Name, Message: err.Error(), Code: tool.CodeValidation, Details: err}
			return
		}
		r.Output, r.Err = t.Call(toolCtx, args)
	}()
	dur := time.Since(start)

	if r.Err == nil {
		r.Result = tool.FormatResult(r.Output)
	}

	rc.LogInfo(
		"agent.tool.executed",
		"agent", a.Name(),
		"tool", fc.Name,
		"function_call_id", fc.ID,
		"duration_ms", dur.Milliseconds(),
		"error", r.Err != nil,
	)

	if d.opts.Observer != nil {
		d.opts.Observer.ToolFinished(ctx, a.Name(), fc, r.Err, dur)
	}

	return r
}

func toolFailure(r CallResult) *core.RunError {
	return &core.RunError{
		Kind:  core.KindToolExecutionFailed,
		State: core.StateToolDispatch,
		Tool:  r.Call.Name,
		Err:   r.Err,
	}
}
