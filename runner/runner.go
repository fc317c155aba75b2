package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentrail/agent"
	"github.com/hupe1980/agentrail/core"
	"github.com/hupe1980/agentrail/flow"
	"github.com/hupe1980/agentrail/logging"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/observability"
)

// ErrRunIDInUse is returned for a run whose RunID belongs to an active run.
var ErrRunIDInUse = errors.New("run id already in use")

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Model is used by agents without a model of their own.
	Model model.Model
	// MaxTurns limits the model calls of one run (0 = unlimited).
	MaxTurns int
	// MaxGuardrailFanOut bounds concurrent guardrail evaluations (0 = unbounded).
	MaxGuardrailFanOut int
	// MaxParallelTools bounds concurrent tool calls in parallel mode (0 = unbounded).
	MaxParallelTools int
	// MaxConcurrentRuns limits runs executing at the same time (0 = unlimited).
	MaxConcurrentRuns int
	// EventBufferSize sets the channel buffering of streamed runs.
	EventBufferSize int
	// Tracer and Metrics may be nil.
	Tracer  *observability.Tracer
	Metrics *observability.Metrics
	// Logging services.
	Logger logging.Logger
}

// RunOptions configures one run. Zero values fall back to the runner Options.
type RunOptions struct {
	RunID              string
	Model              model.Model // overrides every agent's model for this run
	MaxTurns           int
	MaxGuardrailFanOut int
	EventBufferSize    int
	Deadline           time.Time
	Timeout            time.Duration
	TracingDisabled    bool
	// History is prior conversation placed before the user input.
	History []core.Content
}

// RunOption configures a run.
type RunOption func(o *RunOptions)

// Runner executes agents. Public methods are safe for concurrent use.
type Runner struct {
	opts       Options
	router     *flow.Router
	runSlots   *semaphore.Weighted
	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxTurns:           10,
		MaxGuardrailFanOut: 4,
		EventBufferSize:    100,
		Logger:             logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	r := &Runner{
		opts:       opts,
		router:     flow.NewRouter(),
		activeRuns: make(map[string]context.CancelFunc),
	}
	if opts.MaxConcurrentRuns > 0 {
		r.runSlots = semaphore.NewWeighted(int64(opts.MaxConcurrentRuns))
	}

	return r
}

// Run executes start against input and blocks until the run ends. cell is
// the caller owned context cell handed unchanged to every tool, predicate,
// derived instruction and guardrail of the run.
func (r *Runner) Run(ctx context.Context, start *agent.Agent, input string, cell any, optFns ...RunOption) *Result {
	ro := r.runOptions(optFns)
	discard := func(core.Event) {}

	runCtx, release, err := r.register(ctx, ro.RunID)
	if err != nil {
		return r.reject(ctx, start, cell, ro, err, false, discard)
	}
	defer release()

	return r.execute(runCtx, start, input, cell, ro, false, discard)
}

// RunStreamed starts the run in the background and returns its event stream.
// The run is registered before RunStreamed returns, so Cancel(s.RunID())
// may be called right away.
func (r *Runner) RunStreamed(ctx context.Context, start *agent.Agent, input string, cell any, optFns ...RunOption) *Stream {
	ro := r.runOptions(optFns)
	s := newStream(ro.RunID, ro.EventBufferSize)

	runCtx, release, err := r.register(ctx, ro.RunID)
	if err != nil {
		go func() {
			s.finish(r.reject(ctx, start, cell, ro, err, true, s.sink(ctx)))
		}()
		return s
	}

	go func() {
		res := r.execute(runCtx, start, input, cell, ro, true, s.sink(runCtx))
		release()
		s.finish(res)
	}()

	return s
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	cancel, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

func (r *Runner) runOptions(optFns []RunOption) RunOptions {
	ro := RunOptions{}
	for _, fn := range optFns {
		fn(&ro)
	}

	if ro.RunID == "" {
		ro.RunID = core.NewID()
	}
	if ro.MaxTurns == 0 {
		ro.MaxTurns = r.opts.MaxTurns
	}
	if ro.MaxGuardrailFanOut == 0 {
		ro.MaxGuardrailFanOut = r.opts.MaxGuardrailFanOut
	}
	if ro.EventBufferSize <= 0 {
		ro.EventBufferSize = r.opts.EventBufferSize
	}
	if ro.EventBufferSize <= 0 {
		ro.EventBufferSize = 1
	}

	return ro
}

// register derives the cancellable context of run runID and makes it
// reachable through Cancel. The returned release cancels the context and
// frees the ID.
func (r *Runner) register(ctx context.Context, runID string) (context.Context, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.activeRuns[runID]; exists {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunIDInUse, runID)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.activeRuns[runID] = cancel

	release := func() {
		cancel()
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
	}

	return ctx, release, nil
}

// reject fails a run that could not be registered without touching the
// active run that owns its ID.
func (r *Runner) reject(
	ctx context.Context,
	start *agent.Agent,
	cell any,
	ro RunOptions,
	err error,
	stream bool,
	sink func(core.Event),
) *Result {
	x := r.newExecution(ro, stream, sink, nil)
	x.rc = core.NewRunContext(ctx, ro.RunID, cell, logging.With(r.opts.Logger, "run_id", ro.RunID))
	x.current = start
	x.fail(&core.RunError{Kind: core.KindCollaboratorError, State: core.StateInit, Err: err})
	x.result.LastAgent = x.agentName()
	return x.result
}

func (r *Runner) execute(
	ctx context.Context,
	start *agent.Agent,
	input string,
	cell any,
	ro RunOptions,
	stream bool,
	sink func(core.Event),
) *Result {
	if !ro.Deadline.IsZero() {
		var cancelDeadline context.CancelFunc
		ctx, cancelDeadline = context.WithDeadline(ctx, ro.Deadline)
		defer cancelDeadline()
	}
	if ro.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, ro.Timeout)
		defer cancelTimeout()
	}

	tracer := r.opts.Tracer
	if ro.TracingDisabled {
		tracer = nil
	}

	logger := logging.With(r.opts.Logger, "run_id", ro.RunID)
	x := r.newExecution(ro, stream, sink, tracer)

	if start == nil {
		x.rc = core.NewRunContext(ctx, ro.RunID, cell, logger)
		x.fail(&core.RunError{
			Kind:  core.KindCollaboratorError,
			State: core.StateInit,
			Err:   fmt.Errorf("%w: nil starting agent", agent.ErrInvalidAgent),
		})
		return x.result
	}

	if r.runSlots != nil {
		if err := r.runSlots.Acquire(ctx, 1); err != nil {
			x.rc = core.NewRunContext(ctx, ro.RunID, cell, logger)
			x.current = start
			x.fail(core.ContextError(core.StateInit, err))
			return x.result
		}
		defer r.runSlots.Release(1)
	}

	ctx, span := tracer.StartRun(ctx, ro.RunID, start.Name())
	defer span.End()

	x.rc = core.NewRunContext(ctx, ro.RunID, cell, logger)
	x.span = span

	return x.run(start, input)
}

func (r *Runner) newExecution(ro RunOptions, stream bool, sink func(core.Event), tracer *observability.Tracer) *execution {
	return &execution{
		runner:  r,
		opts:    ro,
		stream:  stream,
		sink:    sink,
		tracer:  tracer,
		metrics: r.opts.Metrics,
		history: core.NewHistory(ro.History...),
		result:  &Result{RunID: ro.RunID},
		limiter: core.NewTurnLimiter(ro.MaxTurns),
		used:    make(map[string]bool),
		dispatcher: flow.NewDispatcher(func(o *flow.DispatcherOptions) {
			o.MaxParallel = r.opts.MaxParallelTools
			o.Observer = observability.Instrumentation{Tracer: tracer, Metrics: r.opts.Metrics}
		}),
	}
}
