package runner

import (
	"context"

	"github.com/hupe1980/agentrail/core"
)

// Stream is a single-pass view of a streamed run.
//
// Events are delivered in causal order and the channel is closed after the
// last one: a Halted or Failed event, or the final Message of a Done run.
// While the run is live it blocks when the event buffer is full, so callers
// must either range over Events or call Wait. Once the run's context is
// cancelled, events that do not fit the buffer are dropped (leaving gaps in
// Seq) and the run ends without waiting for the consumer. The terminal event
// is never dropped.
type Stream struct {
	runID string

	queue  chan core.Event // run goroutine -> forwarder
	events chan core.Event // forwarder -> caller
	tail   *core.Event     // terminal event, set before queue is closed
	done   chan struct{}
	result *Result
}

func newStream(runID string, buffer int) *Stream {
	s := &Stream{
		runID:  runID,
		queue:  make(chan core.Event, buffer),
		events: make(chan core.Event),
		done:   make(chan struct{}),
	}
	go s.forward()
	return s
}

// RunID returns the identifier of the run.
func (s *Stream) RunID() string { return s.runID }

// Events returns the event channel.
func (s *Stream) Events() <-chan core.Event { return s.events }

// Wait discards unread events and returns the final result once the run
// has ended.
func (s *Stream) Wait() *Result {
	for range s.events {
	}
	<-s.done
	return s.result
}

func (s *Stream) forward() {
	for ev := range s.queue {
		s.events <- ev
	}
	if s.tail != nil {
		s.events <- *s.tail
	}
	close(s.events)
}

// sink returns the emit function of a run bound to ctx.
func (s *Stream) sink(ctx context.Context) func(core.Event) {
	return func(ev core.Event) {
		if ev.IsTerminal() {
			s.tail = &ev
			return
		}

		select {
		case s.queue <- ev:
			return
		default:
		}

		select {
		case s.queue <- ev:
		case <-ctx.Done():
		}
	}
}

func (s *Stream) finish(res *Result) {
	s.result = res
	close(s.queue)
	close(s.done)
}
