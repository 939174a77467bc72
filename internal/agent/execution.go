package agent

import (
	"context"
	"sync"
	"time"
)

// EventKind classifies an execution stream event.
type EventKind string

const (
	// EventOutput carries a line of backend output.
	EventOutput EventKind = "output"
	// EventProgress carries a coarse progress note.
	EventProgress EventKind = "progress"
	// EventWarning carries a non-fatal problem.
	EventWarning EventKind = "warning"
)

// Event is one entry in an execution's ordered output stream.
type Event struct {
	Kind       EventKind
	Message    string
	TokenDelta int
	File       string
	Time       time.Time
}

// Execution is the handle returned by Provider.Execute: an ordered event
// stream meant for a single consumer, paired with one terminal result.
// The event channel closes when the execution resolves; Wait then
// returns the same result to every caller, though the intended shape is
// one drainer and one waiter.
type Execution struct {
	id     string
	events chan Event
	done   chan struct{}

	resolveOnce sync.Once
	result      Result
	err         error
}

func newExecution(id string) *Execution {
	return &Execution{
		id:     id,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

// ID returns the execution's identifier, usable with Provider.Abort.
func (e *Execution) ID() string {
	return e.id
}

// Events returns the ordered event stream. The channel is closed once
// the execution resolves.
func (e *Execution) Events() <-chan Event {
	return e.events
}

// Wait blocks until the execution resolves or ctx is done. The result
// is resolved exactly once; repeated calls return the same values.
func (e *Execution) Wait(ctx context.Context) (Result, error) {
	select {
	case <-e.done:
		return e.result, e.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// emit appends an event to the stream. It drops the event if the
// execution already resolved, and blocks while the buffer is full so
// the stream stays ordered for its single consumer.
func (e *Execution) emit(ev Event) {
	select {
	case <-e.done:
	case e.events <- ev:
	}
}

// resolve sets the terminal result. Only the first call wins; it also
// closes the event channel so the drainer's loop terminates. Callers
// must not resolve until every emitter has returned.
func (e *Execution) resolve(result Result, err error) {
	e.resolveOnce.Do(func() {
		e.result = result
		e.err = err
		close(e.done)
		close(e.events)
	})
}
