package sandbox

import (
	"context"
	"sync"
)

// queuedOp is a single unit of work submitted to a serialQueue. Its
// result is delivered on done to the submitting caller and nobody else.
type queuedOp struct {
	run  func() error
	done chan error
}

// serialQueue executes submitted operations strictly one at a time, in
// submission order. A dedicated goroutine drains the channel, so an
// operation that fails never blocks or cancels the operations queued
// behind it; the failure is reported only to the caller that submitted it.
type serialQueue struct {
	ops chan queuedOp

	closeOnce sync.Once
	closed    chan struct{}
}

func newSerialQueue() *serialQueue {
	q := &serialQueue{
		ops:    make(chan queuedOp),
		closed: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *serialQueue) loop() {
	for {
		select {
		case op := <-q.ops:
			op.done <- op.run()
		case <-q.closed:
			return
		}
	}
}

// Do submits fn and blocks until it has run to completion. Submission
// honors ctx, but once admitted the operation always runs exactly once;
// its error is returned here and nowhere else.
func (q *serialQueue) Do(ctx context.Context, fn func() error) error {
	op := queuedOp{run: fn, done: make(chan error, 1)}
	select {
	case q.ops <- op:
	case <-q.closed:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-op.done
}

// Close stops the queue goroutine. Operations already admitted complete;
// later submissions fail.
func (q *serialQueue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}
