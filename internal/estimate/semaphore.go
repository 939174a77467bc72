package estimate

import (
	"context"
	"sync"
)

// readSemaphore bounds concurrent target-file reads. Estimation fans out
// one read per file; on large repositories an unbounded fan-out exhausts
// file-descriptor limits, so every read first acquires a slot here.
//
// A limit of 0 means unlimited — Acquire always succeeds immediately.
type readSemaphore struct {
	mu       sync.Mutex
	cond     *sync.Cond
	limit    int // 0 = unlimited
	acquired int
}

// newReadSemaphore creates a semaphore with the given limit.
// Negative values are clamped to 0 (unlimited).
func newReadSemaphore(limit int) *readSemaphore {
	if limit < 0 {
		limit = 0
	}
	s := &readSemaphore{limit: limit}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Acquire blocks until a slot is available or the context is cancelled.
// Returns nil on success, or the context error if cancelled.
func (s *readSemaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit == 0 {
		s.acquired++
		return nil
	}

	// A helper goroutine broadcasts on cancellation so blocked waiters
	// wake up and can return the context error.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.cond.Broadcast()
		case <-done:
		}
	}()

	for s.acquired >= s.limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}

	// Re-check after waking — the wake may have been from cancellation.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.acquired++
	return nil
}

// Release frees a slot and signals one waiting goroutine.
func (s *readSemaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.acquired > 0 {
		s.acquired--
	}
	s.cond.Signal()
}

// InUse returns the number of currently held slots.
func (s *readSemaphore) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}
