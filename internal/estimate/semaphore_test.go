package estimate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReadSemaphore_BoundsConcurrency(t *testing.T) {
	sem := newReadSemaphore(3)

	var current, peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := sem.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer sem.Release()

			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	if peak.Load() > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak.Load())
	}
	if sem.InUse() != 0 {
		t.Errorf("InUse() = %d after all releases, want 0", sem.InUse())
	}
}

func TestReadSemaphore_UnlimitedWhenZero(t *testing.T) {
	sem := newReadSemaphore(0)

	for i := 0; i < 100; i++ {
		if err := sem.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	}
	if sem.InUse() != 100 {
		t.Errorf("InUse() = %d, want 100", sem.InUse())
	}
}

func TestReadSemaphore_AcquireCancelled(t *testing.T) {
	sem := newReadSemaphore(1)

	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- sem.Acquire(ctx)
	}()

	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Acquire() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Acquire did not observe cancellation")
	}
}

func TestReadSemaphore_ReleaseWakesWaiter(t *testing.T) {
	sem := newReadSemaphore(1)
	_ = sem.Acquire(context.Background())

	acquired := make(chan struct{})
	go func() {
		_ = sem.Acquire(context.Background())
		close(acquired)
	}()

	sem.Release()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by Release")
	}
}
