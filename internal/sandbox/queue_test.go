package sandbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSerialQueue_RunsOpsInOrder(t *testing.T) {
	q := newSerialQueue()
	defer q.Close()

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			// Stagger submissions so admission order is deterministic.
			time.Sleep(time.Duration(i) * 20 * time.Millisecond)
			_ = q.Do(context.Background(), func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
	}
	close(start)
	wg.Wait()

	for i, got := range order {
		if got != i {
			t.Fatalf("ops ran out of order: %v", order)
		}
	}
}

func TestSerialQueue_ErrorGoesOnlyToSubmitter(t *testing.T) {
	q := newSerialQueue()
	defer q.Close()

	wantErr := fmt.Errorf("boom")
	if err := q.Do(context.Background(), func() error { return wantErr }); err != wantErr {
		t.Errorf("submitter got %v, want %v", err, wantErr)
	}
	if err := q.Do(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("next op must not inherit the previous failure, got %v", err)
	}
}

func TestSerialQueue_NeverRunsOpsConcurrently(t *testing.T) {
	q := newSerialQueue()
	defer q.Close()

	var mu sync.Mutex
	active, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func() error {
				mu.Lock()
				active++
				if active > peak {
					peak = active
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
}

func TestSerialQueue_CanceledSubmissionDoesNotRun(t *testing.T) {
	q := newSerialQueue()
	defer q.Close()

	// Occupy the queue so the second submission has to wait for admission.
	release := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), func() error {
			<-release
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := q.Do(ctx, func() error {
		ran = true
		return nil
	})
	close(release)

	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if ran {
		t.Error("canceled submission must not run")
	}
}

func TestSerialQueue_CloseRejectsNewOps(t *testing.T) {
	q := newSerialQueue()
	q.Close()

	if err := q.Do(context.Background(), func() error { return nil }); err == nil {
		t.Error("expected an error after Close")
	}
}
