package event

import (
	"sync"
	"testing"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	called := false
	sub := bus.Subscribe("test.event", func(e Event) {
		called = true
	})

	if sub == nil {
		t.Fatal("Subscribe should return a subscription handle")
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("Expected 1 subscription, got %d", bus.SubscriptionCount())
	}
	if called {
		t.Error("Handler should not be called until an event is published")
	}
}

func TestBus_Publish(t *testing.T) {
	bus := NewBus()

	var receivedEvent Event
	bus.Subscribe("job.started", func(e Event) {
		receivedEvent = e
	})

	event := NewJobStartedEvent("job-1", "task-1", 1, "claude", "/work/tree", "contrib/task-1")
	bus.Publish(event)

	if receivedEvent == nil {
		t.Fatal("Handler should have received the event")
	}
	if receivedEvent.EventType() != "job.started" {
		t.Errorf("Expected event type 'job.started', got '%s'", receivedEvent.EventType())
	}

	started, ok := receivedEvent.(JobStartedEvent)
	if !ok {
		t.Fatal("Receiver should be able to type-assert the concrete event")
	}
	if started.Branch != "contrib/task-1" {
		t.Errorf("Branch = %q, want %q", started.Branch, "contrib/task-1")
	}
}

func TestBus_PublishMultipleHandlers(t *testing.T) {
	bus := NewBus()

	callCount := 0
	bus.Subscribe("test.event", func(e Event) {
		callCount++
	})
	bus.Subscribe("test.event", func(e Event) {
		callCount++
	})

	bus.Publish(newBaseEvent("test.event"))

	if callCount != 2 {
		t.Errorf("Expected 2 handler calls, got %d", callCount)
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var types []string
	bus.SubscribeAll(func(e Event) {
		types = append(types, e.EventType())
	})

	bus.Publish(NewJobQueuedEvent("j1", "t1", 1))
	bus.Publish(NewJobCompletedEvent("j1", "t1", 1, 500, 0, "b"))

	if len(types) != 2 {
		t.Fatalf("wildcard handler should see 2 events, got %d", len(types))
	}
	if types[0] != "job.queued" || types[1] != "job.completed" {
		t.Errorf("types = %v", types)
	}
}

func TestBus_WildcardOrdering(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(e Event) {
		order = append(order, "wildcard")
	})
	bus.Subscribe("test.event", func(e Event) {
		order = append(order, "specific")
	})

	bus.Publish(newBaseEvent("test.event"))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("specific handlers should run before wildcard handlers, got %v", order)
	}
}

func TestBus_Cancel(t *testing.T) {
	bus := NewBus()

	callCount := 0
	sub := bus.Subscribe("test.event", func(e Event) {
		callCount++
	})

	bus.Publish(newBaseEvent("test.event"))
	if callCount != 1 {
		t.Fatalf("expected 1 call, got %d", callCount)
	}

	if !sub.Cancel() {
		t.Error("Cancel should return true for an active subscription")
	}
	if sub.Cancel() {
		t.Error("Cancel should return false for an already-cancelled subscription")
	}

	bus.Publish(newBaseEvent("test.event"))
	if callCount != 1 {
		t.Errorf("handler should not be called after cancel, got %d calls", callCount)
	}
}

func TestBus_CancelOnlyRemovesItsOwnHandler(t *testing.T) {
	bus := NewBus()

	var order []string
	first := bus.Subscribe("test.event", func(e Event) {
		order = append(order, "first")
	})
	bus.Subscribe("test.event", func(e Event) {
		order = append(order, "second")
	})

	first.Cancel()
	bus.Publish(newBaseEvent("test.event"))

	if len(order) != 1 || order[0] != "second" {
		t.Errorf("only the cancelled handler should be removed, got %v", order)
	}
}

func TestBus_PanicRecovery(t *testing.T) {
	bus := NewBus()

	secondCalled := false
	bus.Subscribe("test.event", func(e Event) {
		panic("handler exploded")
	})
	bus.Subscribe("test.event", func(e Event) {
		secondCalled = true
	})

	// Must not panic the publisher.
	bus.Publish(newBaseEvent("test.event"))

	if !secondCalled {
		t.Error("a panicking handler must not block delivery to later handlers")
	}
}

func TestBus_Clear(t *testing.T) {
	bus := NewBus()
	bus.Subscribe("a", func(e Event) {})
	bus.Subscribe("b", func(e Event) {})

	bus.Clear()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount = %d after Clear, want 0", bus.SubscriptionCount())
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("test.event", func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(newBaseEvent("test.event"))
		}()
	}
	wg.Wait()

	if count != 10 {
		t.Errorf("expected 10 deliveries, got %d", count)
	}
}
