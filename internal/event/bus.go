// Package event provides the process-wide typed publish/subscribe channel
// for job lifecycle and progress events. It decouples the execution engine
// from completion handling, tracking, and any presentation layer.
package event

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Handler is a function that handles an event.
type Handler func(Event)

// wildcard is the pseudo event type matching every published event.
const wildcard = "*"

// Subscription is the handle returned by Subscribe. Cancel detaches the
// handler from the bus.
type Subscription struct {
	bus       *Bus
	eventType string
	seq       uint64
}

// Cancel removes the subscription from its bus. Returns false if the
// subscription was already cancelled.
func (s *Subscription) Cancel() bool {
	if s == nil || s.bus == nil {
		return false
	}
	return s.bus.cancel(s)
}

type registration struct {
	seq     uint64
	handler Handler
}

// Bus is a synchronous pub-sub event bus. Any number of independent
// subscribers may listen to a given event type; publishing blocks until
// every handler has run.
type Bus struct {
	mu       sync.RWMutex
	nextSeq  uint64
	handlers map[string][]registration // eventType -> registrations
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]registration),
	}
}

// Subscribe registers a handler for a specific event type and returns a
// cancellable subscription handle.
func (b *Bus) Subscribe(eventType string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	b.handlers[eventType] = append(b.handlers[eventType], registration{
		seq:     b.nextSeq,
		handler: handler,
	})
	return &Subscription{bus: b, eventType: eventType, seq: b.nextSeq}
}

// SubscribeAll registers a handler that receives every event type.
func (b *Bus) SubscribeAll(handler Handler) *Subscription {
	return b.Subscribe(wildcard, handler)
}

func (b *Bus) cancel(s *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[s.eventType]
	for i, reg := range regs {
		if reg.seq == s.seq {
			b.handlers[s.eventType] = append(regs[:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

// Publish dispatches an event to all registered handlers.
// Specific handlers (subscribed to this event type) are called first,
// followed by wildcard handlers, each group in registration order.
// A panicking handler is logged and recovered so it cannot block
// delivery to the remaining handlers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	eventType := event.EventType()

	specific := make([]registration, len(b.handlers[eventType]))
	copy(specific, b.handlers[eventType])

	wildcards := make([]registration, len(b.handlers[wildcard]))
	copy(wildcards, b.handlers[wildcard])

	b.mu.RUnlock()

	for _, reg := range specific {
		b.safeCall(reg.handler, event)
	}
	for _, reg := range wildcards {
		b.safeCall(reg.handler, event)
	}
}

// safeCall invokes a handler and recovers from any panics.
func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"event_type", event.EventType(),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	handler(event)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string][]registration)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, regs := range b.handlers {
		count += len(regs)
	}
	return count
}
