// Package events carries the engine's domain signals (escalations found by
// a scan, reminders coming due) to whoever subscribes, without the scorers
// knowing who listens. Publishing is fire-and-forget: scans must finish
// their sweep whether or not a notifier is attached.
package events

import (
	"context"
	"sync"
	"time"

	"realty_portal_backend/platform/logger"
)

// Event is implemented by every domain signal the engine emits.
type Event interface {
	// EventName identifies the signal type, e.g. "intelligence.lead.escalated".
	EventName() string
	// OccurredAt is when the signal was produced.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all signals.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a signal with the current time. Event timestamps are
// emission metadata, not scoring inputs; the scorers themselves only ever
// see an explicit reference time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes signals of one type.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes signals to subscribed handlers. Delivery is asynchronous
// and best-effort; a slow or failing handler never stalls the publisher.
type Bus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(eventName string, handler Handler)
}

// InMemoryBus is the process-local Bus. Each handler runs in its own
// goroutine; handler errors are logged and dropped.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates an empty bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for an event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	for _, handler := range b.handlersFor(event.EventName()) {
		h := handler
		go func() {
			if err := h.Handle(ctx, event); err != nil && b.log != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}()
	}
}

func (b *InMemoryBus) handlersFor(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handlers[eventName]
}
