package events

import (
	"context"
	"errors"
	"sync"

	"listing_leads_backend/platform/besteffort"
)

// InMemoryBus dispatches events to in-process subscribers through a bounded
// best-effort runner.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	runner   *besteffort.Runner
}

// NewInMemoryBus creates a bus that schedules asynchronous handlers on runner.
func NewInMemoryBus(runner *besteffort.Runner) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		runner:   runner,
	}
}

func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	for _, h := range b.subscribers(event.EventName()) {
		handler := h
		b.runner.Go(ctx, event.EventName(), func(ctx context.Context) error {
			return handler.Handle(ctx, event)
		})
	}
}

func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, h := range b.subscribers(event.EventName()) {
		handler := h
		out := b.runner.Attempt(ctx, event.EventName(), func(ctx context.Context) error {
			return handler.Handle(ctx, event)
		})
		if out.Err != nil {
			errs = append(errs, out.Err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until asynchronously published events have been handled.
func (b *InMemoryBus) Wait() {
	b.runner.Wait()
}

func (b *InMemoryBus) subscribers(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler(nil), b.handlers[name]...)
}
