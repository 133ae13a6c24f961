// Package dispatch routes decoded events to registered handlers. It is the
// glue between Bot.SubscribeEvents and application code that wants per-type
// handlers instead of one switch.
package dispatch

import (
	"context"
	"sync"

	"github.com/mirai-sdk/go-mirai/pkg/event"
)

// Any registers a handler for every event type.
const Any = "*"

// Handler processes one event. Handlers for the same event run in
// registration order; calling ev.StopPropagation() skips the rest.
type Handler func(ctx context.Context, ev event.Event)

// Dispatcher is a registry of handlers keyed by wire event type. Register
// during setup, then Dispatch from the receive loop. Register and Dispatch
// are safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]Handler)}
}

// Register adds a handler for the given wire type tag, such as
// "GroupMessage" or "BotOnlineEvent". Use Any to observe everything.
func (d *Dispatcher) Register(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// Dispatch runs the handlers registered for ev's type, then the wildcard
// handlers, honoring the event's stop-propagation latch between each.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) {
	d.mu.RLock()
	typed := d.handlers[ev.EventType()]
	wild := d.handlers[Any]
	d.mu.RUnlock()

	for _, h := range typed {
		if ev.PropagationStopped() {
			return
		}
		h(ctx, ev)
	}
	for _, h := range wild {
		if ev.PropagationStopped() {
			return
		}
		h(ctx, ev)
	}
}
