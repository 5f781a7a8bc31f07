package bus

import "fmt"

// InProcessBus delivers events synchronously to local handlers.
// Emit invokes every handler registered for the event's type, in
// subscription order, on the calling goroutine, before returning.
// There is no cross-process visibility.
//
// Subscribe and Emit are not safe for concurrent use; the bus is designed
// for the coordinator's single scheduling goroutine.
type InProcessBus struct {
	handlers map[EventType][]Handler
	history  *History
}

// NewInProcessBus creates an empty in-process bus.
// If history is nil, delivered events are not recorded.
func NewInProcessBus(history *History) *InProcessBus {
	return &InProcessBus{
		handlers: make(map[EventType][]Handler),
		history:  history,
	}
}

// Subscribe registers a handler for one event type.
func (b *InProcessBus) Subscribe(t EventType, h Handler) {
	b.handlers[t] = append(b.handlers[t], h)
}

// Emit constructs an event and delivers it to every handler for its type
// before returning. A slow handler blocks the emitting call.
func (b *InProcessBus) Emit(t EventType, emittedBy string, p Payload) (*Event, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("cannot emit: %w", err)
	}

	event := newEvent(t, emittedBy, p)

	if b.history != nil {
		b.history.Record(event)
	}

	for _, h := range b.handlers[t] {
		h(event)
	}

	return event, nil
}
