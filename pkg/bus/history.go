package bus

import "sync"

// History is a bounded ring buffer of delivered events, kept for
// observability (the CLI watch command replays it). It is a collaborator
// of the bus, not a durable event log: once capacity is reached the
// oldest entries are overwritten.
type History struct {
	mu     sync.Mutex
	events []*Event
	next   int
	full   bool
}

// DefaultHistorySize is the capacity used by NewHistory(0).
const DefaultHistorySize = 256

// NewHistory creates a ring buffer holding up to capacity events.
// A capacity <= 0 selects DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{events: make([]*Event, capacity)}
}

// Record appends an event, overwriting the oldest entry when full.
func (h *History) Record(event *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events[h.next] = event
	h.next = (h.next + 1) % len(h.events)
	if h.next == 0 {
		h.full = true
	}
}

// Recent returns up to n most recent events, oldest first.
// n <= 0 returns everything retained.
func (h *History) Recent(n int) []*Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.next
	if h.full {
		size = len(h.events)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]*Event, 0, n)
	start := h.next - n
	if start < 0 {
		start += len(h.events)
	}
	for i := 0; i < n; i++ {
		out = append(out, h.events[(start+i)%len(h.events)])
	}
	return out
}

// Len reports how many events are currently retained.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.full {
		return len(h.events)
	}
	return h.next
}
