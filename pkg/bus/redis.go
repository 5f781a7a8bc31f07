package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// defaultInboxSize bounds the number of inbound events queued between
// drains. When the inbox is full the oldest pending event is dropped:
// the bus is at-most-once and best-effort by contract.
const defaultInboxSize = 256

// RedisBus is the networked bus variant. Emit publishes the serialized
// event to a per-type channel on Redis; a background wildcard subscription
// receives every type for the instance, decodes, and queues the event in
// a bounded inbox. Drain dispatches queued events to local handlers on
// the caller's goroutine, exactly as the in-process variant would — the
// coordinator drains at tick boundaries so remote events never touch
// project memory off the scheduling context.
//
// Handlers cannot distinguish locally- and remotely-originated events: a
// node receives its own published events back through the subscription.
// Whether downstream handlers must tolerate that duplication is an open
// property of the system; this bus does not suppress self-delivery.
type RedisBus struct {
	rdb          *redis.Client
	instanceName string

	handlers map[EventType][]Handler
	inbox    chan *Event
	history  *History

	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

// NewRedisBus creates a networked bus for the given instance.
// Call Start to begin receiving before emitting or draining.
func NewRedisBus(redisOpts *redis.Options, instanceName string, history *History) (*RedisBus, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &RedisBus{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		handlers:     make(map[EventType][]Handler),
		inbox:        make(chan *Event, defaultInboxSize),
		history:      history,
	}, nil
}

// Ping verifies Redis connectivity. Useful for startup health checks.
func (b *RedisBus) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Start opens the wildcard subscription and launches the receive loop.
// The loop runs until the context is cancelled or Close is called.
func (b *RedisBus) Start(ctx context.Context) error {
	pattern := EventChannelPattern(b.instanceName)
	pubsub := b.rdb.PSubscribe(ctx, pattern)

	// Confirm the subscription is live before returning so events
	// published immediately after Start are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	b.wg.Add(1)
	go b.receiveLoop(runCtx, pubsub)

	return nil
}

// receiveLoop decodes inbound messages and queues them in the inbox.
// Decode failures are logged and the message skipped; the subscription
// continues.
func (b *RedisBus) receiveLoop(ctx context.Context, pubsub *redis.PubSub) {
	defer b.wg.Done()
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("[WARN] bus: dropping undecodable event on %s: %v", msg.Channel, err)
				continue
			}

			b.enqueue(&event)
		}
	}
}

// enqueue adds an event to the inbox, evicting the oldest pending event
// if the inbox is full.
func (b *RedisBus) enqueue(event *Event) {
	for {
		select {
		case b.inbox <- event:
			return
		default:
		}

		select {
		case dropped := <-b.inbox:
			log.Printf("[WARN] bus: inbox full, dropped event id=%s type=%s", dropped.ID, dropped.Type)
		default:
		}
	}
}

// Subscribe registers a handler for one event type. Handlers fire during
// Drain, in subscription order.
func (b *RedisBus) Subscribe(t EventType, h Handler) {
	b.handlers[t] = append(b.handlers[t], h)
}

// Emit constructs an event and publishes it to the type's channel.
// Publish transport errors are logged and swallowed — delivery is
// best-effort and the emitted event is still returned. Only validation
// and serialization failures surface as errors.
func (b *RedisBus) Emit(t EventType, emittedBy string, p Payload) (*Event, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("cannot emit: %w", err)
	}

	event := newEvent(t, emittedBy, p)

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := EventChannel(b.instanceName, t)
	if err := b.rdb.Publish(context.Background(), channel, eventJSON).Err(); err != nil {
		log.Printf("[WARN] bus: failed to publish event id=%s type=%s: %v", event.ID, event.Type, err)
	}

	return event, nil
}

// Drain dispatches every queued inbound event to local handlers on the
// calling goroutine and returns the number delivered. Drain returns early
// if the context is cancelled.
func (b *RedisBus) Drain(ctx context.Context) int {
	delivered := 0
	for {
		select {
		case <-ctx.Done():
			return delivered
		case event := <-b.inbox:
			if b.history != nil {
				b.history.Record(event)
			}
			for _, h := range b.handlers[event.Type] {
				h(event)
			}
			delivered++
		default:
			return delivered
		}
	}
}

// Close stops the receive loop and closes the Redis connection.
// Safe to call multiple times — subsequent calls are no-ops.
func (b *RedisBus) Close() error {
	var err error
	b.once.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
		err = b.rdb.Close()
	})
	return err
}
