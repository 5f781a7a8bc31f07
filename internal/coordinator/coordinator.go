package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/warren/pkg/project"
)

// DefaultTickInterval is the pause between scheduling passes.
const DefaultTickInterval = 2 * time.Second

// Worker is one schedulable participant. Role must be stable and unique
// within a coordinator; it keys the worker's agent context in project
// memory.
//
// Act performs at most one unit of work against the shared memory and
// reports whether it did anything. It must leave the memory consistent
// on error: the coordinator treats a failed Act as if no work happened.
type Worker interface {
	Role() string
	Initialize(ctx context.Context) error
	Act(ctx context.Context) (bool, error)
}

// Drainer delivers buffered remote events on the caller's goroutine.
// A bus.RedisBus satisfies this; the coordinator drains it at the start
// of every tick so remote handlers never race the scheduling pass.
type Drainer interface {
	Drain(ctx context.Context) int
}

// Options tunes a coordinator. The zero value is usable: default tick
// interval, unbounded ticks, no inbox.
type Options struct {
	// TickInterval is the sleep between passes; zero selects
	// DefaultTickInterval.
	TickInterval time.Duration

	// MaxTicks stops the loop after that many passes; zero runs until
	// the context is cancelled.
	MaxTicks int

	// Inbox, when set, is drained at the start of every tick.
	Inbox Drainer
}

// Coordinator owns the scheduling loop for one project.
type Coordinator struct {
	memory  *project.Memory
	workers []Worker
	opts    Options
}

// New creates a coordinator for the given project memory.
func New(memory *project.Memory, opts Options) *Coordinator {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return &Coordinator{
		memory: memory,
		opts:   opts,
	}
}

// Register adds a worker to the roster and runs its Initialize hook.
// Registration order is traversal order. Roles must be unique.
func (c *Coordinator) Register(ctx context.Context, w Worker) error {
	for _, existing := range c.workers {
		if existing.Role() == w.Role() {
			return fmt.Errorf("worker role %q already registered", w.Role())
		}
	}
	if err := w.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize worker %q: %w", w.Role(), err)
	}
	c.workers = append(c.workers, w)
	return nil
}

// Run executes scheduling passes until the context is cancelled or
// MaxTicks passes have completed.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logEvent("coordinator_started", map[string]interface{}{
		"workers":          len(c.workers),
		"tick_interval_ms": c.opts.TickInterval.Milliseconds(),
	})

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			c.logEvent("coordinator_stopped", map[string]interface{}{
				"ticks": ticks,
			})
			return nil
		default:
		}

		c.Tick(ctx)
		ticks++

		if c.opts.MaxTicks > 0 && ticks >= c.opts.MaxTicks {
			c.logEvent("coordinator_stopped", map[string]interface{}{
				"ticks": ticks,
			})
			return nil
		}

		select {
		case <-ctx.Done():
			c.logEvent("coordinator_stopped", map[string]interface{}{
				"ticks": ticks,
			})
			return nil
		case <-time.After(c.opts.TickInterval):
		}
	}
}

// Tick runs one scheduling pass: drain remote events, snapshot the
// project, offer the turn to workers in registration order, stop at the
// first one that does work. Exported for tests and for single-step
// tooling.
func (c *Coordinator) Tick(ctx context.Context) bool {
	if c.opts.Inbox != nil {
		if n := c.opts.Inbox.Drain(ctx); n > 0 {
			c.logEvent("inbox_drained", map[string]interface{}{
				"events": n,
			})
		}
	}

	snap := c.memory.Snapshot()
	busyRole, busy := workingRole(snap)

	for _, w := range c.workers {
		// While a role is mid-task only that role may act; everyone
		// else waits for the pointer to clear.
		if busy && w.Role() != busyRole {
			continue
		}

		acted, err := c.act(ctx, w)
		if err != nil {
			c.logEvent("worker_error", map[string]interface{}{
				"role":  w.Role(),
				"error": err.Error(),
			})
			continue
		}
		if acted {
			c.logEvent("worker_acted", map[string]interface{}{
				"role": w.Role(),
			})
			return true
		}
	}

	return false
}

// act invokes one worker with panic containment. A panicking worker
// yields an error, never a crashed loop.
func (c *Coordinator) act(ctx context.Context, w Worker) (acted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			acted = false
			err = fmt.Errorf("worker %q panicked: %v", w.Role(), r)
		}
	}()
	return w.Act(ctx)
}

// workingRole reports which role, if any, holds a working task pointer
// in the snapshot. Well-formed state has at most one.
func workingRole(s *project.State) (string, bool) {
	for role, agent := range s.Agents {
		if agent != nil && agent.Current.Working() {
			return role, true
		}
	}
	return "", false
}

// logEvent logs a structured event in JSON format.
func (c *Coordinator) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "coordinator"
	data["event_type"] = eventType
	if c.memory != nil {
		data["project_id"] = c.memory.ProjectID()
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Coordinator] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
