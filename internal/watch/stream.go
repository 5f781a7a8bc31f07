// Package watch renders live event-bus activity for the CLI.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/warren/pkg/bus"
)

// OutputFormat selects how events are rendered.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable output with timestamps.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON.
	OutputFormatJSON OutputFormat = "json"
)

// allEventTypes is the closed set of subscribable events.
var allEventTypes = []bus.EventType{
	bus.EventProjectCreated,
	bus.EventPhaseChanged,
	bus.EventTaskAssigned,
	bus.EventTaskCompleted,
	bus.EventDocumentUpdated,
	bus.EventArtifactCreated,
	bus.EventGuidelineAdded,
	bus.EventHelpRequested,
}

// eventGlyphs give each event type a scan-friendly marker in default
// output.
var eventGlyphs = map[bus.EventType]string{
	bus.EventProjectCreated:  "🌱",
	bus.EventPhaseChanged:    "🔄",
	bus.EventTaskAssigned:    "▶️ ",
	bus.EventTaskCompleted:   "✅",
	bus.EventDocumentUpdated: "📝",
	bus.EventArtifactCreated: "📦",
	bus.EventGuidelineAdded:  "📚",
	bus.EventHelpRequested:   "🙋",
}

// Streamer subscribes to every event type on a bus and renders events as
// they are drained.
type Streamer struct {
	bus    *bus.RedisBus
	format OutputFormat
	out    io.Writer
}

// NewStreamer wires a streamer onto the bus. Subscriptions are
// registered immediately; call Run to start draining.
func NewStreamer(b *bus.RedisBus, format OutputFormat, out io.Writer) *Streamer {
	s := &Streamer{bus: b, format: format, out: out}
	for _, t := range allEventTypes {
		s.bus.Subscribe(t, s.render)
	}
	return s
}

// Run drains the bus inbox until the context is cancelled.
func (s *Streamer) Run(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.bus.Drain(ctx)
		}
	}
}

func (s *Streamer) render(e *bus.Event) {
	fmt.Fprintln(s.out, FormatEvent(e, s.format))
}

// FormatEvent renders one event in the requested format.
func FormatEvent(e *bus.Event, format OutputFormat) string {
	if format == OutputFormatJSON {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Sprintf(`{"error":%q}`, err.Error())
		}
		return string(data)
	}

	glyph, ok := eventGlyphs[e.Type]
	if !ok {
		glyph = "•"
	}

	return fmt.Sprintf("%s %s %-18s %s %s",
		e.Timestamp.Local().Format("15:04:05"),
		glyph,
		e.Type,
		e.EmittedBy,
		summarize(e),
	)
}

// summarize extracts the human-interesting part of each payload.
func summarize(e *bus.Event) string {
	switch p := e.Payload.(type) {
	case bus.ProjectCreatedPayload:
		if p.Goal != "" {
			return fmt.Sprintf("%q → %s", p.Goal, p.ProjectID)
		}
		return p.ProjectID
	case bus.PhaseChangedPayload:
		return fmt.Sprintf("%s → %s", p.Previous, p.Current)
	case bus.TaskPayload:
		if e.Type == bus.EventTaskCompleted && !p.Succeeded {
			return fmt.Sprintf("%q (failed)", p.Task)
		}
		return fmt.Sprintf("%q", p.Task)
	case bus.DocumentUpdatedPayload:
		return p.Name
	case bus.ArtifactCreatedPayload:
		return p.Name
	case bus.GuidelineAddedPayload:
		return fmt.Sprintf("%q: %s", p.Trigger, p.Rule)
	case bus.HelpRequestedPayload:
		return fmt.Sprintf("needs %s", p.Needs)
	default:
		return ""
	}
}

// Recap renders the most recent n events from a history buffer, oldest
// first.
func Recap(h *bus.History, n int, format OutputFormat, out io.Writer) {
	events := h.Recent(n)
	if len(events) == 0 {
		return
	}

	if format == OutputFormatDefault {
		fmt.Fprintf(out, "\nLast %d events:\n", len(events))
	}
	for _, e := range events {
		fmt.Fprintln(out, FormatEvent(e, format))
	}
}
