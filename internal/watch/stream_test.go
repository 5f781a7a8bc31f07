package watch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/pkg/bus"
)

func sampleEvent(t bus.EventType, p bus.Payload) *bus.Event {
	return &bus.Event{
		ID:        "evt-1",
		Type:      t,
		EmittedBy: "builder",
		Payload:   p,
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
	}
}

func TestFormatEvent_Default(t *testing.T) {
	e := sampleEvent(bus.EventTaskAssigned, bus.TaskPayload{
		ProjectID: "p1",
		Role:      "builder",
		Task:      "write the parser",
	})

	line := FormatEvent(e, OutputFormatDefault)
	assert.Contains(t, line, "task.assigned")
	assert.Contains(t, line, "builder")
	assert.Contains(t, line, `"write the parser"`)
}

func TestFormatEvent_FailedTask(t *testing.T) {
	e := sampleEvent(bus.EventTaskCompleted, bus.TaskPayload{
		Task:      "write the parser",
		Succeeded: false,
	})

	line := FormatEvent(e, OutputFormatDefault)
	assert.Contains(t, line, "(failed)")
}

func TestFormatEvent_PhaseChange(t *testing.T) {
	e := sampleEvent(bus.EventPhaseChanged, bus.PhaseChangedPayload{
		Previous: "ideation",
		Current:  "requirements",
	})

	line := FormatEvent(e, OutputFormatDefault)
	assert.Contains(t, line, "ideation → requirements")
}

func TestFormatEvent_JSON(t *testing.T) {
	e := sampleEvent(bus.EventArtifactCreated, bus.ArtifactCreatedPayload{
		ProjectID: "p1",
		Name:      "builder-output",
	})

	line := FormatEvent(e, OutputFormatJSON)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, "artifact.created", decoded["type"])
	assert.Equal(t, "builder", decoded["emitted_by"])
}

func TestRecap(t *testing.T) {
	h := bus.NewHistory(8)
	h.Record(sampleEvent(bus.EventTaskAssigned, bus.TaskPayload{Task: "one"}))
	h.Record(sampleEvent(bus.EventTaskCompleted, bus.TaskPayload{Task: "one", Succeeded: true}))
	h.Record(sampleEvent(bus.EventTaskAssigned, bus.TaskPayload{Task: "two"}))

	var sb strings.Builder
	Recap(h, 2, OutputFormatDefault, &sb)

	out := sb.String()
	assert.Contains(t, out, "Last 2 events")
	assert.Contains(t, out, `"two"`)
	// Header plus two event lines; the oldest assignment fell outside
	// the recap window.
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
}

func TestRecap_EmptyHistory(t *testing.T) {
	var sb strings.Builder
	Recap(bus.NewHistory(4), 5, OutputFormatDefault, &sb)
	assert.Empty(t, sb.String())
}
