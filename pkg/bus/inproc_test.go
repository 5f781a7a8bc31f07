package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessBus_DeliversInSubscriptionOrder(t *testing.T) {
	b := NewInProcessBus(nil)

	var order []string
	b.Subscribe(EventPhaseChanged, func(e *Event) {
		order = append(order, "h1")
	})
	b.Subscribe(EventPhaseChanged, func(e *Event) {
		order = append(order, "h2")
	})

	event, err := b.Emit(EventPhaseChanged, "planner", PhaseChangedPayload{
		ProjectID: "p1",
		Previous:  "ideation",
		Current:   "requirements",
	})
	require.NoError(t, err)
	require.NotNil(t, event)

	// Both handlers fired exactly once, in order, before Emit returned.
	assert.Equal(t, []string{"h1", "h2"}, order)
}

func TestInProcessBus_OnlyMatchingTypeFires(t *testing.T) {
	b := NewInProcessBus(nil)

	phaseCount := 0
	taskCount := 0
	b.Subscribe(EventPhaseChanged, func(e *Event) { phaseCount++ })
	b.Subscribe(EventTaskAssigned, func(e *Event) { taskCount++ })

	_, err := b.Emit(EventTaskAssigned, "builder", TaskPayload{
		ProjectID: "p1",
		Role:      "builder",
		Task:      "implement login form",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, phaseCount)
	assert.Equal(t, 1, taskCount)
}

func TestInProcessBus_HandlerSeesTypedPayload(t *testing.T) {
	b := NewInProcessBus(nil)

	var got *Event
	b.Subscribe(EventGuidelineAdded, func(e *Event) { got = e })

	emitted, err := b.Emit(EventGuidelineAdded, "reviewer", GuidelineAddedPayload{
		ProjectID: "p1",
		Trigger:   "deploy failure",
		Rule:      "run migrations before rollout",
	})
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, emitted.ID, got.ID)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())

	payload, ok := got.Payload.(GuidelineAddedPayload)
	require.True(t, ok, "payload should be the concrete per-type struct")
	assert.Equal(t, "run migrations before rollout", payload.Rule)
}

func TestInProcessBus_RejectsUnknownType(t *testing.T) {
	b := NewInProcessBus(nil)

	_, err := b.Emit(EventType("made.up"), "nobody", TaskPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestInProcessBus_RecordsHistory(t *testing.T) {
	history := NewHistory(4)
	b := NewInProcessBus(history)

	for i := 0; i < 6; i++ {
		_, err := b.Emit(EventTaskCompleted, "builder", TaskPayload{
			ProjectID: "p1",
			Role:      "builder",
			Task:      "task",
			Succeeded: true,
		})
		require.NoError(t, err)
	}

	// Ring buffer retains only the most recent capacity-worth of events.
	assert.Equal(t, 4, history.Len())
}
