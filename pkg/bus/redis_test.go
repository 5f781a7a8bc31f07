package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisBus creates a started RedisBus backed by miniredis.
func setupRedisBus(t *testing.T, instanceName string, history *History) (*RedisBus, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	b, err := NewRedisBus(&redis.Options{Addr: mr.Addr()}, instanceName, history)
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { b.Close() })

	return b, mr
}

// drainUntil polls Drain until at least want events were delivered or the
// deadline passes. Pub/Sub delivery crosses goroutines, so receipt is
// eventually consistent from the test's perspective.
func drainUntil(t *testing.T, b *RedisBus, want int) int {
	t.Helper()

	total := 0
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		total += b.Drain(context.Background())
		if total >= want {
			return total
		}
		time.Sleep(10 * time.Millisecond)
	}
	return total
}

func TestNewRedisBus_RejectsEmptyInstanceName(t *testing.T) {
	_, err := NewRedisBus(&redis.Options{Addr: "localhost:6379"}, "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instance name cannot be empty")
}

func TestRedisBus_SelfDelivery(t *testing.T) {
	// A node receives its own published events back through the wildcard
	// subscription. This mirrors the behaviour of the original system and
	// is deliberately not suppressed; handlers must tolerate it.
	b, _ := setupRedisBus(t, "self-delivery", nil)

	var got []*Event
	b.Subscribe(EventTaskAssigned, func(e *Event) { got = append(got, e) })

	emitted, err := b.Emit(EventTaskAssigned, "planner", TaskPayload{
		ProjectID: "p1",
		Role:      "builder",
		Task:      "scaffold repo",
	})
	require.NoError(t, err)

	delivered := drainUntil(t, b, 1)
	require.Equal(t, 1, delivered, "publisher should see its own event")
	assert.Equal(t, emitted.ID, got[0].ID)

	payload, ok := got[0].Payload.(TaskPayload)
	require.True(t, ok)
	assert.Equal(t, "scaffold repo", payload.Task)
}

func TestRedisBus_CrossNodeDelivery(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	publisher, err := NewRedisBus(&redis.Options{Addr: mr.Addr()}, "shared", nil)
	require.NoError(t, err)
	require.NoError(t, publisher.Start(context.Background()))
	t.Cleanup(func() { publisher.Close() })

	subscriber, err := NewRedisBus(&redis.Options{Addr: mr.Addr()}, "shared", nil)
	require.NoError(t, err)
	require.NoError(t, subscriber.Start(context.Background()))
	t.Cleanup(func() { subscriber.Close() })

	var got []*Event
	subscriber.Subscribe(EventPhaseChanged, func(e *Event) { got = append(got, e) })

	_, err = publisher.Emit(EventPhaseChanged, "planner", PhaseChangedPayload{
		ProjectID: "p1",
		Previous:  "design",
		Current:   "development",
	})
	require.NoError(t, err)

	delivered := drainUntil(t, subscriber, 1)
	require.Equal(t, 1, delivered)

	payload, ok := got[0].Payload.(PhaseChangedPayload)
	require.True(t, ok)
	assert.Equal(t, "development", payload.Current)
	assert.False(t, got[0].Timestamp.IsZero(), "timestamp must be rehydrated")
}

func TestRedisBus_InstanceIsolation(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	alpha, err := NewRedisBus(&redis.Options{Addr: mr.Addr()}, "alpha", nil)
	require.NoError(t, err)
	require.NoError(t, alpha.Start(context.Background()))
	t.Cleanup(func() { alpha.Close() })

	beta, err := NewRedisBus(&redis.Options{Addr: mr.Addr()}, "beta", nil)
	require.NoError(t, err)
	require.NoError(t, beta.Start(context.Background()))
	t.Cleanup(func() { beta.Close() })

	count := 0
	beta.Subscribe(EventTaskCompleted, func(e *Event) { count++ })

	_, err = alpha.Emit(EventTaskCompleted, "builder", TaskPayload{ProjectID: "p1", Role: "builder", Task: "t"})
	require.NoError(t, err)

	// Give delivery a chance, then confirm nothing crossed instances.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, beta.Drain(context.Background()))
	assert.Equal(t, 0, count)
}

func TestRedisBus_UndecodableMessagesAreSkipped(t *testing.T) {
	b, mr := setupRedisBus(t, "garbage", nil)

	count := 0
	b.Subscribe(EventTaskAssigned, func(e *Event) { count++ })

	// Raw garbage published on a matching channel must not break the
	// subscription.
	mr.Publish(EventChannel("garbage", EventTaskAssigned), "not json")

	_, err := b.Emit(EventTaskAssigned, "planner", TaskPayload{ProjectID: "p1", Role: "r", Task: "t"})
	require.NoError(t, err)

	delivered := drainUntil(t, b, 1)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, count)
}

func TestRedisBus_DrainRecordsHistory(t *testing.T) {
	history := NewHistory(8)
	b, _ := setupRedisBus(t, "hist", history)

	_, err := b.Emit(EventDocumentUpdated, "designer", DocumentUpdatedPayload{
		ProjectID: "p1",
		Name:      "prd",
	})
	require.NoError(t, err)

	drainUntil(t, b, 1)
	assert.Equal(t, 1, history.Len())
}
