//go:build integration

package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dyluth/warren/internal/coordinator"
	"github.com/dyluth/warren/internal/sandbox"
	"github.com/dyluth/warren/pkg/bus"
	"github.com/dyluth/warren/pkg/project"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisURL := fmt.Sprintf("redis://%s:%s", host, port.Port())

	cleanup := func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}

	return redisURL, cleanup
}

// stubRunner stands in for the Docker sandbox so the test covers the
// Redis-backed store and bus without a second daemon dependency.
type stubRunner struct{}

func (stubRunner) Run(ctx context.Context, spec sandbox.Spec) sandbox.Result {
	return sandbox.Result{Stdout: "done\n", ExitCode: 0}
}

// TestCoordinator_DrivesProjectOverRedis runs the queue-promote-execute
// cycle against a real Redis: task seeded through the store, coordinator
// ticking with a RedisBus inbox, artifact verified through a fresh
// store handle.
func TestCoordinator_DrivesProjectOverRedis(t *testing.T) {
	redisURL, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}

	store := project.NewRedisStore(opts)
	defer store.Close()

	mem, err := project.Create(ctx, store, "integration", "")
	if err != nil {
		t.Fatalf("Failed to create project: %v", err)
	}

	if err := mem.UpdateAgentContext(ctx, "builder", project.AgentContextPatch{
		NextTasks: project.Tasks("compile everything"),
	}); err != nil {
		t.Fatalf("Failed to queue task: %v", err)
	}

	eventBus, err := bus.NewRedisBus(opts, "test-instance", bus.NewHistory(bus.DefaultHistorySize))
	if err != nil {
		t.Fatalf("Failed to create event bus: %v", err)
	}
	defer eventBus.Close()

	if err := eventBus.Start(ctx); err != nil {
		t.Fatalf("Failed to subscribe to events: %v", err)
	}

	coord := coordinator.New(mem, coordinator.Options{
		TickInterval: 50 * time.Millisecond,
		Inbox:        eventBus,
	})

	worker, err := coordinator.NewScriptWorker(mem, eventBus, stubRunner{}, coordinator.ScriptWorkerConfig{
		Role:    "builder",
		Image:   "busybox",
		Command: "echo done",
	})
	if err != nil {
		t.Fatalf("Failed to create worker: %v", err)
	}
	if err := coord.Register(ctx, worker); err != nil {
		t.Fatalf("Failed to register worker: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- coord.Run(ctx)
	}()

	// Verify through a fresh handle so the assertion covers what Redis
	// holds, not this process's working copy.
	var verified bool
	for i := 0; i < 50; i++ {
		reopened, err := project.Open(ctx, store, mem.ProjectID(), "")
		if err != nil {
			t.Fatalf("Failed to reopen project: %v", err)
		}
		snap := reopened.Snapshot()
		if artifact, ok := snap.Artifacts["builder-output"]; ok {
			if artifact.Content != "done\n" {
				t.Errorf("Expected artifact content %q, got %q", "done\n", artifact.Content)
			}
			if snap.Agents["builder"].Current.Working() {
				t.Error("Task pointer was not cleared after execution")
			}
			verified = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !verified {
		t.Fatal("Artifact was not persisted within timeout")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Coordinator returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Coordinator did not shut down within timeout")
	}
}
