package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/coordinator"
	"github.com/dyluth/warren/internal/docker"
	"github.com/dyluth/warren/internal/sandbox"
	"github.com/dyluth/warren/pkg/bus"
	"github.com/dyluth/warren/pkg/project"
)

const configPath = "/workspace/warren.yml"

func main() {
	// 1. Load environment variables
	instanceName := os.Getenv("WARREN_INSTANCE_NAME")
	redisURL := os.Getenv("REDIS_URL")

	if instanceName == "" || redisURL == "" {
		fmt.Fprintf(os.Stderr, "Error: WARREN_INSTANCE_NAME and REDIS_URL must be set\n")
		os.Exit(1)
	}

	// 2. Parse Redis URL
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid REDIS_URL: %v\n", err)
		os.Exit(1)
	}

	// 3. Create the project store and verify Redis connectivity
	store := project.NewRedisStore(redisOpts)
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Redis not accessible: %v\n", err)
		os.Exit(1)
	}

	// 4. Load warren.yml configuration from the workspace
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load warren.yml: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Coordinator starting for instance '%s' with %d agents\n", instanceName, len(cfg.Agents))

	// 5. Setup graceful shutdown
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		fmt.Printf("Received signal %v, shutting down gracefully...\n", sig)
		cancel()
	}()

	// 6. Connect the event bus
	eventBus, err := bus.NewRedisBus(redisOpts, instanceName, bus.NewHistory(bus.DefaultHistorySize))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create event bus: %v\n", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	if err := eventBus.Start(runCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to subscribe to events: %v\n", err)
		os.Exit(1)
	}

	// 7. Docker client for the sandbox. Optional: without it, script runs
	// fail with structured results instead of crashing the scheduler.
	dockerClient := docker.TryClient(ctx)
	if dockerClient != nil {
		defer dockerClient.Close()
	}
	var runner *sandbox.Runner
	if dockerClient != nil {
		runner = sandbox.NewRunner(dockerClient)
	}

	// 8. Wait for a project to drive
	mem, err := waitForProject(runCtx, store, cfg.Coordinator.TickInterval())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if mem == nil {
		// Cancelled before any project appeared.
		fmt.Println("Coordinator stopped")
		return
	}

	fmt.Printf("Coordinator driving project '%s'\n", mem.ProjectID())

	// 9. Build the roster and run the loop
	coord := coordinator.New(mem, coordinator.Options{
		TickInterval: cfg.Coordinator.TickInterval(),
		Inbox:        eventBus,
	})

	for _, name := range sortedAgentNames(cfg.Agents) {
		agent := cfg.Agents[name]
		var schedRunner coordinator.ScriptRunner
		if runner != nil {
			schedRunner = runner
		}
		worker, err := coordinator.NewScriptWorker(mem, eventBus, schedRunner, coordinator.ScriptWorkerConfig{
			Role:           agent.Role,
			Image:          agent.Image,
			Command:        agent.Command,
			WorkDir:        agent.WorkspacePath(),
			Timeout:        agent.Timeout(),
			NetworkEnabled: agent.Network,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := coord.Register(runCtx, worker); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := coord.Run(runCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Coordinator error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Coordinator stopped")
}

// waitForProject blocks until a project exists in the store, then opens
// the most recently updated one. WARREN_PROJECT_ID pins a specific
// project instead. Returns nil without error if the context is cancelled
// before a project appears.
func waitForProject(ctx context.Context, store project.Store, pollInterval time.Duration) (*project.Memory, error) {
	if id := os.Getenv("WARREN_PROJECT_ID"); id != "" {
		mem, err := project.Open(ctx, store, id, "")
		if err != nil {
			return nil, fmt.Errorf("failed to open project '%s': %w", id, err)
		}
		return mem, nil
	}

	for {
		summaries, err := store.List(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}

		if len(summaries) > 0 {
			newest := summaries[0]
			for _, s := range summaries[1:] {
				if s.LastUpdatedMs > newest.LastUpdatedMs {
					newest = s
				}
			}
			mem, err := project.Open(ctx, store, newest.ID, "")
			if err != nil {
				return nil, fmt.Errorf("failed to open project '%s': %w", newest.ID, err)
			}
			return mem, nil
		}

		fmt.Println("No projects yet; waiting for 'warren kindle'")
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(pollInterval):
		}
	}
}

// sortedAgentNames fixes the roster traversal order: map iteration is
// random, scheduling must not be.
func sortedAgentNames(agents map[string]config.Agent) []string {
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
