package coordinator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dyluth/warren/internal/sandbox"
	"github.com/dyluth/warren/pkg/bus"
	"github.com/dyluth/warren/pkg/project"
)

// ScriptRunner executes one container run. *sandbox.Runner satisfies it;
// tests substitute a fake.
type ScriptRunner interface {
	Run(ctx context.Context, spec sandbox.Spec) sandbox.Result
}

// ScriptWorkerConfig describes one roster entry backed by a container
// image and shell command.
type ScriptWorkerConfig struct {
	Role    string
	Image   string
	Command string

	// WorkDir is the host directory mounted into the container.
	WorkDir string

	// Timeout bounds each run; zero selects the sandbox default.
	Timeout time.Duration

	// NetworkEnabled opts the container into network access. Off by
	// default: most scripts only touch the mounted workspace.
	NetworkEnabled bool
}

// ScriptWorker is a mechanical worker: it holds no decision logic of its
// own. Idle with queued tasks, it promotes the head task to its pointer.
// Working, it runs its configured script in the sandbox, records stdout
// as a code artifact, appends a failure guideline on non-zero exit, and
// clears the pointer. One pointer transition per Act.
type ScriptWorker struct {
	role    string
	image   string
	command string
	workDir string
	timeout time.Duration
	network bool

	memory *project.Memory
	bus    bus.Bus
	runner ScriptRunner
}

// NewScriptWorker builds a worker for one roster entry. The runner may
// be nil when no container runtime is available; runs then fail with a
// structured result instead of panicking.
func NewScriptWorker(memory *project.Memory, b bus.Bus, runner ScriptRunner, cfg ScriptWorkerConfig) (*ScriptWorker, error) {
	if cfg.Role == "" {
		return nil, fmt.Errorf("script worker role cannot be empty")
	}
	if cfg.Image == "" {
		return nil, fmt.Errorf("script worker %q: image cannot be empty", cfg.Role)
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("script worker %q: command cannot be empty", cfg.Role)
	}
	return &ScriptWorker{
		role:    cfg.Role,
		image:   cfg.Image,
		command: cfg.Command,
		workDir: cfg.WorkDir,
		timeout: cfg.Timeout,
		network: cfg.NetworkEnabled,
		memory:  memory,
		bus:     b,
		runner:  runner,
	}, nil
}

// Role returns the roster role this worker is responsible for.
func (w *ScriptWorker) Role() string {
	return w.role
}

// Initialize is a no-op: the worker reads all of its inputs from the
// project snapshot each Act, so it has no subscriptions to wire.
func (w *ScriptWorker) Initialize(ctx context.Context) error {
	return nil
}

// Act performs at most one pointer transition: promote a queued task, or
// execute the current one.
func (w *ScriptWorker) Act(ctx context.Context) (bool, error) {
	snap := w.memory.Snapshot()
	agent, ok := snap.Agents[w.role]
	if !ok || agent == nil {
		return false, nil
	}

	if agent.Current.Working() {
		return true, w.execute(ctx, agent.Current.Task())
	}

	if len(agent.NextTasks) == 0 {
		return false, nil
	}
	return true, w.promote(ctx, agent.NextTasks)
}

// promote moves the head of the queue onto the task pointer.
func (w *ScriptWorker) promote(ctx context.Context, queue []string) error {
	task := queue[0]
	rest := append([]string{}, queue[1:]...)

	err := w.memory.UpdateAgentContext(ctx, w.role, project.AgentContextPatch{
		Current:   project.Pointer(project.WorkingOn(task)),
		NextTasks: &rest,
	})
	if err != nil {
		return fmt.Errorf("failed to promote task for %q: %w", w.role, err)
	}

	w.emit(bus.EventTaskAssigned, bus.TaskPayload{
		ProjectID: w.memory.ProjectID(),
		Role:      w.role,
		Task:      task,
	})
	return nil
}

// execute runs the configured script against the current task, records
// the outcome, and returns the pointer to idle. The sandbox run blocks
// the tick on purpose: backpressure keeps one script in flight.
func (w *ScriptWorker) execute(ctx context.Context, task string) error {
	result := w.run(ctx, task)

	if result.OK() {
		name := w.role + "-output"
		err := w.memory.UpdateArtifact(ctx, name, project.ArtifactPatch{
			Content:   project.String(result.Stdout),
			Summary:   project.String(task),
			UpdatedBy: project.String(w.role),
		})
		if err != nil {
			return fmt.Errorf("failed to record artifact for %q: %w", w.role, err)
		}
		w.emit(bus.EventArtifactCreated, bus.ArtifactCreatedPayload{
			ProjectID: w.memory.ProjectID(),
			Name:      name,
		})
	} else {
		g := project.Guideline{
			Trigger:   task,
			Condition: firstLine(result.Stderr),
			Rule:      fmt.Sprintf("command %q exited %d for role %s", w.command, result.ExitCode, w.role),
		}
		if err := w.memory.AddGuideline(ctx, g); err != nil {
			log.Printf("[WARN] worker %q: discarding guideline: %v", w.role, err)
		} else {
			w.emit(bus.EventGuidelineAdded, bus.GuidelineAddedPayload{
				ProjectID: w.memory.ProjectID(),
				Trigger:   g.Trigger,
				Rule:      g.Rule,
			})
		}
	}

	err := w.memory.UpdateAgentContext(ctx, w.role, project.AgentContextPatch{
		Current: project.Pointer(project.Idle()),
	})
	if err != nil {
		return fmt.Errorf("failed to clear task pointer for %q: %w", w.role, err)
	}

	w.emit(bus.EventTaskCompleted, bus.TaskPayload{
		ProjectID: w.memory.ProjectID(),
		Role:      w.role,
		Task:      task,
		Succeeded: result.OK(),
	})
	return nil
}

// run invokes the sandbox, exposing the task to the script as $TASK.
func (w *ScriptWorker) run(ctx context.Context, task string) sandbox.Result {
	if w.runner == nil {
		return sandbox.Result{ExitCode: -1, Stderr: "container runtime unavailable"}
	}

	return w.runner.Run(ctx, sandbox.Spec{
		Image:          w.image,
		Command:        fmt.Sprintf("TASK=%s; export TASK; %s", shellQuote(task), w.command),
		WorkDir:        w.workDir,
		Timeout:        w.timeout,
		NetworkEnabled: w.network,
	})
}

// emit publishes best-effort; a bus failure never fails the action.
func (w *ScriptWorker) emit(t bus.EventType, p bus.Payload) {
	if w.bus == nil {
		return
	}
	if _, err := w.bus.Emit(t, w.role, p); err != nil {
		log.Printf("[WARN] worker %q: failed to emit %s: %v", w.role, t, err)
	}
}

// shellQuote wraps s in single quotes, escaping embedded quotes so the
// value survives /bin/sh -c verbatim.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// firstLine truncates multi-line stderr to its first line for the
// guideline ledger.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
