// Package sandbox runs untrusted, dynamically produced scripts in
// ephemeral, resource-capped Docker containers and returns structured
// results. The runner never lets an error escape its boundary: every
// failure folds into the Result, and the container is force-removed on
// every exit path.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

const (
	// ContainerWorkDir is the fixed in-container mount point for the
	// caller's working directory.
	ContainerWorkDir = "/workspace"

	// DefaultMemoryLimit caps container memory at 1 GiB — enough for a
	// headless browser or a language runtime.
	DefaultMemoryLimit = 1 << 30

	// DefaultTimeout bounds script execution when the spec does not.
	DefaultTimeout = 5 * time.Minute
)

// Spec describes one script execution.
type Spec struct {
	// Image is the container image reference (e.g. "busybox").
	Image string

	// Command is a shell command string, run under /bin/sh -c.
	Command string

	// WorkDir optionally names a host directory. If it exists it is
	// bind-mounted read/write at ContainerWorkDir and used as the
	// working directory.
	WorkDir string

	// Timeout bounds the run; zero selects DefaultTimeout. On expiry the
	// container is force-killed and the result carries TimedOut.
	Timeout time.Duration

	// NetworkEnabled opts in to network access. Disabled by default:
	// least privilege.
	NetworkEnabled bool
}

// Result is the structured outcome of one run. ExitCode is the
// authoritative success signal: -1 means the sandbox itself failed or
// timed out, anything else is the script's own exit status.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// OK reports whether the script ran and exited zero.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Runner executes sandboxed scripts on a shared Docker client. Construct
// one per process and inject it where needed; the client handle is an
// expensive, shareable resource.
type Runner struct {
	cli         *client.Client
	memoryLimit int64
}

// NewRunner creates a runner on an existing Docker client.
func NewRunner(cli *client.Client) *Runner {
	return &Runner{cli: cli, memoryLimit: DefaultMemoryLimit}
}

// NewRunnerWithMemoryLimit creates a runner with a custom memory cap in
// bytes.
func NewRunnerWithMemoryLimit(cli *client.Client, memoryLimit int64) *Runner {
	if memoryLimit <= 0 {
		memoryLimit = DefaultMemoryLimit
	}
	return &Runner{cli: cli, memoryLimit: memoryLimit}
}

// Run executes the spec and always returns a Result — errors at any
// stage are captured as ExitCode -1 with the message in Stderr, never
// propagated. The call blocks until the script exits or the deadline
// elapses; that backpressure is intentional.
func (r *Runner) Run(ctx context.Context, spec Spec) Result {
	start := time.Now()
	result := r.run(ctx, spec)
	result.Duration = time.Since(start)
	return result
}

func (r *Runner) run(ctx context.Context, spec Spec) Result {
	if spec.Image == "" {
		return failure("sandbox: image reference cannot be empty")
	}
	if spec.Command == "" {
		return failure("sandbox: command cannot be empty")
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// A missing image is a one-time delay, not a fatal error: pull and
	// follow progress to completion before creating the container.
	if err := r.ensureImage(ctx, spec.Image); err != nil {
		return failure(fmt.Sprintf("sandbox: image %s unavailable: %v", spec.Image, err))
	}

	containerID, err := r.createContainer(ctx, spec)
	if err != nil {
		return failure(fmt.Sprintf("sandbox: failed to create container: %v", err))
	}

	// Scoped-resource guarantee: no container outlives the call. Removal
	// uses a background context so cleanup survives caller cancellation.
	defer r.removeContainer(containerID)

	if err := r.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return failure(fmt.Sprintf("sandbox: failed to start container: %v", err))
	}

	exitCode, timedOut, waitErr := r.waitForExit(ctx, containerID, timeout)

	stdout, stderr := r.fetchLogs(containerID)

	if timedOut {
		return Result{
			Stdout:   stdout,
			Stderr:   fmt.Sprintf("sandbox: execution timed out after %s", timeout),
			ExitCode: -1,
			TimedOut: true,
		}
	}
	if waitErr != nil {
		return Result{
			Stdout:   stdout,
			Stderr:   fmt.Sprintf("sandbox: wait failed: %v", waitErr),
			ExitCode: -1,
		}
	}

	return Result{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}
}

// ensureImage checks for a local copy of the image and pulls it if
// absent, blocking until the pull stream completes. A failed pull is
// retried once before giving up; registry blips are common enough that
// a single failure should not fail the task.
func (r *Runner) ensureImage(ctx context.Context, imageRef string) error {
	images, err := r.cli.ImageList(ctx, types.ImageListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", imageRef)),
	})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) > 0 {
		return nil
	}

	log.Printf("[INFO] sandbox: pulling image %s", imageRef)
	if err := r.pullImage(ctx, imageRef); err != nil {
		if ctx.Err() != nil {
			return err
		}
		log.Printf("[WARN] sandbox: image pull failed, retrying once: %v", err)
		return r.pullImage(ctx, imageRef)
	}
	return nil
}

func (r *Runner) pullImage(ctx context.Context, imageRef string) error {
	reader, err := r.cli.ImagePull(ctx, imageRef, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	// The pull is complete only once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to follow image pull: %w", err)
	}
	return nil
}

// createContainer builds the ephemeral container: shell command, memory
// cap, network disabled unless requested, optional host directory mount.
func (r *Runner) createContainer(ctx context.Context, spec Spec) (string, error) {
	cfg := &container.Config{
		Image: spec.Image,
		Cmd:   []string{"/bin/sh", "-c", spec.Command},
	}

	hostCfg := &container.HostConfig{
		Resources: container.Resources{Memory: r.memoryLimit},
	}
	if !spec.NetworkEnabled {
		hostCfg.NetworkMode = "none"
	}

	if spec.WorkDir != "" {
		info, err := os.Stat(spec.WorkDir)
		if err == nil && info.IsDir() {
			hostCfg.Binds = []string{fmt.Sprintf("%s:%s", spec.WorkDir, ContainerWorkDir)}
			cfg.WorkingDir = ContainerWorkDir
		} else {
			log.Printf("[WARN] sandbox: work dir %s not found on host, running without mount", spec.WorkDir)
		}
	}

	resp, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// waitForExit blocks until the container stops or the deadline elapses.
// On timeout the container is killed so the deferred removal does not
// hang on a running container.
func (r *Runner) waitForExit(ctx context.Context, containerID string, timeout time.Duration) (exitCode int, timedOut bool, err error) {
	waitCh, errCh := r.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case body := <-waitCh:
		if body.Error != nil {
			return -1, false, fmt.Errorf("container wait: %s", body.Error.Message)
		}
		return int(body.StatusCode), false, nil

	case waitErr := <-errCh:
		return -1, false, waitErr

	case <-timer.C:
		if killErr := r.cli.ContainerKill(context.Background(), containerID, "KILL"); killErr != nil {
			log.Printf("[WARN] sandbox: failed to kill timed-out container %s: %v", containerID, killErr)
		}
		return -1, true, nil

	case <-ctx.Done():
		return -1, false, ctx.Err()
	}
}

// fetchLogs retrieves combined output and demultiplexes the runtime's
// stdout/stderr framing, leaving only printable text and newlines.
// Best-effort: a failure yields empty output, never an error.
func (r *Runner) fetchLogs(containerID string) (stdout, stderr string) {
	reader, err := r.cli.ContainerLogs(context.Background(), containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		log.Printf("[WARN] sandbox: failed to fetch logs for %s: %v", containerID, err)
		return "", ""
	}
	defer reader.Close()

	return demuxLogs(reader)
}

// removeContainer forcibly removes the container, logging (never
// returning) failures.
func (r *Runner) removeContainer(containerID string) {
	err := r.cli.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true})
	if err != nil {
		log.Printf("[WARN] sandbox: failed to remove container %s: %v", containerID, err)
	}
}

// failure builds the sandbox-fault result shape.
func failure(message string) Result {
	return Result{ExitCode: -1, Stderr: message}
}
