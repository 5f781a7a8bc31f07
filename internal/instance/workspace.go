package instance

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/docker/docker/client"

	dockerpkg "github.com/dyluth/warren/internal/docker"
)

// CanonicalWorkspacePath resolves the Git repository root of the current
// directory to an absolute, symlink-free path. That path identifies the
// workspace for collision detection and agent mounts.
func CanonicalWorkspacePath() (string, error) {
	output, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git root: %w", err)
	}

	gitRoot := strings.TrimSpace(string(output))

	realPath, err := filepath.EvalSymlinks(gitRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}

	absPath, err := filepath.Abs(realPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	return absPath, nil
}

// Collision records another instance already bound to a workspace.
type Collision struct {
	InstanceName  string
	WorkspacePath string
	ContainerID   string
}

// CheckWorkspaceCollision reports whether another instance (excluding
// currentInstanceName) already runs against the given workspace path.
// Returns nil when the workspace is free.
func CheckWorkspaceCollision(ctx context.Context, cli *client.Client, workspacePath, currentInstanceName string) (*Collision, error) {
	containers, err := listWarrenContainers(ctx, cli, nil)
	if err != nil {
		return nil, err
	}

	for _, c := range containers {
		instanceName := c.Labels[dockerpkg.LabelInstanceName]
		if instanceName == currentInstanceName {
			continue
		}
		if c.Labels[dockerpkg.LabelWorkspacePath] == workspacePath {
			return &Collision{
				InstanceName:  instanceName,
				WorkspacePath: c.Labels[dockerpkg.LabelWorkspacePath],
				ContainerID:   c.ID,
			}, nil
		}
	}

	return nil, nil
}

// InferFromWorkspace resolves which instance runs against the current
// Git workspace. Fails with guidance when zero or multiple instances
// match.
func InferFromWorkspace(ctx context.Context, cli *client.Client) (string, error) {
	workspacePath, err := CanonicalWorkspacePath()
	if err != nil {
		return "", fmt.Errorf("not in a Git repository")
	}

	containers, err := listWarrenContainers(ctx, cli, nil)
	if err != nil {
		return "", err
	}

	var matches []string
	seen := make(map[string]bool)
	for _, c := range containers {
		if c.Labels[dockerpkg.LabelWorkspacePath] != workspacePath {
			continue
		}
		name := c.Labels[dockerpkg.LabelInstanceName]
		if !seen[name] {
			seen[name] = true
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no Warren instances found for this workspace")
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("multiple instances found for this workspace, use --name to specify which one")
	}
}
