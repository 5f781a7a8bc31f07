package docker

import (
	"context"
	"fmt"
	"log"

	"github.com/docker/docker/client"
)

// NewClient creates a Docker client and verifies the daemon is reachable.
// Returns an error if the Docker daemon is not running or not accessible.
func NewClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf(`Docker daemon not accessible: %w

Ensure Docker is running:
  • macOS: Docker Desktop
  • Linux: sudo systemctl start docker`, err)
	}

	return cli, nil
}

// TryClient creates a Docker client if the daemon is reachable, or
// returns nil with a logged warning. The coordinator uses this to
// degrade gracefully: without Docker the sandbox is unavailable but
// scheduling continues.
func TryClient(ctx context.Context) *client.Client {
	cli, err := NewClient(ctx)
	if err != nil {
		log.Printf("[WARN] Docker unavailable, sandbox execution disabled: %v", err)
		return nil
	}
	return cli
}
