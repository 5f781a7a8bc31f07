package instance

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/docker/docker/client"

	dockerpkg "github.com/dyluth/warren/internal/docker"
)

// Port range for Redis containers (allows 100 concurrent instances)
const (
	startPort = 6379
	endPort   = 6478
)

// FindNextAvailablePort finds the next host port for a new Redis
// container. A port counts as taken if another instance claims it via
// label or if it cannot be bound on the host right now.
func FindNextAvailablePort(ctx context.Context, cli *client.Client) (int, error) {
	containers, err := listWarrenContainers(ctx, cli, map[string]string{
		dockerpkg.LabelComponent: "redis",
	})
	if err != nil {
		return 0, err
	}

	usedPorts := make(map[int]bool)
	for _, c := range containers {
		if portStr, ok := c.Labels[dockerpkg.LabelRedisPort]; ok {
			if port, err := strconv.Atoi(portStr); err == nil {
				usedPorts[port] = true
			}
		}
	}

	for port := startPort; port <= endPort; port++ {
		if usedPorts[port] {
			continue
		}
		if isPortBindable(port) {
			return port, nil
		}
	}

	return 0, fmt.Errorf("no available Redis ports (range %d-%d exhausted)", startPort, endPort)
}

// isPortBindable checks if a port can be bound on localhost.
func isPortBindable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// RedisHost returns the hostname that reaches an instance's published
// Redis port from the current environment. Inside a container the host's
// published ports live behind host.docker.internal.
func RedisHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// RedisURL constructs the full Redis URL for a given published port.
func RedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d", RedisHost(), port)
}
