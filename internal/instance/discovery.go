package instance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"

	dockerpkg "github.com/dyluth/warren/internal/docker"
)

// Status represents the health of one Warren instance.
type Status string

const (
	// StatusRunning indicates all containers are running
	StatusRunning Status = "Running"

	// StatusDegraded indicates some containers are stopped or missing
	StatusDegraded Status = "Degraded"

	// StatusStopped indicates all containers exist but are stopped
	StatusStopped Status = "Stopped"
)

// DetermineStatus folds a set of containers into an overall status.
func DetermineStatus(containers []types.Container) Status {
	if len(containers) == 0 {
		return StatusStopped
	}

	running := 0
	for _, c := range containers {
		if c.State == "running" {
			running++
		}
	}

	switch running {
	case len(containers):
		return StatusRunning
	case 0:
		return StatusStopped
	default:
		return StatusDegraded
	}
}

// Info describes one discovered instance for display.
type Info struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Workspace string `json:"workspace"`
	RedisPort int    `json:"redis_port,omitempty"`
}

// List discovers all Warren instances on the local daemon by grouping
// containers on their instance-name label.
func List(ctx context.Context, cli *client.Client) ([]Info, error) {
	containers, err := listWarrenContainers(ctx, cli, nil)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]types.Container)
	var order []string
	for _, c := range containers {
		name := c.Labels[dockerpkg.LabelInstanceName]
		if name == "" {
			continue
		}
		if _, seen := grouped[name]; !seen {
			order = append(order, name)
		}
		grouped[name] = append(grouped[name], c)
	}

	infos := make([]Info, 0, len(order))
	for _, name := range order {
		group := grouped[name]
		info := Info{
			Name:   name,
			Status: DetermineStatus(group),
		}
		for _, c := range group {
			if info.Workspace == "" {
				info.Workspace = c.Labels[dockerpkg.LabelWorkspacePath]
			}
			if portStr, ok := c.Labels[dockerpkg.LabelRedisPort]; ok {
				if port, err := strconv.Atoi(portStr); err == nil {
					info.RedisPort = port
				}
			}
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// RedisPort reads the published Redis port for an instance from the
// Redis container's labels.
func RedisPort(ctx context.Context, cli *client.Client, instanceName string) (int, error) {
	containers, err := listWarrenContainers(ctx, cli, map[string]string{
		dockerpkg.LabelInstanceName: instanceName,
		dockerpkg.LabelComponent:    "redis",
	})
	if err != nil {
		return 0, err
	}

	if len(containers) == 0 {
		return 0, fmt.Errorf("Redis container not found for instance '%s'", instanceName)
	}

	portStr, ok := containers[0].Labels[dockerpkg.LabelRedisPort]
	if !ok {
		return 0, fmt.Errorf("Redis port label missing for instance '%s'", instanceName)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid Redis port '%s': %w", portStr, err)
	}

	return port, nil
}

// VerifyRunning checks that an instance's essential containers (Redis
// and coordinator) exist and are running. Agent work happens in
// ephemeral sandbox containers, so only the long-lived services are
// checked.
func VerifyRunning(ctx context.Context, cli *client.Client, instanceName string) error {
	containers, err := listWarrenContainers(ctx, cli, map[string]string{
		dockerpkg.LabelInstanceName: instanceName,
	})
	if err != nil {
		return err
	}

	if len(containers) == 0 {
		return fmt.Errorf("instance '%s' not found", instanceName)
	}

	essential := map[string]bool{
		"redis":       false,
		"coordinator": false,
	}

	for _, c := range containers {
		component := c.Labels[dockerpkg.LabelComponent]
		if _, isEssential := essential[component]; !isEssential {
			continue
		}
		essential[component] = true
		if c.State != "running" {
			return fmt.Errorf("instance '%s' is not running (component '%s' is %s)", instanceName, component, c.State)
		}
	}

	for component, found := range essential {
		if !found {
			return fmt.Errorf("instance '%s' is missing essential component '%s'", instanceName, component)
		}
	}

	return nil
}
