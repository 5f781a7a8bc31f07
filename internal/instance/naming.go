package instance

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	dockerpkg "github.com/dyluth/warren/internal/docker"
)

const (
	// DefaultNamePrefix is the prefix for auto-generated instance names
	DefaultNamePrefix = "default-"

	// MaxNameLength is the maximum length for an instance name (DNS-compatible)
	MaxNameLength = 63
)

// namePattern accepts DNS-compatible names: lowercase alphanumeric with
// interior hyphens.
var namePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateName checks if an instance name is valid according to DNS naming
// rules. Instance names become container and network name suffixes, so
// they must be safe for Docker's resource naming.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("instance name cannot be empty")
	}

	if len(name) > MaxNameLength {
		return fmt.Errorf("instance name too long: %d characters (max: %d)", len(name), MaxNameLength)
	}

	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid instance name '%s': must be lowercase alphanumeric with hyphens (not at start/end)", name)
	}

	return nil
}

// GenerateDefaultName returns the next free default-N instance name by
// scanning the labels of existing Warren containers.
func GenerateDefaultName(ctx context.Context, cli *client.Client) (string, error) {
	containers, err := listWarrenContainers(ctx, cli, nil)
	if err != nil {
		return "", err
	}

	highest := 0
	for _, c := range containers {
		name := c.Labels[dockerpkg.LabelInstanceName]
		if !strings.HasPrefix(name, DefaultNamePrefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(name, DefaultNamePrefix)); err == nil && n > highest {
			highest = n
		}
	}

	return fmt.Sprintf("%s%d", DefaultNamePrefix, highest+1), nil
}

// CheckNameCollision reports whether any container already carries the
// given instance name.
func CheckNameCollision(ctx context.Context, cli *client.Client, instanceName string) (bool, error) {
	containers, err := listWarrenContainers(ctx, cli, map[string]string{
		dockerpkg.LabelInstanceName: instanceName,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check for name collision: %w", err)
	}

	return len(containers) > 0, nil
}

// listWarrenContainers returns all Warren-labeled containers, optionally
// narrowed by extra label constraints.
func listWarrenContainers(ctx context.Context, cli *client.Client, extraLabels map[string]string) ([]types.Container, error) {
	filter := filters.NewArgs()
	filter.Add("label", fmt.Sprintf("%s=true", dockerpkg.LabelProject))
	for key, value := range extraLabels {
		filter.Add("label", fmt.Sprintf("%s=%s", key, value))
	}

	containers, err := cli.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return containers, nil
}
