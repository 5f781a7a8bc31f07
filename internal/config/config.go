package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTickIntervalMs is the coordinator pause between scheduling
// passes when warren.yml does not override it.
const DefaultTickIntervalMs = 2000

// CoordinatorConfig specifies coordinator behavior settings
type CoordinatorConfig struct {
	TickIntervalMs *int `yaml:"tick_interval_ms,omitempty"` // Pause between scheduling passes (default 2000)
}

// TickInterval returns the configured pause as a duration.
func (c *CoordinatorConfig) TickInterval() time.Duration {
	if c == nil || c.TickIntervalMs == nil {
		return DefaultTickIntervalMs * time.Millisecond
	}
	return time.Duration(*c.TickIntervalMs) * time.Millisecond
}

// WarrenConfig represents the top-level warren.yml configuration
type WarrenConfig struct {
	Version     string             `yaml:"version"`
	Coordinator *CoordinatorConfig `yaml:"coordinator,omitempty"`
	Agents      map[string]Agent   `yaml:"agents"`
	Services    *ServicesConfig    `yaml:"services,omitempty"`
}

// Agent represents a single roster entry: a role backed by a container
// image and shell command.
type Agent struct {
	Role           string           `yaml:"role"`
	Image          string           `yaml:"image"`   // Required: Docker image name for this agent
	Command        string           `yaml:"command"` // Required: shell command, run under /bin/sh -c
	Workspace      *WorkspaceConfig `yaml:"workspace,omitempty"`
	TimeoutSeconds int              `yaml:"timeout_seconds,omitempty"` // 0 = sandbox default
	Network        bool             `yaml:"network,omitempty"`         // Opt in to network access
}

// Timeout returns the per-run bound, zero meaning "use the default".
func (a Agent) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// WorkspaceConfig specifies workspace mount configuration
type WorkspaceConfig struct {
	Path string `yaml:"path"` // Host directory mounted into the container
}

// ServicesConfig specifies service-level overrides
type ServicesConfig struct {
	Coordinator *ServiceOverride `yaml:"coordinator,omitempty"`
	Redis       *ServiceOverride `yaml:"redis,omitempty"`
}

// ServiceOverride allows overriding default service images
type ServiceOverride struct {
	Image string `yaml:"image,omitempty"`
}

// Validate performs strict validation on the configuration
func (c *WarrenConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	// Required: at least one agent
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents defined")
	}

	// Validate each agent
	for name, agent := range c.Agents {
		if err := agent.Validate(name); err != nil {
			return err
		}
	}

	// Roles key agent contexts in project memory, so they must be unique.
	rolesSeen := make(map[string]string) // role → agentName
	for agentName, agent := range c.Agents {
		if existingAgent, exists := rolesSeen[agent.Role]; exists {
			return fmt.Errorf("duplicate agent role '%s' found (agents '%s' and '%s'): all agents must have unique roles",
				agent.Role, existingAgent, agentName)
		}
		rolesSeen[agent.Role] = agentName
	}

	// Apply default coordinator config if missing
	if c.Coordinator == nil {
		defaultInterval := DefaultTickIntervalMs
		c.Coordinator = &CoordinatorConfig{
			TickIntervalMs: &defaultInterval,
		}
	} else if c.Coordinator.TickIntervalMs == nil {
		defaultInterval := DefaultTickIntervalMs
		c.Coordinator.TickIntervalMs = &defaultInterval
	}

	if *c.Coordinator.TickIntervalMs < 1 {
		return fmt.Errorf("coordinator.tick_interval_ms must be >= 1, got %d", *c.Coordinator.TickIntervalMs)
	}

	return nil
}

// Validate performs validation on a single agent configuration
func (a *Agent) Validate(name string) error {
	// Required: role
	if a.Role == "" {
		return fmt.Errorf("agent '%s': role is required", name)
	}

	// Required: image
	if a.Image == "" {
		return fmt.Errorf("agent '%s': image is required", name)
	}

	// Required: command
	if a.Command == "" {
		return fmt.Errorf("agent '%s': command is required", name)
	}

	if a.TimeoutSeconds < 0 {
		return fmt.Errorf("agent '%s': timeout_seconds must be >= 0, got %d", name, a.TimeoutSeconds)
	}

	// If workspace.path specified, verify the directory exists
	if a.Workspace != nil && a.Workspace.Path != "" {
		info, err := os.Stat(a.Workspace.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("agent '%s': workspace path does not exist: %s", name, a.Workspace.Path)
		}
		if err == nil && !info.IsDir() {
			return fmt.Errorf("agent '%s': workspace path is not a directory: %s", name, a.Workspace.Path)
		}
	}

	return nil
}

// WorkspacePath returns the configured host directory, or "" when the
// agent runs without a mount.
func (a Agent) WorkspacePath() string {
	if a.Workspace == nil {
		return ""
	}
	return a.Workspace.Path
}

// Load reads and validates warren.yml from the specified path
func Load(path string) (*WarrenConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config WarrenConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
