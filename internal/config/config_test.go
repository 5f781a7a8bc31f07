package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "warren.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
agents:
  planner:
    role: "planner"
    image: "warren-planner:latest"
    command: "./plan.sh"
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.NotNil(t, config)
	assert.Equal(t, "1.0", config.Version)
	assert.Len(t, config.Agents, 1)
	assert.Equal(t, "planner", config.Agents["planner"].Role)
	assert.Equal(t, "./plan.sh", config.Agents["planner"].Command)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/warren.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
agents:
  - this is invalid
    yaml syntax
`)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	configPath := writeConfig(t, `version: "2.0"
agents:
  planner:
    role: "planner"
    image: "warren-planner:latest"
    command: "./plan.sh"
`)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestLoad_NoAgents(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
agents: {}
`)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no agents defined")
}

func TestAgentValidate_RequiredFields(t *testing.T) {
	testCases := []struct {
		name     string
		agent    Agent
		expected string
	}{
		{
			name:     "missing role",
			agent:    Agent{Image: "img", Command: "run"},
			expected: "role is required",
		},
		{
			name:     "missing image",
			agent:    Agent{Role: "planner", Command: "run"},
			expected: "image is required",
		},
		{
			name:     "missing command",
			agent:    Agent{Role: "planner", Image: "img"},
			expected: "command is required",
		},
		{
			name:     "negative timeout",
			agent:    Agent{Role: "planner", Image: "img", Command: "run", TimeoutSeconds: -1},
			expected: "timeout_seconds",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.agent.Validate("bad-agent")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expected)
			assert.Contains(t, err.Error(), "bad-agent")
		})
	}
}

func TestValidate_DuplicateRoles(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
agents:
  planner-a:
    role: "planner"
    image: "img-a"
    command: "run"
  planner-b:
    role: "planner"
    image: "img-b"
    command: "run"
`)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate agent role 'planner'")
}

func TestValidate_WorkspacePathMustExist(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
agents:
  builder:
    role: "builder"
    image: "img"
    command: "run"
    workspace:
      path: "/nonexistent/warren-workspace"
`)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace path does not exist")
}

func TestValidate_WorkspacePathAccepted(t *testing.T) {
	workspace := t.TempDir()
	configPath := writeConfig(t, `version: "1.0"
agents:
  builder:
    role: "builder"
    image: "img"
    command: "run"
    workspace:
      path: "`+workspace+`"
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, workspace, config.Agents["builder"].WorkspacePath())
}

func TestValidate_CoordinatorDefaults(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
agents:
  planner:
    role: "planner"
    image: "img"
    command: "run"
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, config.Coordinator)
	require.NotNil(t, config.Coordinator.TickIntervalMs)
	assert.Equal(t, DefaultTickIntervalMs, *config.Coordinator.TickIntervalMs)
	assert.Equal(t, 2*time.Second, config.Coordinator.TickInterval())
}

func TestValidate_CoordinatorOverride(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
coordinator:
  tick_interval_ms: 250
agents:
  planner:
    role: "planner"
    image: "img"
    command: "run"
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, config.Coordinator.TickInterval())
}

func TestValidate_CoordinatorIntervalRejected(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
coordinator:
  tick_interval_ms: 0
agents:
  planner:
    role: "planner"
    image: "img"
    command: "run"
`)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick_interval_ms")
}

func TestAgentTimeout(t *testing.T) {
	agent := Agent{TimeoutSeconds: 30}
	assert.Equal(t, 30*time.Second, agent.Timeout())

	agent = Agent{}
	assert.Equal(t, time.Duration(0), agent.Timeout())
}

func TestServicesOverride(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
agents:
  planner:
    role: "planner"
    image: "img"
    command: "run"
services:
  redis:
    image: "redis:7.2"
  coordinator:
    image: "warren-coordinator:dev"
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, config.Services)
	assert.Equal(t, "redis:7.2", config.Services.Redis.Image)
	assert.Equal(t, "warren-coordinator:dev", config.Services.Coordinator.Image)
}
