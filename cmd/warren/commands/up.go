package commands

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/config"
	dockerpkg "github.com/dyluth/warren/internal/docker"
	"github.com/dyluth/warren/internal/git"
	"github.com/dyluth/warren/internal/instance"
	"github.com/dyluth/warren/internal/printer"
)

const (
	defaultRedisImage       = "redis:7-alpine"
	defaultCoordinatorImage = "warren-coordinator:latest"
)

var (
	upInstanceName string
	upForce        bool
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start a Warren instance",
	Long: `Start a new Warren instance in the current Git repository.

Creates and starts:
  • Isolated Docker network
  • Redis container (project memory and event bus)
  • Coordinator container (scheduler)

The instance name is auto-generated (default-N) unless specified with --name.
Workspace safety checks prevent multiple instances on the same directory unless --force is used.`,
	RunE: runUp,
}

func init() {
	upCmd.Flags().StringVar(&upInstanceName, "name", "", "Instance name (auto-generated if omitted)")
	upCmd.Flags().BoolVar(&upForce, "force", false, "Bypass workspace collision check")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	checker := git.NewChecker()
	if err := checker.ValidateGitContext(); err != nil {
		return printer.Error(
			"not ready to start",
			err.Error(),
			[]string{"Run these in order:\n  1. git init\n  2. warren init\n  3. warren up"},
		)
	}

	cfg, err := config.Load("warren.yml")
	if err != nil {
		return printer.Error(
			"warren.yml not found or invalid",
			fmt.Sprintf("Error details: %v", err),
			[]string{"Initialize your project first:\n  warren init\n\nThen retry: warren up"},
		)
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	// Instance name determination
	targetInstanceName := upInstanceName
	if targetInstanceName == "" {
		targetInstanceName, err = instance.GenerateDefaultName(ctx, cli)
		if err != nil {
			return fmt.Errorf("failed to generate instance name: %w", err)
		}
	}

	if err := instance.ValidateName(targetInstanceName); err != nil {
		return err
	}

	nameCollision, err := instance.CheckNameCollision(ctx, cli, targetInstanceName)
	if err != nil {
		return err
	}
	if nameCollision {
		return printer.Error(
			fmt.Sprintf("instance '%s' already exists", targetInstanceName),
			"Found existing containers with this instance name.",
			[]string{
				fmt.Sprintf("Stop the existing instance: warren down --name %s", targetInstanceName),
				"Choose a different name: warren up --name other-name",
			},
		)
	}

	// Workspace safety check
	workspacePath, err := instance.CanonicalWorkspacePath()
	if err != nil {
		return fmt.Errorf("failed to get workspace path: %w", err)
	}

	if !upForce {
		collision, err := instance.CheckWorkspaceCollision(ctx, cli, workspacePath, targetInstanceName)
		if err != nil {
			return fmt.Errorf("failed to check workspace collision: %w", err)
		}
		if collision != nil {
			return printer.ErrorWithContext(
				"workspace in use",
				fmt.Sprintf("Another instance '%s' is already running on this workspace.", collision.InstanceName),
				map[string]string{
					"Workspace": collision.WorkspacePath,
					"Instance":  collision.InstanceName,
				},
				[]string{
					fmt.Sprintf("Stop the other instance: warren down --name %s", collision.InstanceName),
					"Use --force to bypass this check (not recommended)",
				},
			)
		}
	}

	// Resource creation with rollback on partial failure
	runID := dockerpkg.GenerateRunID()
	if err := createInstance(ctx, cli, cfg, targetInstanceName, runID, workspacePath); err != nil {
		printer.Warning("\nResource creation failed. Rolling back...\n")
		if rollbackErr := rollbackInstance(ctx, cli, targetInstanceName); rollbackErr != nil {
			printer.Warning("rollback encountered errors: %v\n", rollbackErr)
		}
		return fmt.Errorf("failed to create instance: %w", err)
	}

	printUpSuccess(targetInstanceName, workspacePath)
	return nil
}

func createInstance(ctx context.Context, cli *client.Client, cfg *config.WarrenConfig, instanceName, runID, workspacePath string) error {
	// Step 1: Allocate Redis port
	redisPort, err := instance.FindNextAvailablePort(ctx, cli)
	if err != nil {
		return fmt.Errorf("failed to allocate Redis port: %w", err)
	}
	printer.Success("Allocated Redis port: %d\n", redisPort)

	// Step 2: Create isolated network
	networkName := dockerpkg.NetworkName(instanceName)
	_, err = cli.NetworkCreate(ctx, networkName, types.NetworkCreate{
		Driver: "bridge",
		Labels: dockerpkg.BuildLabels(instanceName, runID, workspacePath, ""),
	})
	if err != nil {
		return fmt.Errorf("failed to create network '%s': %w", networkName, err)
	}
	printer.Success("Created network: %s\n", networkName)

	// Step 3: Start Redis with the port published on loopback
	redisImage := defaultRedisImage
	if cfg.Services != nil && cfg.Services.Redis != nil && cfg.Services.Redis.Image != "" {
		redisImage = cfg.Services.Redis.Image
	}

	redisName := dockerpkg.RedisContainerName(instanceName)
	redisLabels := dockerpkg.BuildLabels(instanceName, runID, workspacePath, "redis")
	redisLabels[dockerpkg.LabelRedisPort] = fmt.Sprintf("%d", redisPort)

	redisResp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:  redisImage,
		Labels: redisLabels,
		ExposedPorts: nat.PortSet{
			"6379/tcp": struct{}{},
		},
	}, &container.HostConfig{
		NetworkMode: container.NetworkMode(networkName),
		PortBindings: nat.PortMap{
			"6379/tcp": []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: fmt.Sprintf("%d", redisPort),
				},
			},
		},
	}, nil, nil, redisName)
	if err != nil {
		return fmt.Errorf("failed to create Redis container: %w", err)
	}

	if err := cli.ContainerStart(ctx, redisResp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start Redis container: %w", err)
	}
	printer.Success("Started Redis container: %s (port %d)\n", redisName, redisPort)

	// Step 4: Start the coordinator. The image must already exist
	// locally or be pullable; 'warren up' does not build it.
	coordinatorImage := defaultCoordinatorImage
	if cfg.Services != nil && cfg.Services.Coordinator != nil && cfg.Services.Coordinator.Image != "" {
		coordinatorImage = cfg.Services.Coordinator.Image
	}

	coordinatorName := dockerpkg.CoordinatorContainerName(instanceName)

	// Redis container name doubles as its DNS name on the instance network.
	redisURL := fmt.Sprintf("redis://%s:6379", redisName)

	coordinatorResp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:  coordinatorImage,
		Labels: dockerpkg.BuildLabels(instanceName, runID, workspacePath, "coordinator"),
		Env: []string{
			fmt.Sprintf("WARREN_INSTANCE_NAME=%s", instanceName),
			fmt.Sprintf("REDIS_URL=%s", redisURL),
		},
	}, &container.HostConfig{
		NetworkMode: container.NetworkMode(networkName),
		Binds: []string{
			fmt.Sprintf("%s:/workspace:ro", workspacePath),
			// The coordinator launches sandbox containers on the host daemon.
			"/var/run/docker.sock:/var/run/docker.sock",
		},
	}, nil, nil, coordinatorName)
	if err != nil {
		return fmt.Errorf("failed to create coordinator container: %w", err)
	}

	if err := cli.ContainerStart(ctx, coordinatorResp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start coordinator container: %w", err)
	}
	printer.Success("Started coordinator container: %s\n", coordinatorName)

	return nil
}

func rollbackInstance(ctx context.Context, cli *client.Client, instanceName string) error {
	timeout := 10

	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", fmt.Sprintf("%s=%s", dockerpkg.LabelInstanceName, instanceName)),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	for _, c := range containers {
		printer.Step("Stopping %s...\n", c.Names[0])
		_ = cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout})

		printer.Step("Removing %s...\n", c.Names[0])
		if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			printer.Warning("failed to remove %s: %v\n", c.Names[0], err)
		}
	}

	networks, err := cli.NetworkList(ctx, types.NetworkListOptions{
		Filters: filters.NewArgs(
			filters.Arg("label", fmt.Sprintf("%s=%s", dockerpkg.LabelInstanceName, instanceName)),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to list networks: %w", err)
	}

	for _, net := range networks {
		printer.Step("Removing network %s...\n", net.Name)
		if err := cli.NetworkRemove(ctx, net.ID); err != nil {
			printer.Warning("failed to remove network %s: %v\n", net.Name, err)
		}
	}

	return nil
}

func printUpSuccess(instanceName, workspacePath string) {
	printer.Success("\nInstance '%s' started successfully\n\n", instanceName)
	printer.Info("Containers:\n")
	printer.Info("  • %s (running)\n", dockerpkg.RedisContainerName(instanceName))
	printer.Info("  • %s (running)\n", dockerpkg.CoordinatorContainerName(instanceName))
	printer.Info("\nNetwork:\n")
	printer.Info("  • %s\n", dockerpkg.NetworkName(instanceName))
	printer.Info("\nWorkspace: %s\n", workspacePath)
	printer.Info("\nNext steps:\n")
	printer.Info("  1. Run 'warren kindle --goal \"your goal\"' to seed a project\n")
	printer.Info("  2. Run 'warren watch' to monitor activity\n")
	printer.Info("  3. Run 'warren down --name %s' when finished\n", instanceName)
}
