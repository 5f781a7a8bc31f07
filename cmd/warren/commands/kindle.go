package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	dockerpkg "github.com/dyluth/warren/internal/docker"
	"github.com/dyluth/warren/internal/git"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/bus"
	"github.com/dyluth/warren/pkg/project"
)

var (
	kindleInstanceName string
	kindleGoal         string
	kindleProjectName  string
	kindleOwner        string
	kindleRole         string
)

var kindleCmd = &cobra.Command{
	Use:   "kindle",
	Short: "Create a new project by submitting a goal",
	Long: `Create a new project in the instance's shared memory and queue the
goal as the first task for a role.

The coordinator picks the project up on its next pass, promotes the
task, and starts scheduling agents against it.

Prerequisites:
  • Git repository with clean workspace (no uncommitted changes)
  • Running Warren instance (start with 'warren up')

Examples:
  # Seed a project on the inferred instance
  warren kindle --goal "Build a REST API for user management"

  # Target a specific instance and role
  warren kindle --name prod --role architect --goal "Design the schema"`,
	RunE: runKindle,
}

func init() {
	kindleCmd.Flags().StringVarP(&kindleInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	kindleCmd.Flags().StringVarP(&kindleGoal, "goal", "g", "", "Goal description (required)")
	kindleCmd.Flags().StringVar(&kindleProjectName, "project-name", "", "Project name (defaults to the goal text)")
	kindleCmd.Flags().StringVar(&kindleOwner, "owner", "", "Owner ID to claim the project for")
	kindleCmd.Flags().StringVar(&kindleRole, "role", "planner", "Role whose task queue receives the goal")
	kindleCmd.MarkFlagRequired("goal")
	rootCmd.AddCommand(kindleCmd)
}

func runKindle(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if kindleGoal == "" {
		return printer.Error(
			"required flag --goal not provided",
			"Usage:\n  warren kindle --goal \"description of what you want to build\"",
			nil,
		)
	}

	// A dirty workspace makes agent runs unreproducible; refuse it.
	checker := git.NewChecker()
	isRepo, err := checker.IsGitRepository()
	if err != nil {
		return err
	}
	if !isRepo {
		return printer.Error(
			"not a Git repository",
			"Warren requires a Git repository to manage projects.",
			[]string{"Initialize Git first:\n  git init\n  warren init\n  warren up"},
		)
	}

	isClean, err := checker.IsWorkspaceClean()
	if err != nil {
		return fmt.Errorf("failed to check Git workspace: %w", err)
	}
	if !isClean {
		dirtyFiles, err := checker.GetDirtyFiles()
		if err != nil {
			return fmt.Errorf("failed to get dirty files: %w", err)
		}
		return printer.Error(
			"Git workspace is not clean",
			dirtyFiles,
			[]string{
				"Commit changes:\n  git add .\n  git commit -m \"your message\"",
				"Stash temporarily:\n  git stash",
			},
		)
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	targetInstanceName, err := resolveInstanceName(ctx, cli, kindleInstanceName)
	if err != nil {
		return err
	}

	redisOpts, err := redisOptsForInstance(ctx, cli, targetInstanceName)
	if err != nil {
		return err
	}

	store := project.NewRedisStore(redisOpts)
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return printer.Error(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			[]string{
				fmt.Sprintf("Check Redis container status:\n  docker logs warren-redis-%s", targetInstanceName),
			},
		)
	}

	// Create the project and queue the goal.
	projectName := kindleProjectName
	if projectName == "" {
		projectName = kindleGoal
	}

	mem, err := project.Create(ctx, store, projectName, kindleOwner)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	if err := mem.UpdateAgentContext(ctx, kindleRole, project.AgentContextPatch{
		NextTasks: project.Tasks(kindleGoal),
	}); err != nil {
		return fmt.Errorf("failed to queue goal for role '%s': %w", kindleRole, err)
	}

	// Announce the project. Best-effort: the project exists either way.
	eventBus, err := bus.NewRedisBus(redisOpts, targetInstanceName, nil)
	if err == nil {
		defer eventBus.Close()
		_, _ = eventBus.Emit(bus.EventProjectCreated, "user", bus.ProjectCreatedPayload{
			ProjectID: mem.ProjectID(),
			Name:      projectName,
			Goal:      kindleGoal,
		})
	}

	printer.Success("Project created: %s\n", mem.ProjectID())
	printer.Info("\nQueued for role '%s':\n  %s\n", kindleRole, kindleGoal)
	printer.Info("\nNext steps:\n")
	printer.Info("  • Monitor activity: warren watch --name %s\n", targetInstanceName)
	printer.Info("  • List projects:   warren projects --name %s\n", targetInstanceName)

	return nil
}
