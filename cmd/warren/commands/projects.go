package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	dockerpkg "github.com/dyluth/warren/internal/docker"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/pkg/project"
)

var (
	projectsInstanceName string
	projectsOwner        string
	projectsJSON         bool
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects in an instance",
	Long: `List the projects stored in a Warren instance.

Listing is owner-scoped: with --owner, only that owner's projects and
unclaimed projects appear. Without it, all projects appear.

Examples:
  warren projects
  warren projects --owner alice
  warren projects --name prod --json`,
	RunE: runProjects,
}

func init() {
	projectsCmd.Flags().StringVarP(&projectsInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	projectsCmd.Flags().StringVar(&projectsOwner, "owner", "", "Owner ID to list projects for")
	projectsCmd.Flags().BoolVar(&projectsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	targetInstanceName, err := resolveInstanceName(ctx, cli, projectsInstanceName)
	if err != nil {
		return err
	}

	redisOpts, err := redisOptsForInstance(ctx, cli, targetInstanceName)
	if err != nil {
		return err
	}

	store := project.NewRedisStore(redisOpts)
	defer store.Close()

	summaries, err := store.List(ctx, projectsOwner)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(summaries) == 0 {
		if projectsJSON {
			printer.Println("[]")
		} else {
			printer.Println("No projects found.")
			printer.Println()
			printer.Println("Seed one with 'warren kindle --goal \"...\"'")
		}
		return nil
	}

	if projectsJSON {
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	printer.Printf("%-38s %-30s %-12s %s\n", "PROJECT", "NAME", "OWNER", "UPDATED")
	for _, s := range summaries {
		name := s.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		owner := s.OwnerID
		if owner == "" {
			owner = "-"
		}
		updated := time.UnixMilli(s.LastUpdatedMs).Local().Format("2006-01-02 15:04:05")
		printer.Printf("%-38s %-30s %-12s %s\n", s.ID, name, owner, updated)
	}

	return nil
}
