package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	dockerpkg "github.com/dyluth/warren/internal/docker"
	"github.com/dyluth/warren/internal/instance"
	"github.com/dyluth/warren/internal/printer"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all Warren instances",
	Long: `List all Warren instances by querying Docker for containers with the
warren.project label.

For each instance, displays:
  • Instance name
  • Status (Running/Degraded/Stopped)
  • Workspace path
  • Published Redis port

Use --json for machine-readable output.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	infos, err := instance.List(ctx, cli)
	if err != nil {
		return err
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	if len(infos) == 0 {
		if listJSON {
			printer.Println("[]")
		} else {
			printer.Println("No Warren instances found.")
			printer.Println()
			printer.Println("Run 'warren up' to start a new instance.")
		}
		return nil
	}

	if listJSON {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		printer.Println(string(data))
		return nil
	}

	printer.Printf("%-15s %-10s %-40s %s\n", "INSTANCE", "STATUS", "WORKSPACE", "REDIS")
	for _, info := range infos {
		workspace := info.Workspace
		if len(workspace) > 40 {
			workspace = "..." + workspace[len(workspace)-37:]
		}
		redis := "-"
		if info.RedisPort != 0 {
			redis = fmt.Sprintf("%d", info.RedisPort)
		}
		printer.Printf("%-15s %-10s %-40s %s\n", info.Name, info.Status, workspace, redis)
	}

	return nil
}
