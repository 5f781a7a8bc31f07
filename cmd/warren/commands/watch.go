package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	dockerpkg "github.com/dyluth/warren/internal/docker"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/watch"
	"github.com/dyluth/warren/pkg/bus"
)

var (
	watchInstanceName string
	watchOutputFormat string
	watchLast         int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time event activity",
	Long: `Stream the instance's event bus: project creation, phase changes,
task assignment and completion, artifact and guideline updates.

Output Formats:
  default - Human-readable output with timestamps
  json    - Line-delimited JSON for programmatic processing

Events are not stored durably; watch shows what happens while it is
attached. On exit, --last N re-prints the most recent N events seen
during the session.

Examples:
  # Watch all activity on inferred instance
  warren watch

  # Watch a specific instance, recap the last 20 events on exit
  warren watch --name prod --last 20

  # Export events as JSON
  warren watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchInstanceName, "name", "n", "", "Target instance name (auto-inferred if omitted)")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().IntVar(&watchLast, "last", 0, "Re-print the most recent N events on exit")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			"Supported formats: default, json",
			nil,
		)
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	targetInstanceName, err := resolveInstanceName(ctx, cli, watchInstanceName)
	if err != nil {
		return err
	}

	redisOpts, err := redisOptsForInstance(ctx, cli, targetInstanceName)
	if err != nil {
		return err
	}

	history := bus.NewHistory(bus.DefaultHistorySize)
	eventBus, err := bus.NewRedisBus(redisOpts, targetInstanceName, history)
	if err != nil {
		return err
	}
	defer eventBus.Close()

	streamer := watch.NewStreamer(eventBus, outputFormat, os.Stdout)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := eventBus.Start(runCtx); err != nil {
		return err
	}

	if outputFormat == watch.OutputFormatDefault {
		printer.Info("Watching instance '%s' (Ctrl+C to stop)...\n", targetInstanceName)
	}

	if err := streamer.Run(runCtx); err != nil {
		return err
	}

	if watchLast > 0 {
		watch.Recap(history, watchLast, outputFormat, os.Stdout)
	}

	return nil
}
