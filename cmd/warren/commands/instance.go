package commands

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
	"github.com/redis/go-redis/v9"

	"github.com/dyluth/warren/internal/instance"
	"github.com/dyluth/warren/internal/printer"
)

// resolveInstanceName turns an optional --name flag into a concrete
// instance, inferring from the current Git workspace when omitted.
func resolveInstanceName(ctx context.Context, cli *client.Client, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	name, err := instance.InferFromWorkspace(ctx, cli)
	if err != nil {
		switch err.Error() {
		case "no Warren instances found for this workspace":
			return "", printer.Error(
				"no Warren instances found",
				"No running instances found for this workspace.",
				[]string{"Start an instance first:\n  warren up"},
			)
		case "multiple instances found for this workspace, use --name to specify which one":
			return "", printer.Error(
				"multiple instances found",
				"Found multiple running instances for this workspace.",
				[]string{
					"Specify which instance with --name <instance-name>",
					"List instances:\n  warren list",
				},
			)
		}
		return "", fmt.Errorf("failed to infer instance: %w", err)
	}

	return name, nil
}

// redisOptsForInstance resolves a running instance's published Redis
// port and returns client options for it.
func redisOptsForInstance(ctx context.Context, cli *client.Client, instanceName string) (*redis.Options, error) {
	if err := instance.VerifyRunning(ctx, cli, instanceName); err != nil {
		return nil, printer.Error(
			fmt.Sprintf("instance '%s' is not running", instanceName),
			fmt.Sprintf("Error: %v", err),
			[]string{
				fmt.Sprintf("Start the instance:\n  warren up --name %s", instanceName),
				fmt.Sprintf("Or if stuck, restart:\n  warren down --name %s\n  warren up --name %s", instanceName, instanceName),
			},
		)
	}

	port, err := instance.RedisPort(ctx, cli, instanceName)
	if err != nil {
		return nil, printer.Error(
			"Redis port not found",
			fmt.Sprintf("Instance '%s' exists but its Redis port label is missing or invalid.", instanceName),
			[]string{
				fmt.Sprintf("Restart the instance:\n  warren down --name %s\n  warren up --name %s", instanceName, instanceName),
			},
		)
	}

	opts, err := redis.ParseURL(instance.RedisURL(port))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return opts, nil
}
