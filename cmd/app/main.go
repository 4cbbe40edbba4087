// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/eventflow/cmd/app/commands"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "eventflow",
		Usage:   "Resilient batch event-processing consumers",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "consumer",
				Usage: "Start queue consumers with the operational HTTP server",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "queue",
						Aliases: []string{"q"},
						Value:   []string{"signup", "restaurant", "datastore", "deadletter"},
						Usage:   "Queue to consume (repeatable: signup, restaurant, datastore, deadletter)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunConsumer(ctx, version, cmd.StringSlice("queue"))
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
