package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/config"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/migrations"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			dsn, err := config.DatabaseURLFromEnv()
			if err != nil {
				return err
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			switch direction {
			case "up":
				return migrations.Up(dsn, logger)
			case "down":
				return migrations.Down(dsn, logger)
			default:
				return fmt.Errorf("unknown direction %q, expected up or down", direction)
			}
		},
	}
}
