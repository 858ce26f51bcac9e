package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"admin-console/internal/app"
	"admin-console/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin console gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConsole()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		setupLogger(cfg.LogFormat, cfg.LogLevel)

		console, err := app.NewConsole(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize console: %w", err)
		}

		return console.Run(cmd.Context())
	},
}
