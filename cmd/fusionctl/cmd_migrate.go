package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neuroscreen-fusion-server/internal/app"
	"github.com/neuroscreen-fusion-server/internal/config"
)

func newMigrateCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply all pending migrations, or roll back the latest one",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				manager *config.Manager
				err     error
			)
			if configFile != "" {
				manager, err = config.NewManagerFromFile(configFile)
			} else {
				manager, err = config.NewManager()
			}
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			cfg := manager.GetConfig()
			logger, err := config.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			return app.Migrate(cmd.Context(), cfg.Database, logger, args[0] == "up")
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "configuration file (default: search ./, ./config, /etc/neurofusion)")
	return cmd
}
