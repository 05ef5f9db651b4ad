package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akave-ai/logrelay/internal/config"
	"github.com/akave-ai/logrelay/internal/database"
	"github.com/akave-ai/logrelay/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the log table (postgres driver)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return fmt.Errorf("migrate: LOGRELAY_DATABASE__URL is not set")
		}
		log := logger.New(cfg.Observability)
		return database.RunMigrations(cmd.Context(), cfg.Database.URL, cfg.Backend.Table, log)
	},
}
