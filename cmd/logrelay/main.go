package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var root = &cobra.Command{
	Use:   "logrelay",
	Short: "logrelay - console log relay",
	Long: `logrelay receives browser console log entries over HTTP and stores
them in a Postgres-backed log table, either through its REST gateway or
directly.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is normal outside local development.
		_ = godotenv.Load()
	},
}

func main() {
	root.AddCommand(serveCmd, migrateCmd)
	root.RunE = serveCmd.RunE
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
