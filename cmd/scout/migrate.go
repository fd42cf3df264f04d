package main

import (
	"github.com/spf13/cobra"

	"github.com/scoutrun/scout/config"
	"github.com/scoutrun/scout/internal/store"
)

func migrateCMD() *cobra.Command {
	var migDir string
	var direction string
	var steps int
	var cfgPath string

	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			return store.Migrate(migDir, cfg.Storage.Postgres.DSN(), direction, steps)
		},
	}
	migrate.Flags().StringVar(&migDir, "dir", "file://migrations", "migrations source (file://migrations)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	return migrate
}
