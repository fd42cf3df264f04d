package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scoutrun/scout/config"
	srv "github.com/scoutrun/scout/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with the embedded scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, cfg)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	return serve
}
