package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/scoutrun/scout/config"
	"github.com/scoutrun/scout/internal/engine"
	"github.com/scoutrun/scout/internal/queue/streams"
	"github.com/scoutrun/scout/internal/store"
	"github.com/scoutrun/scout/internal/worker"
	"github.com/scoutrun/scout/provider"
	"github.com/scoutrun/scout/tools/web_fetch"
	"github.com/scoutrun/scout/tools/web_search"
)

func workerCMD() *cobra.Command {
	var cfgPath string
	var name string
	var cmd = &cobra.Command{
		Use:   "worker",
		Short: "Run a queue worker that executes dispatched scouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := store.New(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}

			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Storage.Redis.Addr(),
				Password: cfg.Storage.Redis.Password,
				DB:       cfg.Storage.Redis.DB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
			}
			if err := streams.EnsureGroup(ctx, rdb, streams.TriggerStream, streams.TriggerGroup); err != nil {
				return err
			}

			prov, err := provider.New(cfg.LLM)
			if err != nil {
				return err
			}
			searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey)
			if err != nil {
				return err
			}
			fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Fetch.Type), cfg.Fetch.Timeout, cfg.Fetch.MaxChars)
			if err != nil {
				return err
			}

			if name == "" {
				host, _ := os.Hostname()
				name = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
			}

			proc := &worker.Processor{
				Logger:   log.New(log.Writer(), "[WORKER] ", log.LstdFlags),
				Store:    st,
				Consumer: streams.NewConsumer(rdb, streams.TriggerGroup, name),
				Runner: &engine.Engine{
					Provider: prov,
					Searcher: searcher,
					Fetcher:  fetcher,
					Store:    st,
					Cfg:      cfg.Engine,
				},
				ClaimIdle: cfg.Scheduler.ExecutionTimeout,
			}
			return proc.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "consumer name (default hostname-random)")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	return cmd
}
