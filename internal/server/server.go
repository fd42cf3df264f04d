// Package server wires the HTTP API, the scheduler, and the agent engine into
// a single process.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/scoutrun/scout/config"
	"github.com/scoutrun/scout/internal/engine"
	"github.com/scoutrun/scout/internal/queue/streams"
	"github.com/scoutrun/scout/internal/runtime"
	"github.com/scoutrun/scout/internal/scheduler"
	"github.com/scoutrun/scout/internal/store"
	"github.com/scoutrun/scout/provider"
	"github.com/scoutrun/scout/tools/web_fetch"
	"github.com/scoutrun/scout/tools/web_search"
)

// Run starts the API server plus the embedded dispatcher and reaper. Blocks
// until the listener fails or ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	e := newEcho()

	st, err := store.New(ctx, cfg.Storage.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr(),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
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

	eng := &engine.Engine{
		Provider: prov,
		Searcher: searcher,
		Fetcher:  fetcher,
		Store:    st,
		Cfg:      cfg.Engine,
		Logger:   log.New(log.Writer(), "[ENGINE] ", log.LstdFlags),
	}

	disp := &scheduler.Dispatcher{
		Store:  st,
		Rdb:    rdb,
		Cfg:    cfg.Scheduler,
		Logger: log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
		Runner: eng,
	}
	if cfg.Scheduler.DispatchMode == "queue" {
		if err := streams.EnsureGroup(ctx, rdb, streams.TriggerStream, streams.TriggerGroup); err != nil {
			return err
		}
		disp.Publisher = streams.NewTriggerPublisher(rdb)
	}
	go func() {
		if err := disp.Start(ctx); err != nil {
			log.Printf("[SCHED] stopped: %v", err)
		}
	}()

	reaper := &scheduler.Reaper{Store: st, Cfg: cfg.Scheduler}
	go func() {
		if err := reaper.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("[REAPER] stopped: %v", err)
		}
	}()

	registerRoutes(e, st, prov, eng, cfg)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":10010"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the echo instance with the recover, CORS, and unified error
// handling middleware stack.
func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))
	return e
}

func registerRoutes(e *echo.Echo, st *store.Store, prov provider.Provider, eng *engine.Engine, cfg *config.Config) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	secret := []byte(cfg.Server.JWTSecret)
	authMW := runtime.EchoAuthMiddleware(secret)

	api := e.Group("/api")
	(&AuthHandler{Store: st, Secret: secret}).Register(api.Group("/auth"))
	(&ScoutsHandler{Store: st, Runner: eng}).Register(api.Group("/scouts"), authMW)
	(&RecallHandler{Store: st, Provider: prov}).Register(api.Group("/recall"), authMW)
	(&PreferencesHandler{
		Store:             st,
		DefaultModel:      cfg.LLM.EmbeddingModel,
		DefaultDimensions: cfg.LLM.EmbeddingDimensions,
	}).Register(api.Group("/preferences"), authMW)

	me := api.Group("/me")
	me.Use(authMW)
	me.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"user_id": c.Get("user_id").(string)})
	})
}
