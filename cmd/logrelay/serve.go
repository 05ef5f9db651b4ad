package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/akave-ai/logrelay/internal/config"
	"github.com/akave-ai/logrelay/internal/database"
	"github.com/akave-ai/logrelay/internal/logger"
	"github.com/akave-ai/logrelay/internal/observability"
	"github.com/akave-ai/logrelay/internal/repository"
	"github.com/akave-ai/logrelay/internal/server"
	"github.com/akave-ai/logrelay/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Observability)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nrApp, err := observability.NewApplication(cfg.Observability)
	if err != nil {
		log.Warn().Err(err).Msg("new relic disabled")
		nrApp = nil
	}

	store, closeStore, err := openStore(ctx, cfg, log, nrApp)
	if err != nil {
		log.Error().Err(err).Msg("open store")
		return err
	}
	defer closeStore()

	srv := server.New(cfg, store, server.Options{Logger: log, NewRelic: nrApp})
	log.Info().Str("driver", cfg.Backend.Driver).Str("table", cfg.Backend.Table).Msg("starting logrelay")
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger, nrApp *newrelic.Application) (storage.LogStore, func(), error) {
	switch cfg.Backend.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.Database, log, database.PoolOptions{NewRelic: nrApp != nil})
		if err != nil {
			return nil, nil, err
		}
		return repository.NewLogRepository(pool, cfg.Backend.Table), pool.Close, nil
	case config.DriverREST:
		store, err := storage.NewRESTStore(cfg.Backend, observability.Transport(nrApp, nil))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend driver %q", cfg.Backend.Driver)
}
