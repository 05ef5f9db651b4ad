package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/multitracer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/jackc/tern/v2/migrate"
	"github.com/newrelic/go-agent/v3/integrations/nrpgx5"
	"github.com/rs/zerolog"

	"github.com/akave-ai/logrelay/internal/config"
)

const versionTable = "logrelay_schema_version"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PoolOptions tune the pgx pool beyond the configuration.
type PoolOptions struct {
	// NewRelic adds the nrpgx5 tracer next to the zerolog query logger.
	NewRelic bool
}

// NewPool connects to cfg.URL and pings it.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger, opts PoolOptions) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	queryLog := &tracelog.TraceLog{
		Logger:   zerologadapter.NewLogger(log.With().Str("component", "pgx").Logger()),
		LogLevel: tracelog.LogLevelWarn,
	}
	if opts.NewRelic {
		poolCfg.ConnConfig.Tracer = multitracer.New(queryLog, nrpgx5.NewTracer())
	} else {
		poolCfg.ConnConfig.Tracer = queryLog
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// RunMigrations applies the embedded schema migrations with tern. table names
// the log table the migrations create.
func RunMigrations(ctx context.Context, databaseURL, table string, log zerolog.Logger) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	m, err := migrate.NewMigrator(ctx, conn, versionTable)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if m.Data == nil {
		m.Data = map[string]any{}
	}
	m.Data["table"] = table
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	if err := m.LoadMigrations(sub); err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m.OnStart = func(sequence int32, name, direction, sql string) {
		log.Info().Int32("sequence", sequence).Str("name", name).Str("direction", direction).Msg("running migration")
	}
	if err := m.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	version, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("current version: %w", err)
	}
	log.Info().Int32("version", version).Msg("database schema up to date")
	return nil
}
