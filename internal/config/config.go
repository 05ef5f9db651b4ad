package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "LOGRELAY_"

	DriverREST     = "rest"
	DriverPostgres = "postgres"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Backend       BackendConfig        `koanf:"backend" validate:"required"`
	Database      DatabaseConfig       `koanf:"database"`
	Ingest        IngestConfig         `koanf:"ingest" validate:"required"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port            string        `koanf:"port" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// BodyLimit uses echo's size notation, e.g. "512K" or "1M".
	BodyLimit string `koanf:"body_limit" validate:"required"`
}

// BackendConfig selects and configures the log store.
type BackendConfig struct {
	Driver  string        `koanf:"driver" validate:"required,oneof=rest postgres"`
	URL     string        `koanf:"url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Table   string        `koanf:"table" validate:"required"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns" validate:"gte=0"`
	MinConns int32  `koanf:"min_conns" validate:"gte=0"`
}

type IngestConfig struct {
	MaxBatchSize  int `koanf:"max_batch_size" validate:"gte=1"`
	Concurrency   int `koanf:"concurrency" validate:"gte=1"`
	RetentionDays int `koanf:"retention_days" validate:"gte=1"`
	DefaultLimit  int `koanf:"default_limit" validate:"gte=1"`
	MaxLimit      int `koanf:"max_limit" validate:"gtefield=DefaultLimit"`
}

// Retention is the lifetime stamped on every written entry.
func (c IngestConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Default returns the configuration used when nothing is set in the environment.
func Default() *Config {
	return &Config{
		Primary: Primary{Env: "development"},
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			BodyLimit:       "1M",
		},
		Backend: BackendConfig{
			Driver:  DriverREST,
			Table:   "console_logs",
			Timeout: 10 * time.Second,
		},
		Database:      DatabaseConfig{MaxConns: 10},
		Observability: DefaultObservabilityConfig(),
		Ingest: IngestConfig{
			MaxBatchSize:  100,
			Concurrency:   100,
			RetentionDays: 30,
			DefaultLimit:  100,
			MaxLimit:      500,
		},
	}
}

// LoadConfig loads the configuration from environment variables using koanf.
// LOGRELAY_SERVER__PORT maps to server.port. The hosted platform secrets
// SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY fill backend.url and
// backend.api_key unless the LOGRELAY_ variables override them.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider("SUPABASE_", ".", func(s string) string {
		switch s {
		case "SUPABASE_URL":
			return "backend.url"
		case "SUPABASE_SERVICE_ROLE_KEY":
			return "backend.api_key"
		}
		return ""
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load platform env: %w", err)
	}

	err = k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	mainConfig := Default()
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// in config struct we set Observability as pointer type to check whether it is nil or not
	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}
	mainConfig.Observability.ServiceName = "logrelay"
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Validate(); err != nil {
		return nil, err
	}
	return mainConfig, nil
}

// Validate checks struct tags and the driver-specific requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if !tableName.MatchString(c.Backend.Table) {
		return fmt.Errorf("validate config: backend.table %q is not a plain identifier", c.Backend.Table)
	}
	switch c.Backend.Driver {
	case DriverREST:
		if c.Backend.URL == "" || c.Backend.APIKey == "" {
			return fmt.Errorf("validate config: backend.url and backend.api_key are required for the %q driver", DriverREST)
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("validate config: database.url is required for the %q driver", DriverPostgres)
		}
	}
	if c.Observability != nil {
		if err := c.Observability.Validate(); err != nil {
			return fmt.Errorf("invalid observability config: %w", err)
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Primary.Env == "production"
}
