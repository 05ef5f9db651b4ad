package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

type ObservabilityConfig struct {
	ServiceName string         `koanf:"service_name"`
	Environment string         `koanf:"environment"`
	LogLevel    string         `koanf:"log_level"`
	Pretty      bool           `koanf:"pretty"`
	NewRelic    NewRelicConfig `koanf:"new_relic"`
}

type NewRelicConfig struct {
	LicenseKey string `koanf:"license_key"`
	AppName    string `koanf:"app_name"`
}

// Enabled reports whether a New Relic application should be started.
func (n NewRelicConfig) Enabled() bool {
	return n.LicenseKey != ""
}

func DefaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		LogLevel: "info",
		Pretty:   true,
	}
}

func (o *ObservabilityConfig) Validate() error {
	if _, err := zerolog.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("log_level %q: %w", o.LogLevel, err)
	}
	if o.NewRelic.Enabled() && len(o.NewRelic.LicenseKey) != 40 {
		return fmt.Errorf("new_relic.license_key must be 40 characters")
	}
	return nil
}
