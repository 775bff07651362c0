package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Config is the environment surface of the validator.
type Config struct {
	// DBPath is the SQLite file path or PostgreSQL DSN of the shared auth
	// database.
	DBPath string `env:"CORRAL_DB_PATH"`
	// DBDialect selects placeholder syntax and driver.
	DBDialect string `env:"CORRAL_DB_DIALECT, default=sqlite"`

	// AuthServerPath overrides the upward search for server/auth.js.
	AuthServerPath string `env:"CORRAL_AUTH_SERVER"`
	AuthPort       string `env:"CORRAL_AUTH_PORT, default=3456"`
	AutoStart      bool   `env:"CORRAL_AUTH_AUTOSTART, default=true"`

	LogLevel string `env:"CORRAL_LOG_LEVEL, default=info"`
}

func Load(ctx context.Context) (Config, error) {
	return loadFrom(ctx, envconfig.OsLookuper())
}

func loadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	if cfg.DBPath == "" {
		return Config{}, fmt.Errorf("CORRAL_DB_PATH must not be empty")
	}
	switch cfg.DBDialect {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("CORRAL_DB_DIALECT must be sqlite or postgres, got %q", cfg.DBDialect)
	}
	return cfg, nil
}
