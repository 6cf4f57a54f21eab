package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all environment-driven settings. Flags cover the
// listen address; everything touching credentials or backing services
// comes from the environment so it never lands in shell history.
type Config struct {
	// SQLitePath is the games database file. ":memory:" works for
	// throwaway runs.
	SQLitePath string `env:"SQLITE_PATH" envDefault:"tictactoe.db"`

	// RedisAddr enables the shared cache when set. Empty means an
	// in-process cache, which is fine for a single instance.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// JWTSecret signs and verifies player credential tokens.
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	// GraceSeconds is how long a disconnected participant has to
	// reconnect before forfeiting.
	GraceSeconds int `env:"DISCONNECT_GRACE_SECONDS" envDefault:"30"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.GraceSeconds <= 0 {
		return nil, fmt.Errorf("DISCONNECT_GRACE_SECONDS must be positive, got %d", cfg.GraceSeconds)
	}
	return cfg, nil
}

// GraceTimeout returns the disconnect grace period as a duration.
func (c *Config) GraceTimeout() time.Duration {
	return time.Duration(c.GraceSeconds) * time.Second
}
