package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the whole process configuration. Values come from the
// environment; a local .env file is honored for development.
type Config struct {
	HTTPAddr string `env:"RELAY_HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"RELAY_LOG_LEVEL" envDefault:"info"`

	// Store driver: "sqlite" or "postgres".
	StoreDriver string `env:"RELAY_STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"RELAY_SQLITE_PATH" envDefault:"./data/relay.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Bus driver: "redis" or "memory". Memory restricts delivery to one
	// instance and is meant for development and tests.
	BusDriver string `env:"RELAY_BUS_DRIVER" envDefault:"redis"`
	RedisURL  string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Per-session delivery queue capacity before drop-on-overflow kicks in.
	SessionBuffer int `env:"RELAY_SESSION_BUFFER" envDefault:"256"`

	ReadTimeout   time.Duration `env:"RELAY_READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout  time.Duration `env:"RELAY_WRITE_TIMEOUT" envDefault:"10s"`
	BridgeBackoff time.Duration `env:"RELAY_BRIDGE_BACKOFF" envDefault:"2s"`
}

// Load reads configuration from the environment, after sourcing .env if one
// exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.SessionBuffer <= 0 {
		cfg.SessionBuffer = 256
	}
	if cfg.BridgeBackoff <= 0 {
		cfg.BridgeBackoff = 2 * time.Second
	}
	return cfg, nil
}
