package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// RedisURL is optional; without it the policy cache is disabled and every
	// read goes to Postgres.
	RedisURL       string        `env:"REDIS_URL"`
	PolicyCacheTTL time.Duration `env:"POLICY_CACHE_TTL" envDefault:"5m"`

	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	CancelWebhookURL string        `env:"CANCEL_WEBHOOK_URL"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from the environment, optionally seeded from a
// local .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
