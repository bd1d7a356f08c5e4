package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings parsed from the environment.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	// AllowConcurrentGoalSwaps permits a goal to participate in more than one
	// accepted swap at a time. Off by default.
	AllowConcurrentGoalSwaps bool `env:"SWAP_ALLOW_CONCURRENT" envDefault:"false"`

	// DispatchTimeout bounds the synchronous follow creation on accept before
	// it degrades to the outbox retry path.
	DispatchTimeout time.Duration `env:"SWAP_DISPATCH_TIMEOUT" envDefault:"3s"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxMaxAttempts  int           `env:"OUTBOX_MAX_ATTEMPTS" envDefault:"10"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}
