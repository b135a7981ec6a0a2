package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var ErrInvalidConfig = errors.New("invalid configuration")

var backends = map[string]bool{
	"memory": true, "file": true, "sqlite": true, "postgres": true,
	"bolt": true, "badger": true, "redis": true,
}

// Validate reports every problem at once.
func Validate(cfg Config) error {
	var problems []string

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		problems = append(problems, "server.addr is required")
	}
	if cfg.Server.RateLimit < 0 {
		problems = append(problems, "server.rate_limit must not be negative")
	}
	if cfg.Server.ShutdownTimeout < 0 {
		problems = append(problems, "server.shutdown_timeout must not be negative")
	}
	for _, tok := range cfg.Server.Tokens {
		if tok.Token == "" || tok.User == "" {
			problems = append(problems, "server.tokens entries need a token and a user")
			break
		}
	}

	if !backends[cfg.Storage.Backend] {
		problems = append(problems, fmt.Sprintf("storage.backend %q is not supported", cfg.Storage.Backend))
	}
	switch cfg.Storage.Backend {
	case "file", "sqlite", "bolt":
		if cfg.Storage.Path == "" {
			problems = append(problems, fmt.Sprintf("storage.path is required for %s", cfg.Storage.Backend))
		}
	case "postgres":
		if cfg.Storage.DSN == "" {
			problems = append(problems, "storage.dsn is required for postgres")
		}
	case "redis":
		if cfg.Storage.Redis.Addr == "" {
			problems = append(problems, "storage.redis.addr is required for redis")
		}
	}
	if cfg.Storage.CacheTTL < 0 {
		problems = append(problems, "storage.cache_ttl must not be negative")
	}

	if cfg.Timer.TickInterval <= 0 {
		problems = append(problems, "timer.tick_interval must be positive")
	}
	if cfg.Timer.IdleTimeout < 0 {
		problems = append(problems, "timer.idle_timeout must not be negative")
	}

	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
			problems = append(problems, fmt.Sprintf("log.level %q is unknown", cfg.Log.Level))
		}
	}

	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		problems = append(problems, "tracing.sample_rate must be between 0 and 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
