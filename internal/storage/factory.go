package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Config selects and configures a backend.
type Config struct {
	Backend  string        `mapstructure:"backend"`   // memory, file, sqlite, postgres, bolt, badger, redis
	Path     string        `mapstructure:"path"`      // directory for file-based backends
	DSN      string        `mapstructure:"dsn"`       // postgres connection string
	Redis    RedisConfig   `mapstructure:"redis"`     //
	CacheTTL time.Duration `mapstructure:"cache_ttl"` // zero disables the read cache
}

// Open creates the configured backend, wrapped in a read cache when CacheTTL is set.
func Open(ctx context.Context, cfg Config) (Store, error) {
	store, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.CacheTTL > 0 {
		return NewCachedStore(store, cfg.CacheTTL), nil
	}
	return store, nil
}

func openBackend(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file backend requires a path")
		}
		return NewFileStore(cfg.Path)
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		return NewSQLiteStore(filepath.Join(cfg.Path, "dojo.sqlite"))
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a dsn")
		}
		return NewPostgresStore(cfg.DSN)
	case "bolt":
		if cfg.Path == "" {
			return nil, fmt.Errorf("bolt backend requires a path")
		}
		return NewBoltStore(filepath.Join(cfg.Path, "dojo.db"))
	case "badger":
		return NewBadgerStore(cfg.Path)
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, file, sqlite, postgres, bolt, badger, redis)", cfg.Backend)
	}
}
