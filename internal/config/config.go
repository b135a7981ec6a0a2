// Package config loads dojo's configuration from YAML, DOJO_* environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/hperssn/dojo/internal/log"
	"github.com/hperssn/dojo/internal/storage"
	"github.com/hperssn/dojo/internal/telemetry"
)

const EnvPrefix = "DOJO"

type Config struct {
	Server  ServerConfig     `mapstructure:"server"`
	Storage storage.Config   `mapstructure:"storage"`
	Timer   TimerConfig      `mapstructure:"timer"`
	Log     LogConfig        `mapstructure:"log"`
	Tracing telemetry.Config `mapstructure:"tracing"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"` // requests per minute per client IP, 0 disables

	Tokens []TokenConfig `mapstructure:"tokens"`
	// DevUser is used when a request carries no identity. Empty rejects
	// anonymous requests.
	DevUser string `mapstructure:"dev_user"`
}

// TokenConfig maps a bearer token to a user id. A list rather than a map
// because viper lower-cases map keys.
type TokenConfig struct {
	Token string `mapstructure:"token"`
	User  string `mapstructure:"user"`
}

type TimerConfig struct {
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       300,
		},
		Storage: storage.Config{
			Backend: "sqlite",
			Path:    "data",
		},
		Timer: TimerConfig{
			TickInterval:    time.Second,
			IdleTimeout:     time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
		Log:     LogConfig{Level: "info"},
		Tracing: telemetry.DefaultConfig(),
	}
}

// New returns a viper instance with defaults and environment binding set up.
// DOJO_STORAGE_BACKEND overrides storage.backend and so on.
func New() *viper.Viper {
	v := viper.New()

	d := Defaults()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.dev_user", d.Server.DevUser)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.cache_ttl", d.Storage.CacheTTL)
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.prefix", "dojo:")
	v.SetDefault("timer.tick_interval", d.Timer.TickInterval)
	v.SetDefault("timer.idle_timeout", d.Timer.IdleTimeout)
	v.SetDefault("timer.cleanup_interval", d.Timer.CleanupInterval)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads path into v and decodes the result. An empty path looks for
// dojo.yaml in the working directory and ~/.config/dojo; finding none is not
// an error.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dojo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "dojo"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch reloads the file on change and reapplies the log level. onChange, if
// set, receives every configuration that validates; invalid edits are logged
// and ignored.
func Watch(v *viper.Viper, onChange func(Config)) {
	logger := log.WithComponent("config")
	if v.ConfigFileUsed() == "" {
		logger.Info().Str(log.FieldEvent, "config.watcher_disabled").Msg("no config file, hot reload disabled")
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			logger.Error().Err(err).Str(log.FieldEvent, "config.reload_failed").Str("path", e.Name).Msg("ignoring invalid configuration")
			return
		}
		if log.SetLevel(cfg.Log.Level) {
			logger.Info().Str(log.FieldEvent, "config.reload_success").Str("level", cfg.Log.Level).Msg("log level applied")
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
}
