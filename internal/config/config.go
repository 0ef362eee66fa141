// Package config reads the settings of the binaries from the environment.
package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/myrjola/pinearchives/internal/errors"
	"log/slog"
	"maps"
	"os"
	"time"
)

// Store selects where case files are persisted.
type Store string

const (
	StoreSQLite Store = "sqlite"
	StoreRedis  Store = "redis"
	StoreMemory Store = "memory"
)

var ErrInvalidStore = errors.NewSentinel("invalid store")

type Config struct {
	Addr             string        `env:"PINE_ADDR" envDefault:"localhost:4000"`
	SQLiteURL        string        `env:"PINE_SQLITE_URL" envDefault:"./pinearchives.sqlite"`
	Store            Store         `env:"PINE_STORE" envDefault:"sqlite"`
	RedisURL         string        `env:"PINE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	TickInterval     time.Duration `env:"PINE_TICK_INTERVAL" envDefault:"1s"`
	AutosaveInterval time.Duration `env:"PINE_AUTOSAVE_INTERVAL" envDefault:"5s"`
	Penalty          time.Duration `env:"PINE_PENALTY" envDefault:"2m"`
	// DeskIdleTimeout is how long the web server keeps an untouched desk in memory. The open case stays saved.
	DeskIdleTimeout time.Duration `env:"PINE_DESK_IDLE_TIMEOUT" envDefault:"30m"`
	// DeskLimit caps the desks in memory. The least recently used desk is saved and closed to make room.
	DeskLimit int `env:"PINE_DESK_LIMIT" envDefault:"1000"`
	// PprofPort is where pprof listens on localhost. Empty disables it.
	PprofPort string     `env:"PINE_PPROF_PORT"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

// Parse builds a Config from environ, typically env.ToMap(os.Environ()).
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	switch cfg.Store {
	case StoreSQLite, StoreRedis, StoreMemory:
	default:
		return Config{}, errors.Wrap(ErrInvalidStore, "parse environment", slog.String("store", string(cfg.Store)))
	}
	if cfg.TickInterval <= 0 || cfg.AutosaveInterval <= 0 || cfg.Penalty <= 0 {
		return Config{}, errors.New("intervals and penalty must be positive",
			slog.Duration("tick", cfg.TickInterval), slog.Duration("autosave", cfg.AutosaveInterval),
			slog.Duration("penalty", cfg.Penalty))
	}
	if cfg.DeskIdleTimeout <= 0 || cfg.DeskLimit <= 0 {
		return Config{}, errors.New("desk idle timeout and limit must be positive",
			slog.Duration("idle_timeout", cfg.DeskIdleTimeout), slog.Int("limit", cfg.DeskLimit))
	}
	return cfg, nil
}

// Environ returns the process environment overlaid on the values of the optional .env file at path.
func Environ(path string) (map[string]string, error) {
	environ := map[string]string{}
	dotenv, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "read dotenv", slog.String("path", path))
	}
	maps.Copy(environ, dotenv)
	maps.Copy(environ, env.ToMap(os.Environ()))
	return environ, nil
}
