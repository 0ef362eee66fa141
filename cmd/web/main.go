package main

import (
	"context"
	"fmt"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/benbjohnson/clock"
	"github.com/myrjola/pinearchives/internal/broker"
	"github.com/myrjola/pinearchives/internal/config"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/game"
	"github.com/myrjola/pinearchives/internal/kvstore"
	"github.com/myrjola/pinearchives/internal/logging"
	"github.com/myrjola/pinearchives/internal/repositories"
	"github.com/myrjola/pinearchives/internal/sqlite"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type application struct {
	logger         *slog.Logger
	cfg            config.Config
	clock          clock.Clock
	sessionManager *scs.SessionManager
	store          kvstore.Store
	desks          *deskRegistry
	events         *broker.Broker[string, game.Event]
	healthChecks   map[string]healthCheck
}

func run(ctx context.Context, logger *slog.Logger, cfg config.Config) error {
	var (
		err error
		db  *sqlite.Database
	)
	if db, err = sqlite.NewDatabase(ctx, cfg.SQLiteURL, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SQLiteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close database", errors.SlogError(closeErr))
		}
	}()

	healthChecks := map[string]healthCheck{"sqlite": db.Ping}

	var store kvstore.Store
	switch cfg.Store {
	case config.StoreRedis:
		var client *redis.Client
		if client, err = kvstore.OpenRedis(ctx, cfg.RedisURL); err != nil {
			return errors.Wrap(err, "open redis")
		}
		defer func() {
			_ = client.Close()
		}()
		redisStore := kvstore.NewRedis(client)
		healthChecks["redis"] = redisStore.Ping
		store = redisStore
	case config.StoreMemory:
		store = kvstore.NewMemory()
	case config.StoreSQLite:
		store = repositories.NewSnapshotRepository(db, logger)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "case files ready", slog.String("store", string(cfg.Store)))

	sessionStore := sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, 24*time.Hour) //nolint:mnd // once a day
	defer sessionStore.StopCleanup()
	sessionManager := scs.New()
	sessionManager.Store = sessionStore
	sessionManager.Lifetime = 7 * 24 * time.Hour //nolint:mnd // a week to finish a case

	app := &application{
		logger:         logger,
		cfg:            cfg,
		clock:          clock.New(),
		sessionManager: sessionManager,
		store:          store,
		desks:          nil,
		events:         broker.New[string, game.Event](0),
		healthChecks:   healthChecks,
	}
	app.desks = newDeskRegistry(logger, app.clock, cfg.DeskIdleTimeout, cfg.DeskLimit, app.openDesk)

	err = app.configureAndStartServer(ctx, cfg.Addr, db)
	if closeErr := app.desks.closeAll(context.WithoutCancel(ctx)); closeErr != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failed to save desks", errors.SlogError(closeErr))
	}
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	environ, err := config.Environ(".env")
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, err := config.Parse(environ)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.NewLogger(os.Stdout, cfg.LogLevel)

	if err = run(ctx, logger, cfg); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
