package casefile

import (
	"context"
	"fmt"
	"github.com/myrjola/pinearchives/internal/config"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/game"
	"github.com/myrjola/pinearchives/internal/kvstore"
	"github.com/myrjola/pinearchives/internal/logging"
	"github.com/myrjola/pinearchives/internal/repositories"
	"github.com/myrjola/pinearchives/internal/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"io"
	"log/slog"
	"time"
)

var ErrUnsupportedStore = errors.NewSentinel("store does not persist between invocations")

// desk is the case session of one command invocation together with the storage it was opened on.
type desk struct {
	session   *game.Session
	store     kvstore.Store
	snapshots *repositories.SnapshotRepository
	out       io.Writer
	closers   []func() error
}

// openDesk connects to the configured store and creates a session that prints its events to the command output.
func openDesk(cmd *cobra.Command) (*desk, error) {
	ctx := cmd.Context()
	environ, err := config.Environ(".env")
	if err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	cfg, err := config.Parse(environ)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	logger := logging.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	d := &desk{out: cmd.OutOrStdout()}
	switch cfg.Store {
	case config.StoreSQLite:
		var db *sqlite.Database
		if db, err = sqlite.NewDatabase(ctx, cfg.SQLiteURL, logger); err != nil {
			return nil, errors.Wrap(err, "open database", slog.String("url", cfg.SQLiteURL))
		}
		d.closers = append(d.closers, db.Close)
		d.snapshots = repositories.NewSnapshotRepository(db, logger)
		d.store = d.snapshots
	case config.StoreRedis:
		var client *redis.Client
		if client, err = kvstore.OpenRedis(ctx, cfg.RedisURL); err != nil {
			return nil, errors.Wrap(err, "open redis")
		}
		d.closers = append(d.closers, client.Close)
		d.store = kvstore.NewRedis(client)
	case config.StoreMemory:
		return nil, errors.Wrap(ErrUnsupportedStore, "open desk", slog.String("store", string(cfg.Store)))
	}

	d.session = game.NewSession(ctx, game.Config{
		Clock:            nil,
		Store:            d.store,
		Logger:           logger,
		Emitter:          game.EmitterFunc(d.print),
		Rules:            nil,
		Penalty:          cfg.Penalty,
		TickInterval:     cfg.TickInterval,
		AutosaveInterval: cfg.AutosaveInterval,
		Key:              game.DefaultKey,
	})
	return d, nil
}

// close saves the case file and releases the storage.
func (d *desk) close(ctx context.Context) error {
	errs := []error{d.session.Destroy(ctx)}
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// print writes an engine event for the terminal. Ticks are not shown.
func (d *desk) print(event game.Event) {
	switch event.Type {
	case game.EventPhaseChange:
		_, _ = fmt.Fprintf(d.out, "phase: %s\n", event.Phase)
	case game.EventVerdict:
		_, _ = fmt.Fprintf(d.out, "verdict: %s\n  %s\n", event.Verdict.Title, event.Verdict.Description)
	case game.EventToast:
		_, _ = fmt.Fprintln(d.out, event.Message)
	case game.EventConflict:
		_, _ = fmt.Fprintf(d.out,
			"conflict: your exclusion grid rules out %s at %s:00. Run submit --force to accuse anyway.\n",
			event.Conflict.Cell.Suspect, event.Conflict.Cell.Window)
	case game.EventTick:
	}
}

// runDesk opens the desk, resumes the saved case when resume is set, runs fn and saves on the way out.
func runDesk(resume bool, fn func(ctx context.Context, d *desk, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := openDesk(cmd)
		if err != nil {
			return err
		}
		if resume {
			err = d.session.ResumeSession(ctx)
		}
		if err == nil {
			err = fn(ctx, d, args)
		}
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second) //nolint:mnd // save budget
		defer cancel()
		return errors.Join(err, d.close(closeCtx))
	}
}
