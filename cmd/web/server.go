package main

import (
	"context"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/pprofserver"
	"github.com/myrjola/pinearchives/internal/sqlite"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const defaultTimeout = 5 * time.Second

// configureAndStartServer serves the application on addr until ctx is cancelled. The database optimizer and the
// optional pprof server run alongside it.
func (app *application) configureAndStartServer(ctx context.Context, addr string, db *sqlite.Database) error {
	var err error
	srv := &http.Server{
		ErrorLog:          slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
		Handler:           app.routes(),
		IdleTimeout:       time.Minute,
		ReadTimeout:       defaultTimeout,
		WriteTimeout:      defaultTimeout,
		ReadHeaderTimeout: time.Second,
	}

	var listener net.Listener
	if listener, err = net.Listen("tcp", addr); err != nil {
		return errors.Wrap(err, "TCP listen", slog.String("addr", addr))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.logger.LogAttrs(ctx, slog.LevelInfo, "starting server", slog.Any("Addr", listener.Addr().String()))
		if serveErr := srv.Serve(listener); !errors.Is(serveErr, http.ErrServerClosed) {
			return errors.Wrap(serveErr, "server serve")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.LogAttrs(ctx, slog.LevelInfo, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
		defer cancel()
		// Event streams never finish on their own.
		srv.RegisterOnShutdown(app.events.Close)
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			return errors.Wrap(shutdownErr, "shutdown server")
		}
		return nil
	})
	g.Go(func() error {
		return db.RunOptimizer(gctx, time.Hour)
	})
	g.Go(func() error {
		return app.desks.run(gctx)
	})
	if app.cfg.PprofPort != "" {
		g.Go(func() error {
			return pprofserver.Run(gctx, app.cfg.PprofPort, app.logger)
		})
	}

	if err = g.Wait(); err != nil {
		return errors.Wrap(err, "run server")
	}
	return nil
}
