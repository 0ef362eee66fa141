package main

import (
	"context"
	"github.com/benbjohnson/clock"
	"github.com/myrjola/pinearchives/internal/contexthelpers"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/game"
	"github.com/myrjola/pinearchives/internal/kvstore"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// deskSweepInterval is how often idle desks are looked for. Desks without an open case are closed after one
// interval.
const deskSweepInterval = time.Minute

type deskEntry struct {
	session  *game.Session
	lastUsed time.Time
}

// deskRegistry holds the case sessions of the players that are at their desks. A desk is opened by the first
// intent of a player and closed again when it has been idle for too long, when its case is over or when room is
// needed for another player. Closing saves the open case, so the player can pick it up again.
type deskRegistry struct {
	logger      *slog.Logger
	clock       clock.Clock
	idleTimeout time.Duration
	limit       int
	open        func(ctx context.Context, playerID string) *game.Session

	mu    sync.Mutex
	desks map[string]*deskEntry
	// closing has an entry while the player's previous desk is being saved.
	closing map[string]chan struct{}
}

func newDeskRegistry(
	logger *slog.Logger,
	clk clock.Clock,
	idleTimeout time.Duration,
	limit int,
	open func(ctx context.Context, playerID string) *game.Session,
) *deskRegistry {
	return &deskRegistry{
		logger:      logger,
		clock:       clk,
		idleTimeout: idleTimeout,
		limit:       limit,
		open:        open,
		desks:       make(map[string]*deskEntry),
		closing:     make(map[string]chan struct{}),
	}
}

// lookup returns the open desk of playerID without opening one.
func (r *deskRegistry) lookup(playerID string) (*game.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.desks[playerID]
	if !ok {
		return nil, false
	}
	entry.lastUsed = r.clock.Now()
	return entry.session, true
}

// get returns the desk of playerID and reports whether it was opened by this call.
func (r *deskRegistry) get(ctx context.Context, playerID string) (*game.Session, bool, error) {
	r.mu.Lock()
	for {
		done, ok := r.closing[playerID]
		if !ok {
			break
		}
		r.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, false, errors.Wrap(ctx.Err(), "wait for previous desk", slog.String("player", playerID))
		}
		r.mu.Lock()
	}

	now := r.clock.Now()
	if entry, ok := r.desks[playerID]; ok {
		entry.lastUsed = now
		r.mu.Unlock()
		return entry.session, false, nil
	}

	var evicted map[string]*deskEntry
	if len(r.desks) >= r.limit {
		evicted = r.evictLocked(r.leastRecentlyUsedLocked())
	}
	session := r.open(ctx, playerID)
	r.desks[playerID] = &deskEntry{session: session, lastUsed: now}
	r.mu.Unlock()

	r.closeDesks(ctx, evicted, "desk limit reached")
	return session, true, nil
}

func (r *deskRegistry) leastRecentlyUsedLocked() string {
	var (
		oldest   string
		lastUsed time.Time
	)
	for playerID, entry := range r.desks {
		if oldest == "" || entry.lastUsed.Before(lastUsed) {
			oldest, lastUsed = playerID, entry.lastUsed
		}
	}
	return oldest
}

// evictLocked removes the desks of playerIDs and marks them as closing. The caller must pass the result to
// closeDesks after releasing the lock.
func (r *deskRegistry) evictLocked(playerIDs ...string) map[string]*deskEntry {
	evicted := make(map[string]*deskEntry, len(playerIDs))
	for _, playerID := range playerIDs {
		entry, ok := r.desks[playerID]
		if !ok {
			continue
		}
		delete(r.desks, playerID)
		r.closing[playerID] = make(chan struct{})
		evicted[playerID] = entry
	}
	return evicted
}

func (r *deskRegistry) closeDesks(ctx context.Context, evicted map[string]*deskEntry, reason string) {
	ctx = context.WithoutCancel(ctx)
	for playerID, entry := range evicted {
		if err := entry.session.Destroy(ctx); err != nil {
			err = errors.Wrap(err, "close desk", slog.String("player", playerID))
			r.logger.LogAttrs(ctx, slog.LevelError, "failed to save desk", errors.SlogError(err))
		} else {
			r.logger.LogAttrs(ctx, slog.LevelDebug, "closed desk",
				slog.String("player", playerID), slog.String("reason", reason))
		}
		r.mu.Lock()
		close(r.closing[playerID])
		delete(r.closing, playerID)
		r.mu.Unlock()
	}
}

// sweep closes the desks that have been idle for the idle timeout and the ones without an open case that have
// not been touched for a sweep interval.
func (r *deskRegistry) sweep(ctx context.Context) {
	r.mu.Lock()
	now := r.clock.Now()
	var idle []string
	for playerID, entry := range r.desks {
		unused := now.Sub(entry.lastUsed)
		if unused >= r.idleTimeout || (unused >= deskSweepInterval && !entry.session.State().Phase.Active()) {
			idle = append(idle, playerID)
		}
	}
	evicted := r.evictLocked(idle...)
	r.mu.Unlock()

	r.closeDesks(ctx, evicted, "idle")
}

// run sweeps idle desks until ctx is cancelled.
func (r *deskRegistry) run(ctx context.Context) error {
	ticker := r.clock.Ticker(deskSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *deskRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.desks)
}

// closeAll destroys every desk, saving the open case files.
func (r *deskRegistry) closeAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for playerID, entry := range r.desks {
		if err := entry.session.Destroy(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, "close desk", slog.String("player", playerID)))
		}
		delete(r.desks, playerID)
	}
	return errors.Join(errs...)
}

// openDesk creates the session of playerID. The session persists into the player's namespace of the store and
// publishes its events to the player's subscribers.
func (app *application) openDesk(ctx context.Context, playerID string) *game.Session {
	logger := app.logger.With(slog.String("player", playerID))
	session := game.NewSession(context.WithoutCancel(ctx), game.Config{
		Clock:  app.clock,
		Store:  kvstore.NewNamespace(app.store, kvstore.PlayerNamespace(playerID)),
		Logger: logger,
		Emitter: game.EmitterFunc(func(event game.Event) {
			app.events.Publish(playerID, event)
		}),
		Rules:            nil,
		Penalty:          app.cfg.Penalty,
		TickInterval:     app.cfg.TickInterval,
		AutosaveInterval: app.cfg.AutosaveInterval,
		Key:              game.DefaultKey,
	})
	logger.LogAttrs(ctx, slog.LevelDebug, "opened desk")
	return session
}

// playerDesk returns the desk of the requesting player for an intent. A desk opened for the request picks up the
// saved case file, so a desk closed while idle continues where it was left.
func (app *application) playerDesk(r *http.Request) (*game.Session, error) {
	ctx := r.Context()
	playerID := contexthelpers.PlayerID(ctx)
	desk, opened, err := app.desks.get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if opened {
		if err = desk.ResumeSession(ctx); err != nil && !errors.Is(err, game.ErrNoSavedSession) {
			return nil, errors.Wrap(err, "resume desk")
		}
		if errors.Is(err, game.ErrCorruptSave) {
			app.logger.LogAttrs(ctx, slog.LevelWarn, "opened desk without the corrupt case file",
				errors.SlogError(err))
		}
	}
	return desk, nil
}

// deskState is the state shown to playerID. Players without an open desk see a desk in init.
func (app *application) deskState(playerID string) game.State {
	if desk, ok := app.desks.lookup(playerID); ok {
		return desk.State()
	}
	return game.InitialState()
}
