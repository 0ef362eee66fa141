package game

import (
	"context"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/kvstore"
	"log/slog"
	"sync"
	"sync/atomic"
)

// write is a pending change to the stored case file. A nil value deletes it.
type write struct {
	value    []byte
	revision uint64
}

// Autosaver owns all writes of one case file. Writes are queued without blocking and performed in order by a
// single goroutine, so the session never holds its lock across I/O. A queued write replaces the one still waiting
// before it since only the latest state matters.
type Autosaver struct {
	store  kvstore.Store
	key    string
	logger *slog.Logger

	mu       sync.Mutex
	next     *write
	barriers []chan struct{}
	closed   bool
	signal   chan struct{}
	stopped  chan struct{}

	savedRevision atomic.Uint64
	failures      atomic.Uint64
}

// NewAutosaver starts the writer goroutine. Call Close to stop it.
func NewAutosaver(ctx context.Context, store kvstore.Store, key string, logger *slog.Logger) *Autosaver {
	a := &Autosaver{
		store:   store,
		key:     key,
		logger:  logger.With("source", "Autosaver"),
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go a.run(context.WithoutCancel(ctx))
	return a
}

// Save queues value as the case file at revision.
func (a *Autosaver) Save(value []byte, revision uint64) {
	a.enqueue(&write{value: value, revision: revision})
}

// Delete queues removal of the case file.
func (a *Autosaver) Delete() {
	a.enqueue(&write{})
}

func (a *Autosaver) enqueue(w *write) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.logger.LogAttrs(context.Background(), slog.LevelWarn, "dropping write after close",
			slog.Bool("delete", w.value == nil))
		return
	}
	a.next = w
	a.notify()
}

func (a *Autosaver) notify() {
	select {
	case a.signal <- struct{}{}:
	default:
	}
}

// SavedRevision is the revision of the last successful save.
func (a *Autosaver) SavedRevision() uint64 {
	return a.savedRevision.Load()
}

// Failures counts the writes that returned an error.
func (a *Autosaver) Failures() uint64 {
	return a.failures.Load()
}

// Flush waits until every write queued before the call has been attempted.
func (a *Autosaver) Flush(ctx context.Context) error {
	done := make(chan struct{})
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.barriers = append(a.barriers, done)
	a.notify()
	a.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "flush autosave")
	}
}

// Close attempts the queued writes and stops the writer goroutine.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		a.notify()
	}
	a.mu.Unlock()

	select {
	case <-a.stopped:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "close autosave")
	}
}

func (a *Autosaver) run(ctx context.Context) {
	defer close(a.stopped)
	for range a.signal {
		a.mu.Lock()
		w, barriers, closed := a.next, a.barriers, a.closed
		a.next, a.barriers = nil, nil
		a.mu.Unlock()

		if w != nil {
			a.write(ctx, w)
		}
		for _, done := range barriers {
			close(done)
		}
		if closed {
			return
		}
	}
}

func (a *Autosaver) write(ctx context.Context, w *write) {
	if w.value == nil {
		if err := a.store.Delete(ctx, a.key); err != nil {
			a.failures.Add(1)
			err = errors.Wrap(err, "delete case file", slog.String("key", a.key))
			a.logger.LogAttrs(ctx, slog.LevelError, "failed to delete case file", errors.SlogError(err))
			return
		}
		a.logger.LogAttrs(ctx, slog.LevelDebug, "deleted case file", slog.String("key", a.key))
		return
	}
	if err := a.store.Put(ctx, a.key, w.value); err != nil {
		a.failures.Add(1)
		err = errors.Wrap(err, "save case file", slog.String("key", a.key), slog.Uint64("revision", w.revision))
		a.logger.LogAttrs(ctx, slog.LevelError, "failed to save case file", errors.SlogError(err))
		return
	}
	a.savedRevision.Store(w.revision)
	a.logger.LogAttrs(ctx, slog.LevelDebug, "saved case file",
		slog.String("key", a.key), slog.Uint64("revision", w.revision))
}
