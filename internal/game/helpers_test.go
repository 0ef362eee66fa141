package game_test

import (
	"context"
	"github.com/benbjohnson/clock"
	"github.com/myrjola/pinearchives/internal/game"
	"github.com/myrjola/pinearchives/internal/kvstore"
	"github.com/myrjola/pinearchives/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"sync"
	"testing"
	"time"
)

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []game.Event
}

func (r *recorder) Emit(event game.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) ofType(eventType game.EventType) []game.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []game.Event
	for _, event := range r.events {
		if event.Type == eventType {
			events = append(events, event)
		}
	}
	return events
}

func (r *recorder) lastToast() string {
	toasts := r.ofType(game.EventToast)
	if len(toasts) == 0 {
		return ""
	}
	return toasts[len(toasts)-1].Message
}

type fixture struct {
	session *game.Session
	clock   *clock.Mock
	store   kvstore.Store
	events  *recorder
}

// newFixture creates a session on a mock clock. Ticks are rare unless cfg says otherwise, so tests drive the
// deadline explicitly.
func newFixture(t *testing.T, store kvstore.Store, cfg game.Config) fixture {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1_700_000_000_000))
	if store == nil {
		store = kvstore.NewMemory()
	}
	events := &recorder{}
	cfg.Clock = mock
	cfg.Store = store
	cfg.Emitter = events
	cfg.Logger = testhelpers.NewLogger(io.Discard)
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 24 * time.Hour
	}
	if cfg.AutosaveInterval == 0 {
		cfg.AutosaveInterval = 24 * time.Hour
	}
	session := game.NewSession(context.Background(), cfg)
	t.Cleanup(func() {
		require.NoError(t, session.Destroy(context.Background()))
	})
	return fixture{session: session, clock: mock, store: store, events: events}
}

// advance moves the mock clock in steps so that the loops get to run between the ticks.
func advance(mock *clock.Mock, total, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		mock.Add(step)
	}
}
