package main

import (
	"encoding/json"
	"fmt"
	"github.com/myrjola/pinearchives/internal/contexthelpers"
	"github.com/myrjola/pinearchives/internal/errors"
	"log/slog"
	"net/http"
	"time"
)

const eventPingInterval = 30 * time.Second

// caseEvents streams the events of the player's desk as Server Sent Events. The stream starts with the current
// state so that the browser can render without a separate request.
func (app *application) caseEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playerID := contexthelpers.PlayerID(ctx)
	rc := http.NewResponseController(w)
	// The server write timeout would end the stream.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		app.serverError(w, r, errors.Wrap(err, "clear write deadline"))
		return
	}

	// Subscribe before reading the state so that nothing happening in between is missed.
	events, unsubscribe := app.events.Subscribe(playerID)
	defer unsubscribe()
	state := app.deskState(playerID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := writeEvent(w, "state", state); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream closed", errors.SlogError(err))
		return
	}
	if err := rc.Flush(); err != nil {
		app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream closed",
			errors.SlogError(errors.Wrap(err, "flush")))
		return
	}

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()
	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			err = writeEvent(w, string(event.Type), event)
		case <-ping.C:
			_, err = fmt.Fprint(w, ": ping\n\n")
		}
		if err == nil {
			err = rc.Flush()
		}
		if err != nil {
			app.logger.LogAttrs(ctx, slog.LevelDebug, "event stream closed",
				errors.SlogError(errors.Wrap(err, "write event")))
			return
		}
	}
}

// writeEvent writes data as one SSE message of the given event name.
func writeEvent(w http.ResponseWriter, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal event", slog.String("event", name))
	}
	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return errors.Wrap(err, "write event", slog.String("event", name))
	}
	return nil
}
