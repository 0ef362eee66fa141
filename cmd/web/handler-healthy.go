package main

import (
	"context"
	"github.com/myrjola/pinearchives/internal/errors"
	"log/slog"
	"net/http"
	"time"
)

// healthCheck reports whether a dependency is reachable.
type healthCheck func(ctx context.Context) error

const healthCheckTimeout = time.Second

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// healthy responds with a JSON object indicating whether the server and its storage are healthy.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := healthResponse{Status: "ok", Checks: make(map[string]string, len(app.healthChecks))}
	status := http.StatusOK
	for name, check := range app.healthChecks {
		if err := check(ctx); err != nil {
			app.logger.LogAttrs(ctx, slog.LevelWarn, "health check failed",
				slog.String("check", name), errors.SlogError(err))
			response.Checks[name] = "unavailable"
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[name] = "ok"
	}
	app.writeJSON(w, r, status, response)
}
