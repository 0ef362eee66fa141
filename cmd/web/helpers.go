package main

import (
	"encoding/json"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/game"
	"log/slog"
	"net/http"
)

// maxBodyBytes limits the size of the JSON intents.
const maxBodyBytes = 4096

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri))
	http.Error(w, http.StatusText(status), status)
}

type errorResponse struct {
	Error string `json:"error"`
}

// caseError maps the errors of the case engine to client errors. Anything else is a server error.
func (app *application) caseError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, game.ErrInvalidValue), errors.Is(err, game.ErrUnknownDocument):
		status = http.StatusBadRequest
	case errors.Is(err, game.ErrNoSavedSession):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrInvalidPhase), errors.Is(err, game.ErrDeadlinePassed),
		errors.Is(err, game.ErrDocumentLocked):
		status = http.StatusConflict
	default:
		app.serverError(w, r, err)
		return
	}
	app.logger.LogAttrs(r.Context(), slog.LevelDebug, "intent refused",
		slog.String("uri", r.URL.RequestURI()), slog.Int("status", status), errors.SlogError(err))
	app.writeJSON(w, r, status, errorResponse{Error: err.Error()})
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// readJSON decodes the request body into dst. It responds with 400 Bad Request and returns false on failure.
func (app *application) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "malformed intent",
			slog.String("uri", r.URL.RequestURI()), errors.SlogError(errors.Wrap(err, "decode body")))
		app.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}
