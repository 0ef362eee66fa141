package main

import (
	"github.com/justinas/alice"
	"net/http"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/healthy", app.healthy)

	timeout := func(h http.Handler) http.Handler {
		return timeoutHandler(h, defaultTimeout)
	}
	session := alice.New(timeout, app.sessionManager.LoadAndSave, app.noSurf, commonContext, app.assignPlayer)

	mux.Handle("GET /{$}", session.ThenFunc(app.deskPage))
	mux.Handle("GET /api/case", session.ThenFunc(app.getCase))
	mux.Handle("POST /api/case/new", session.ThenFunc(app.newCase))
	mux.Handle("POST /api/case/resume", session.ThenFunc(app.resumeCase))
	mux.Handle("POST /api/case/field", session.ThenFunc(app.setField))
	mux.Handle("POST /api/case/exclusion", session.ThenFunc(app.toggleExclusion))
	mux.Handle("POST /api/case/navigate", session.ThenFunc(app.navigate))
	mux.Handle("POST /api/case/unlock", session.ThenFunc(app.unlock))
	mux.Handle("POST /api/case/submit", session.ThenFunc(app.submit))
	mux.Handle("POST /api/case/force-submit", session.ThenFunc(app.forceSubmit))
	mux.Handle("POST /api/case/acknowledge", session.ThenFunc(app.acknowledge))

	// Event streams outlive the handler timeout and can't buffer the session cookie.
	stream := alice.New(app.serverSentEventMiddleware, app.requirePlayer)
	mux.Handle("GET /api/case/events", stream.ThenFunc(app.caseEvents))

	return alice.New(app.recoverPanic, app.logRequest, app.secureHeaders).Then(mux)
}
