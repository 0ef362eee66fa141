package main

import (
	"net/http"
	"time"
)

const timeoutBody = `{"error":"the archive took too long to answer, try again"}`

// timeoutHandler responds with a 503 Service Unavailable error when the handler does not meet the deadline.
func timeoutHandler(h http.Handler, defaultTimeout time.Duration) http.Handler {
	// A little shorter than the server's write timeout so that the timeout response still gets through.
	httpHandlerTimeout := defaultTimeout - 500*time.Millisecond //nolint:mnd // 500ms
	return http.TimeoutHandler(h, httpHandlerTimeout, timeoutBody)
}
