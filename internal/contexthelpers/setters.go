package contexthelpers

import (
	"context"
	"net/http"
)

func WithPlayerID(r *http.Request, playerID string) *http.Request {
	ctx := context.WithValue(r.Context(), playerIDContextKey, playerID)
	return r.WithContext(ctx)
}

func WithCSRFToken(r *http.Request, token string) *http.Request {
	ctx := context.WithValue(r.Context(), csrfTokenContextKey, token)
	return r.WithContext(ctx)
}

func WithCSPNonce(r *http.Request, nonce string) *http.Request {
	ctx := context.WithValue(r.Context(), cspNonceContextKey, nonce)
	return r.WithContext(ctx)
}
