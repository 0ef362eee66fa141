package contexthelpers

type contextKey string

const (
	playerIDContextKey  = contextKey("playerID")
	csrfTokenContextKey = contextKey("csrfToken")
	cspNonceContextKey  = contextKey("cspNonce")
)
