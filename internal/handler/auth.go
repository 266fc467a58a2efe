package handler

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const actorKey contextKey = "actor"

// Authenticator resolves bearer tokens to actor user IDs. Tokens are
// service-to-service credentials issued out-of-band and configured statically.
type Authenticator struct {
	tokens map[string]string // token -> user id
}

// NewAuthenticator creates an Authenticator over a token->user map.
func NewAuthenticator(tokens map[string]string) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Middleware rejects requests without a known bearer token with 401 and
// stores the resolved actor id in the request context. A 401 here is the
// signal for the caller to drop its session and re-authenticate.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeUnauthorized(w, "missing bearer credential")
			return
		}

		actor, known := a.tokens[token]
		if !known {
			writeUnauthorized(w, "unknown bearer credential")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

// ActorFrom returns the authenticated actor id, or "" when the request was
// not authenticated.
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey).(string)
	return actor
}
