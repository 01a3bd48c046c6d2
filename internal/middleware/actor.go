package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	// ContextKeyActor is the key for storing the acting username in request context.
	ContextKeyActor contextKey = "actor"

	// ActorHeader carries the acting username. Identity is trusted as sent.
	ActorHeader = "X-Actor"
)

// Actor reads the acting username from the X-Actor header and adds it to
// the request context. Requests without the header pass through unchanged;
// operations that need an actor reject them.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the acting username, or "" if none was sent.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(ContextKeyActor).(string)
	return actor
}
