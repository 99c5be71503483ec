package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/trainbites/trainbites/internal/domain"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorMiddleware resolves the caller identity from headers set by the
// auth proxy in front of this service. In production those headers come
// from validated JWT claims; nothing downstream reads ambient auth state.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{
			ID:   r.Header.Get("X-User-ID"),
			Role: domain.Role(r.Header.Get("X-User-Role")),
		}
		if actor.Role == "" {
			actor.Role = domain.RoleCustomer
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware echoes the request ID assigned by chi's RequestID
// middleware back to the client. It must be mounted after that one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

func actorFromContext(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(actorKey).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{}
}
