package transport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rpggio/agenthub/internal/domain/activity"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type userKey struct{}

// UserResolver resolves the signed-in user from a bearer token.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (activity.User, error)
}

// UserFromContext returns the authenticated user from context, if present.
func UserFromContext(ctx context.Context) (activity.User, bool) {
	user, ok := ctx.Value(userKey{}).(activity.User)
	return user, ok && user.ID != ""
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user activity.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			user, err := resolver.ResolveUser(r.Context(), token)
			if err != nil || user.ID == "" {
				writeError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// StaticUserMiddleware attaches a fixed user to every request. Used when auth is disabled.
func StaticUserMiddleware(user activity.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	// Browsers cannot set headers on websocket upgrades.
	if r.Header.Get("Upgrade") != "" {
		return r.URL.Query().Get("access_token")
	}
	return ""
}
