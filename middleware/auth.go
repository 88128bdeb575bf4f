package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-arena/services"
)

type contextKey string

const identityContextKey contextKey = "identity"

var errUnauthorized = errors.New("unauthorized")

// Authenticate checks the Bearer token and puts the caller's identity into the
// request context. Only access tokens are accepted.
func Authenticate(auth services.AuthService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := auth.VerifyToken(r.Header.Get("Authorization"))
			if err != nil {
				logger.Debug("request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
				http.Error(w, errUnauthorized.Error(), http.StatusUnauthorized)
				return
			}
			if identity.Kind != services.TokenAccess {
				http.Error(w, errUnauthorized.Error(), http.StatusUnauthorized)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity stores identity in ctx.
func WithIdentity(ctx context.Context, identity *services.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
