package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/umar/forum-livechat/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// JWTMiddleware rejects requests without a valid bearer token and stores the
// caller's identity on the request context.
func JWTMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := ValidateToken(parts[1], jwtSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := WithIdentity(r.Context(), claims.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithIdentity(ctx context.Context, who models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, who)
}

func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	who, ok := ctx.Value(identityKey).(models.Identity)
	return who, ok
}
