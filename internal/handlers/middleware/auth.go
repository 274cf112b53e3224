package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/streamview/backend/internal/handlers"
	"github.com/streamview/backend/internal/handlers/render"
	"github.com/streamview/backend/internal/models"
)

type authService interface {
	UserFromRequest(ctx context.Context, r *http.Request) (models.User, error)
}

// Auth resolves the bearer principal and stores it in the request context
// Responds 401 when the token is missing, invalid, expired, of the wrong
// type, or maps to a missing or inactive user
func Auth(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.UserFromRequest(r.Context(), r)
			if err != nil {
				render.ServiceError(w, "Not authenticated", http.StatusUnauthorized)
				return
			}
			ctx := handlers.NewContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles responds 403 unless the resolved principal has one of the
// allowed roles. Must run after Auth
func RequireRoles(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := handlers.UserFromContext(r.Context())
			if !ok {
				render.ServiceError(w, "Not authenticated", http.StatusUnauthorized)
				return
			}

			if len(roles) > 0 && !slices.Contains(roles, user.Role) {
				render.ServiceError(w, "Not enough permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
