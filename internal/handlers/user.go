package handlers

import (
	"net/http"

	"github.com/streamview/backend/internal/handlers/render"
)

// handleUserMe returns the resolved principal
// Expects the auth middleware to have run already
func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		render.JSON(w, UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Role:  string(user.Role),
		})
	})
}
