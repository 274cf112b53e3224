package handlers

import (
	"net/http"

	"github.com/streamview/backend/internal/handlers/render"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authHandler *AuthHandler,
	authMiddleware func(http.Handler) http.Handler,
	middlewares ...func(http.Handler) http.Handler,
) http.Handler {
	apiauth := http.NewServeMux()
	apiauth.Handle("/", authHandler.Handler())
	apiauth.Handle("GET /me", authMiddleware(handleUserMe()))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.HandleFunc("GET /{$}", handleHealth)

	return chain(root, middlewares...)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, struct {
		Message string `json:"message"`
	}{Message: "Healthy"})
}
