package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterPublicRoutes registers the unauthenticated identity routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/users", h.HandleCreate)
	r.Post("/auth/token", h.HandleToken)
}

// RegisterRoutes registers the bearer-authenticated routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.HandleProfile)
}
