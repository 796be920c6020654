package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the selector registry routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/extractor/selectors", h.HandleCreate)
	r.Get("/extractor/selectors", h.HandleList)
	r.Delete("/extractor/selectors/{id}", h.HandleDelete)
}
