package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the field registry routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/extractor/fields", h.HandleCreate)
	r.Get("/extractor/fields", h.HandleList)
	r.Delete("/extractor/fields/{id}", h.HandleDelete)
}
