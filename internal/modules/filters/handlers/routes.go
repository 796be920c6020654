package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the filter registry routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/extractor/filters", h.HandleCreate)
	r.Get("/extractor/filters", h.HandleList)
	r.Delete("/extractor/filters/{id}", h.HandleDelete)
}
