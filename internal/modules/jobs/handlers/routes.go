package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the job engine routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/extractor/jobs", h.HandleCreate)
	r.Get("/extractor/jobs", h.HandleList)
}
