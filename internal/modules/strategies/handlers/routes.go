package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the strategy aggregate routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/extractor/strategies", h.HandleCreate)
	r.Get("/extractor/strategies", h.HandleList)
	r.Delete("/extractor/strategies/{id}", h.HandleDelete)

	r.Post("/extractor/strategies/{id}/selectors", h.HandleAddSelector)
	r.Delete("/extractor/strategies/{id}/selectors", h.HandleRemoveSelector)
	r.Post("/extractor/strategies/{id}/fields", h.HandleAddField)
	r.Delete("/extractor/strategies/{id}/fields", h.HandleRemoveField)
	r.Post("/extractor/strategies/{id}/filters", h.HandleAddFilter)
	r.Delete("/extractor/strategies/{id}/filters", h.HandleRemoveFilter)
}
