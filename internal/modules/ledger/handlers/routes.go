package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the token ledger routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tokens/balance", h.HandleBalance)
	r.Post("/tokens/deposit", h.HandleDeposit)
	r.Get("/transactions", h.HandleTransactions)
}
