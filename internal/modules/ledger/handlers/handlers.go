// Package handlers provides HTTP handlers for the token ledger.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/ledger"
	"github.com/corvidlabs/magpie/internal/respond"
)

// Handler handles ledger HTTP requests
type Handler struct {
	service *ledger.Service
	log     zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service *ledger.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "ledger").Logger(),
	}
}

type balanceResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Balance int64  `json:"balance"`
}

type depositRequest struct {
	Amount    int64  `json:"amount"`
	RequestID string `json:"request_id,omitempty"`
}

type transactionPayload struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Key       string `json:"key"`
	Meta      string `json:"meta,omitempty"`
	CreatedAt string `json:"created_at"`
}

type transactionsResponse struct {
	Status       string                `json:"status"`
	Message      string                `json:"message,omitempty"`
	Transactions []*transactionPayload `json:"transactions"`
}

// HandleBalance handles GET /tokens/balance
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	balance, err := h.service.Balance(account.ID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, h.log, http.StatusOK, balanceResponse{
		Status:  respond.StatusSuccess,
		Balance: balance,
	})
}

// HandleDeposit handles POST /tokens/deposit
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, h.log, "invalid request body")
		return
	}

	if _, err := h.service.Deposit(account.ID, req.Amount, req.RequestID); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.OK(w, h.log, "deposit processed")
}

// HandleTransactions handles GET /transactions
func (h *Handler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	transactions, err := h.service.List(account.ID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	payload := make([]*transactionPayload, 0, len(transactions))
	for _, t := range transactions {
		payload = append(payload, &transactionPayload{
			ID:        t.ID.String(),
			Amount:    t.Amount,
			Key:       t.Key,
			Meta:      t.Meta,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		})
	}

	respond.JSON(w, h.log, http.StatusOK, transactionsResponse{
		Status:       respond.StatusSuccess,
		Transactions: payload,
	})
}
