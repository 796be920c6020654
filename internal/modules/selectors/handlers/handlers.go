// Package handlers provides HTTP handlers for the selector registry.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/selectors"
	"github.com/corvidlabs/magpie/internal/respond"
)

// Handler handles selector HTTP requests
type Handler struct {
	service *selectors.Service
	log     zerolog.Logger
}

// NewHandler creates a new selector handler
func NewHandler(service *selectors.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "selectors").Logger(),
	}
}

type selectorPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Value      string `json:"value"`
	Visibility string `json:"visibility"`
	CreatedAt  string `json:"created_at"`
}

func newSelectorPayload(s *selectors.Selector) *selectorPayload {
	return &selectorPayload{
		ID:         s.ID.String(),
		Name:       s.Name,
		Value:      s.Value,
		Visibility: string(s.Visibility),
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

type createRequest struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Visibility string `json:"visibility"`
}

type createResponse struct {
	Status   string           `json:"status"`
	Message  string           `json:"message,omitempty"`
	Selector *selectorPayload `json:"selector,omitempty"`
}

type listResponse struct {
	Status    string             `json:"status"`
	Message   string             `json:"message,omitempty"`
	Selectors []*selectorPayload `json:"selectors"`
}

// HandleCreate handles POST /extractor/selectors
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, h.log, "invalid request body")
		return
	}

	sel, err := h.service.Create(account.ID, req.Name, req.Value, selectors.Visibility(req.Visibility))
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, h.log, http.StatusCreated, createResponse{
		Status:   respond.StatusSuccess,
		Selector: newSelectorPayload(sel),
	})
}

// HandleList handles GET /extractor/selectors
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	sels, err := h.service.List(account.ID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	payload := make([]*selectorPayload, 0, len(sels))
	for _, s := range sels {
		payload = append(payload, newSelectorPayload(s))
	}

	respond.JSON(w, h.log, http.StatusOK, listResponse{
		Status:    respond.StatusSuccess,
		Selectors: payload,
	})
}

// HandleDelete handles DELETE /extractor/selectors/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, h.log, "invalid selector id")
		return
	}

	if err := h.service.Delete(id, account.ID); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.OK(w, h.log, "selector deleted")
}
