// Package handlers provides HTTP handlers for the filter registry.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/filters"
	"github.com/corvidlabs/magpie/internal/respond"
)

// Handler handles filter HTTP requests
type Handler struct {
	service *filters.Service
	log     zerolog.Logger
}

// NewHandler creates a new filter handler
func NewHandler(service *filters.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "filters").Logger(),
	}
}

type filterPayload struct {
	ID        string `json:"id"`
	FieldID   string `json:"field_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	CreatedAt string `json:"created_at"`
}

func newFilterPayload(f *filters.Filter) *filterPayload {
	return &filterPayload{
		ID:        f.ID.String(),
		FieldID:   f.FieldID.String(),
		Name:      f.Name,
		Type:      string(f.Type),
		Value:     f.Value,
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
	}
}

type createRequest struct {
	Name    string `json:"name"`
	FieldID string `json:"field_id"`
	Type    string `json:"type"`
	Value   string `json:"value"`
}

type createResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Filter  *filterPayload `json:"filter,omitempty"`
}

type listResponse struct {
	Status  string           `json:"status"`
	Message string           `json:"message,omitempty"`
	Filters []*filterPayload `json:"filters"`
}

// HandleCreate handles POST /extractor/filters
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, h.log, "invalid request body")
		return
	}

	fieldID, err := uuid.Parse(req.FieldID)
	if err != nil {
		respond.BadRequest(w, h.log, "invalid field_id")
		return
	}

	filter, err := h.service.Create(account.ID, fieldID, req.Name, filters.Type(req.Type), req.Value)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, h.log, http.StatusCreated, createResponse{
		Status: respond.StatusSuccess,
		Filter: newFilterPayload(filter),
	})
}

// HandleList handles GET /extractor/filters
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	filterList, err := h.service.List(account.ID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	payload := make([]*filterPayload, 0, len(filterList))
	for _, f := range filterList {
		payload = append(payload, newFilterPayload(f))
	}

	respond.JSON(w, h.log, http.StatusOK, listResponse{
		Status:  respond.StatusSuccess,
		Filters: payload,
	})
}

// HandleDelete handles DELETE /extractor/filters/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, h.log, "invalid filter id")
		return
	}

	if err := h.service.Delete(id, account.ID); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.OK(w, h.log, "filter deleted")
}
