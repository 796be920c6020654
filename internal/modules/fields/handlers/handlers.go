// Package handlers provides HTTP handlers for the field registry.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/fields"
	"github.com/corvidlabs/magpie/internal/modules/selectors"
	"github.com/corvidlabs/magpie/internal/respond"
)

// Handler handles field HTTP requests
type Handler struct {
	service *fields.Service
	log     zerolog.Logger
}

// NewHandler creates a new field handler
func NewHandler(service *fields.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "fields").Logger(),
	}
}

type fieldPayload struct {
	ID         string `json:"id"`
	SelectorID string `json:"selector_id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Visibility string `json:"visibility"`
	CreatedAt  string `json:"created_at"`
}

func newFieldPayload(f *fields.Field) *fieldPayload {
	return &fieldPayload{
		ID:         f.ID.String(),
		SelectorID: f.SelectorID.String(),
		Name:       f.Name,
		Type:       string(f.Type),
		Visibility: string(f.Visibility),
		CreatedAt:  f.CreatedAt.Format(time.RFC3339),
	}
}

type createRequest struct {
	Name       string `json:"name"`
	SelectorID string `json:"selector_id"`
	Type       string `json:"type"`
	Visibility string `json:"visibility"`
}

// The create envelope keys the new field under "selector". Both consoles
// read that key, so it stays.
type createResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Field   *fieldPayload `json:"selector,omitempty"`
}

type listResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Fields  []*fieldPayload `json:"fields"`
}

// HandleCreate handles POST /extractor/fields
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, h.log, "invalid request body")
		return
	}

	selectorID, err := uuid.Parse(req.SelectorID)
	if err != nil {
		respond.BadRequest(w, h.log, "invalid selector_id")
		return
	}

	field, err := h.service.Create(account.ID, selectorID, req.Name, fields.Type(req.Type), selectors.Visibility(req.Visibility))
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, h.log, http.StatusCreated, createResponse{
		Status: respond.StatusSuccess,
		Field:  newFieldPayload(field),
	})
}

// HandleList handles GET /extractor/fields
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	fieldList, err := h.service.List(account.ID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	payload := make([]*fieldPayload, 0, len(fieldList))
	for _, f := range fieldList {
		payload = append(payload, newFieldPayload(f))
	}

	respond.JSON(w, h.log, http.StatusOK, listResponse{
		Status: respond.StatusSuccess,
		Fields: payload,
	})
}

// HandleDelete handles DELETE /extractor/fields/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, h.log, "invalid field id")
		return
	}

	if err := h.service.Delete(id, account.ID); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.OK(w, h.log, "field deleted")
}
