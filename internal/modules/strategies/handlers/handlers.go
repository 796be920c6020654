// Package handlers provides HTTP handlers for the strategy aggregate.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/strategies"
	"github.com/corvidlabs/magpie/internal/respond"
)

// Handler handles strategy HTTP requests
type Handler struct {
	service *strategies.Service
	log     zerolog.Logger
}

// NewHandler creates a new strategy handler
func NewHandler(service *strategies.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "strategies").Logger(),
	}
}

type createRequest struct {
	Name string `json:"name"`
}

// Strategy payloads ride under the "selector" key. Both consoles read that
// key on create and attach responses, so it stays.
type strategyResponse struct {
	Status   string               `json:"status"`
	Message  string               `json:"message,omitempty"`
	Strategy *strategies.Strategy `json:"selector,omitempty"`
}

type listResponse struct {
	Status     string                 `json:"status"`
	Message    string                 `json:"message,omitempty"`
	Strategies []*strategies.Strategy `json:"strategies"`
}

type memberRequest struct {
	StrategyID string `json:"strategy_id"`
	SelectorID string `json:"selector_id"`
	FieldID    string `json:"field_id"`
	FilterID   string `json:"filter_id"`
}

// HandleCreate handles POST /extractor/strategies
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, h.log, "invalid request body")
		return
	}

	strategy, err := h.service.Create(account.ID, req.Name)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, h.log, http.StatusCreated, strategyResponse{
		Status:   respond.StatusSuccess,
		Strategy: strategy,
	})
}

// HandleList handles GET /extractor/strategies
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	list, err := h.service.List(account.ID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	if list == nil {
		list = []*strategies.Strategy{}
	}

	respond.JSON(w, h.log, http.StatusOK, listResponse{
		Status:     respond.StatusSuccess,
		Strategies: list,
	})
}

// HandleDelete handles DELETE /extractor/strategies/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, h.log, "invalid strategy id")
		return
	}

	if err := h.service.Delete(id, account.ID); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.OK(w, h.log, "strategy deleted")
}

// strategyAndMember pulls the strategy id from the URL and the member id
// from the request body.
func (h *Handler) strategyAndMember(w http.ResponseWriter, r *http.Request, memberField func(memberRequest) string) (strategyID, memberID uuid.UUID, ok bool) {
	strategyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, h.log, "invalid strategy id")
		return uuid.Nil, uuid.Nil, false
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, h.log, "invalid request body")
		return uuid.Nil, uuid.Nil, false
	}

	memberID, err = uuid.Parse(memberField(req))
	if err != nil {
		respond.BadRequest(w, h.log, "invalid member id")
		return uuid.Nil, uuid.Nil, false
	}

	return strategyID, memberID, true
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request, memberField func(memberRequest) string,
	add func(strategyID, memberID, userID uuid.UUID) (*strategies.Strategy, error)) {
	account := domain.MustAccountFromContext(r.Context())

	strategyID, memberID, ok := h.strategyAndMember(w, r, memberField)
	if !ok {
		return
	}

	strategy, err := add(strategyID, memberID, account.ID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, h.log, http.StatusOK, strategyResponse{
		Status:   respond.StatusSuccess,
		Strategy: strategy,
	})
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request, memberField func(memberRequest) string,
	remove func(strategyID, memberID, userID uuid.UUID) error, message string) {
	account := domain.MustAccountFromContext(r.Context())

	strategyID, memberID, ok := h.strategyAndMember(w, r, memberField)
	if !ok {
		return
	}

	if err := remove(strategyID, memberID, account.ID); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.OK(w, h.log, message)
}

// HandleAddSelector handles POST /extractor/strategies/{id}/selectors
func (h *Handler) HandleAddSelector(w http.ResponseWriter, r *http.Request) {
	h.handleAdd(w, r, func(req memberRequest) string { return req.SelectorID }, h.service.AddSelector)
}

// HandleRemoveSelector handles DELETE /extractor/strategies/{id}/selectors
func (h *Handler) HandleRemoveSelector(w http.ResponseWriter, r *http.Request) {
	h.handleRemove(w, r, func(req memberRequest) string { return req.SelectorID }, h.service.RemoveSelector, "selector detached")
}

// handleAddAck attaches a member and acknowledges without a payload. The
// consoles re-fetch after field and filter attaches instead of reading the
// response body.
func (h *Handler) handleAddAck(w http.ResponseWriter, r *http.Request, memberField func(memberRequest) string,
	add func(strategyID, memberID, userID uuid.UUID) (*strategies.Strategy, error), message string) {
	account := domain.MustAccountFromContext(r.Context())

	strategyID, memberID, ok := h.strategyAndMember(w, r, memberField)
	if !ok {
		return
	}

	if _, err := add(strategyID, memberID, account.ID); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.OK(w, h.log, message)
}

// HandleAddField handles POST /extractor/strategies/{id}/fields
func (h *Handler) HandleAddField(w http.ResponseWriter, r *http.Request) {
	h.handleAddAck(w, r, func(req memberRequest) string { return req.FieldID }, h.service.AddField, "field attached")
}

// HandleRemoveField handles DELETE /extractor/strategies/{id}/fields
func (h *Handler) HandleRemoveField(w http.ResponseWriter, r *http.Request) {
	h.handleRemove(w, r, func(req memberRequest) string { return req.FieldID }, h.service.RemoveField, "field detached")
}

// HandleAddFilter handles POST /extractor/strategies/{id}/filters
func (h *Handler) HandleAddFilter(w http.ResponseWriter, r *http.Request) {
	h.handleAddAck(w, r, func(req memberRequest) string { return req.FilterID }, h.service.AddFilter, "filter attached")
}

// HandleRemoveFilter handles DELETE /extractor/strategies/{id}/filters
func (h *Handler) HandleRemoveFilter(w http.ResponseWriter, r *http.Request) {
	h.handleRemove(w, r, func(req memberRequest) string { return req.FilterID }, h.service.RemoveFilter, "filter detached")
}
