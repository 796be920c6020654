// Package handlers provides HTTP handlers for the job engine.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/jobs"
	"github.com/corvidlabs/magpie/internal/respond"
)

// Handler handles job HTTP requests
type Handler struct {
	service *jobs.Service
	log     zerolog.Logger
}

// NewHandler creates a new job handler
func NewHandler(service *jobs.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "jobs").Logger(),
	}
}

type jobPayload struct {
	ID         string `json:"id"`
	StrategyID string `json:"strategy_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func newJobPayload(j *jobs.Job) *jobPayload {
	return &jobPayload{
		ID:         j.ID.String(),
		StrategyID: j.StrategyID.String(),
		Status:     string(j.Status),
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}

type createRequest struct {
	StrategyID string `json:"strategy_id"`
	RequestID  string `json:"request_id,omitempty"`
}

type createResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Job     *jobPayload `json:"job,omitempty"`
}

type listResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Jobs    []*jobPayload `json:"jobs"`
}

// HandleCreate handles POST /extractor/jobs
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, h.log, "invalid request body")
		return
	}

	strategyID, err := uuid.Parse(req.StrategyID)
	if err != nil {
		respond.BadRequest(w, h.log, "invalid strategy_id")
		return
	}

	job, err := h.service.Create(strategyID, account.ID, req.RequestID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, h.log, http.StatusCreated, createResponse{
		Status: respond.StatusSuccess,
		Job:    newJobPayload(job),
	})
}

// HandleList handles GET /extractor/jobs
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	jobList, err := h.service.List(account.ID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	payload := make([]*jobPayload, 0, len(jobList))
	for _, j := range jobList {
		payload = append(payload, newJobPayload(j))
	}

	respond.JSON(w, h.log, http.StatusOK, listResponse{
		Status: respond.StatusSuccess,
		Jobs:   payload,
	})
}
