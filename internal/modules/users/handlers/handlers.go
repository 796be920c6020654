// Package handlers provides HTTP handlers for registration, authentication,
// and profile.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
	"github.com/corvidlabs/magpie/internal/modules/users"
	"github.com/corvidlabs/magpie/internal/respond"
)

// Handler handles user HTTP requests
type Handler struct {
	service *users.Service
	log     zerolog.Logger
}

// NewHandler creates a new user handler
func NewHandler(service *users.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "users").Logger(),
	}
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type tokenResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
}

type profileResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	User    *userPayload `json:"user,omitempty"`
}

// HandleCreate handles POST /users
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, h.log, "invalid request body")
		return
	}

	_, token, err := h.service.Register(req.Name, req.Email, req.Password)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, h.log, http.StatusCreated, tokenResponse{
		Status: respond.StatusSuccess,
		Token:  token,
	})
}

// HandleToken handles POST /auth/token
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, h.log, "invalid request body")
		return
	}

	token, err := h.service.Authenticate(req.Email, req.Password)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, h.log, http.StatusOK, tokenResponse{
		Status: respond.StatusSuccess,
		Token:  token,
	})
}

// HandleProfile handles GET /profile (bearer-authenticated)
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	account := domain.MustAccountFromContext(r.Context())

	u, err := h.service.Get(account.ID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}

	respond.JSON(w, h.log, http.StatusOK, profileResponse{
		Status: respond.StatusSuccess,
		User: &userPayload{
			ID:    u.ID.String(),
			Name:  u.Name,
			Email: u.Email,
		},
	})
}
