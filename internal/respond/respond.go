// Package respond writes the JSON envelopes shared by every API handler and
// maps domain error kinds to HTTP status codes.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/corvidlabs/magpie/internal/domain"
)

// Envelope field values used by all responses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorResponse is the generic error envelope.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, log zerolog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// Error maps err to an HTTP status and writes the error envelope. Unknown
// errors become 500 with a generic message so internals never leak.
func Error(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrDanglingReference):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
		message = err.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
		message = err.Error()
	default:
		log.Error().Err(err).Msg("Unhandled error")
	}

	JSON(w, log, status, ErrorResponse{Status: StatusError, Message: message})
}

// StatusResponse is the envelope for responses that carry no payload.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK writes a 200 success envelope with the given message.
func OK(w http.ResponseWriter, log zerolog.Logger, message string) {
	JSON(w, log, http.StatusOK, StatusResponse{Status: StatusSuccess, Message: message})
}

// BadRequest writes a 400 error envelope with the given message.
func BadRequest(w http.ResponseWriter, log zerolog.Logger, message string) {
	JSON(w, log, http.StatusBadRequest, ErrorResponse{Status: StatusError, Message: message})
}
