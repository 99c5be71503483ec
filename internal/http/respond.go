package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/trainbites/trainbites/internal/catalog"
	"github.com/trainbites/trainbites/internal/payment"
	"github.com/trainbites/trainbites/internal/repository"
	"github.com/trainbites/trainbites/internal/service"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

type ErrorResponse struct {
	Error  string   `json:"error"`
	Code   string   `json:"code,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps the service error taxonomy to HTTP statuses.
func handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  validationErr.Message,
			Code:   "validation_error",
			Fields: validationErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, repository.ErrCartNotFound),
		errors.Is(err, repository.ErrItemNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrAgentNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrEmptyOrder):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrProductUnavailable):
		respondError(w, http.StatusUnprocessableEntity, "product_unavailable", err.Error())
	case errors.Is(err, service.ErrInvalidStateTransition):
		respondError(w, http.StatusConflict, "invalid_state_transition", err.Error())
	case errors.Is(err, service.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, payment.ErrProviderUnavailable):
		respondError(w, http.StatusServiceUnavailable, "payment_unavailable", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
