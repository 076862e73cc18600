package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/FocuswithJustin/strutils/core/errors"
	"github.com/FocuswithJustin/strutils/internal/logging"
)

// APIError is the error payload of a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: message}})
}

// respondRunError maps a host error onto an HTTP status.
func respondRunError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, apperrors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, apperrors.ErrUnsupported):
		respondError(w, http.StatusNotImplemented, "UNSUPPORTED", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "TIMEOUT", err.Error())
	default:
		respondError(w, http.StatusBadGateway, "PLUGIN_ERROR", err.Error())
	}
}
