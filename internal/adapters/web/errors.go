package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"inventory-sync/internal/app"
	"inventory-sync/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps application errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrBatchTooLarge):
		writeError(w, r, err.Error(), "BATCH_TOO_LARGE", http.StatusUnprocessableEntity)
	case errors.Is(err, app.ErrInvalidRequest):
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
	case errors.Is(err, core.ErrStoreNotFound):
		writeError(w, r, err.Error(), "STORE_NOT_FOUND", http.StatusNotFound)
	default:
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

func isClientError(err error) bool {
	return errors.Is(err, app.ErrBatchTooLarge) ||
		errors.Is(err, app.ErrInvalidRequest) ||
		errors.Is(err, core.ErrStoreNotFound)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, v, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
