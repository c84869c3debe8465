package httpapi

import (
	"encoding/json"
	"net/http"

	"inferd/internal/llm"
	"inferd/internal/session"
	"inferd/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// loadStatus maps load failures onto HTTP status codes.
func loadStatus(err error) int {
	switch {
	case session.IsModelTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case session.IsUnsupportedQuantization(err):
		return http.StatusUnprocessableEntity
	case llm.IsUnavailable(err):
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// generateStatus maps generation entry failures onto HTTP status codes.
// Failures after the first streamed token never reach this; they ride the
// terminal NDJSON line instead.
func generateStatus(err error) int {
	switch {
	case session.IsNotLoaded(err), session.IsAlreadyGenerating(err):
		return http.StatusConflict
	case session.IsTokenization(err):
		return http.StatusBadRequest
	case llm.IsUnavailable(err):
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}
