package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/snapsolve/snapsolve/internal/core"
)

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid body", core.ErrValidation)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Upstream and
// unexpected errors are reduced to a generic message; detail stays in the
// server log only.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, core.ErrAuthRequired),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrSessionExpired):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
	case errors.Is(err, core.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "permission denied"})
	case errors.Is(err, core.ErrInvalidCSRFToken):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid csrf token"})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, core.ErrUpstream):
		log.Printf("upstream failure: %v", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "analysis failed"})
	default:
		log.Printf("unhandled error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
