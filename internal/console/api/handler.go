// Package api provides HTTP handlers for the console API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/cloudcrafter/console/internal/console/convo"
	"github.com/cloudcrafter/console/internal/console/store"
)

// Handler provides common handler utilities.
type Handler struct {
	mgr *convo.Manager
	db  *store.Store
}

// NewHandler creates a new Handler.  db may be nil when history persistence
// is disabled.
func NewHandler(mgr *convo.Manager, db *store.Store) *Handler {
	return &Handler{mgr: mgr, db: db}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
