package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Raumain/flashcards/cmd/flashcards-api/middleware"
)

// ReadyFunc reports whether the service dependencies are usable.
type ReadyFunc func(ctx context.Context) error

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "service": "flashcards"})
}

// Ready returns the GET /ready handler.
func Ready(check ReadyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := check(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}
}

// Me handles GET /api/v1/me.
func Me(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, middleware.UserFromContext(r.Context()))
}
