package api

import (
	"net/http"

	"github.com/rivertownball/riverchat/internal/router"
	"github.com/rivertownball/riverchat/internal/session"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store *session.Store
	turns *router.Router
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store *session.Store, turns *router.Router) *HealthHandler {
	return &HealthHandler{store: store, turns: turns}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness is a liveness probe endpoint.
// Returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness is a readiness probe endpoint.
// Returns 200 OK once the conversation engine is wired; sessions live in
// memory so there is no backing store to ping.
func (h *HealthHandler) readiness(w http.ResponseWriter, _ *http.Request) {
	if h.store == nil || h.turns == nil {
		http.Error(w, "conversation engine not configured", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
