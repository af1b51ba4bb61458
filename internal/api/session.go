package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rivertownball/riverchat/internal/log"
	"github.com/rivertownball/riverchat/internal/session"
)

// SessionHandler handles session-related HTTP endpoints.
type SessionHandler struct {
	store  *session.Store
	logger log.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store *session.Store, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
}

// SessionResponse is the JSON representation of a session.
type SessionResponse struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Mode      string            `json:"mode"`
	Messages  []MessageResponse `json:"messages,omitempty"`
}

// MessageResponse is one transcript entry.
type MessageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// create registers a new empty session.
func (h *SessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	sess := h.store.Create()
	h.logger.Info("session created", "session_id", sess.ID)

	writeJSON(w, http.StatusCreated, SessionResponse{
		ID:        sess.ID.String(),
		CreatedAt: sess.CreatedAt,
		Mode:      sess.Mode().String(),
	})
}

// get returns a session with its full transcript.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.resolve(w, r)
	if !ok {
		return
	}

	msgs := sess.Messages()
	resp := SessionResponse{
		ID:        sess.ID.String(),
		CreatedAt: sess.CreatedAt,
		Mode:      sess.Mode().String(),
		Messages:  make([]MessageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, MessageResponse{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// delete discards a session. Deleting an unknown ID succeeds; the
// operation is idempotent.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SESSION_ID", "session ID must be a UUID")
		return
	}

	h.store.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// resolve parses the path ID and looks the session up, writing the error
// response itself when either step fails.
func (h *SessionHandler) resolve(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SESSION_ID", "session ID must be a UUID")
		return nil, false
	}

	sess, err := h.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no session with that ID")
		return nil, false
	}
	return sess, true
}
