package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rivertownball/riverchat/internal/log"
	"github.com/rivertownball/riverchat/internal/router"
	"github.com/rivertownball/riverchat/internal/session"
)

// MaxMessageLength bounds a single user utterance.
const MaxMessageLength = 4000

// ChatHandler handles turn endpoints.
//
// Endpoints:
//   - POST /api/chat        - synchronous turn (JSON request/response)
//   - POST /api/chat/stream - streaming turn (SSE - Server-Sent Events)
//
// Both go through the same router so a turn behaves identically
// regardless of transport; the sync endpoint just drains the stream.
type ChatHandler struct {
	store  *session.Store
	turns  *router.Router
	logger log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(store *session.Store, turns *router.Router, logger log.Logger) *ChatHandler {
	return &ChatHandler{store: store, turns: turns, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// ChatRequest is the request body for both turn endpoints.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResponse is the synchronous turn response.
type ChatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// handleChat runs one turn and returns the complete reply as JSON.
func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, sess, ok := h.parseTurn(w, r)
	if !ok {
		return
	}

	reply := h.turns.Route(r.Context(), req.Message, sess)

	text := reply.Text
	if reply.Streaming() {
		var b strings.Builder
		for fragment := range reply.Stream {
			b.WriteString(fragment)
		}
		text = b.String()
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Reply:     text,
		SessionID: sess.ID.String(),
		Mode:      sess.Mode().String(),
	})
}

// SSEEvent payloads. Event types: "chunk" for partial text, "done" for
// the final output, "error" for request failures.
type (
	// SSEChunkData is the data for "chunk" events.
	SSEChunkData struct {
		Text string `json:"text"`
	}

	// SSEDoneData is the data for "done" events.
	SSEDoneData struct {
		Response  string `json:"response"`
		SessionID string `json:"sessionId"`
		Mode      string `json:"mode"`
	}

	// SSEErrorData is the data for "error" events.
	SSEErrorData struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

// handleStream runs one turn and streams the reply as Server-Sent Events.
//
// Event types:
//   - chunk: partial text {"text": "..."}
//   - done:  final reply {"response": "...", "sessionId": "...", "mode": "..."}
//   - error: request failure {"code": "...", "message": "..."}
//
// Routed replies that are not model-generated (order tables, escalation
// prompts) arrive as a single chunk followed by done.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeSSEError(w, flusher, "INVALID_REQUEST", fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if code, msg, valid := validateTurn(req); !valid {
		h.writeSSEError(w, flusher, code, msg)
		return
	}

	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		h.writeSSEError(w, flusher, "INVALID_SESSION_ID", "session_id must be a UUID")
		return
	}
	sess, err := h.store.Get(id)
	if err != nil {
		h.writeSSEError(w, flusher, "SESSION_NOT_FOUND", "no session with that ID")
		return
	}

	ctx := r.Context()
	h.logger.Info("SSE stream started", "session_id", req.SessionID)

	reply := h.turns.Route(ctx, req.Message, sess)

	var full strings.Builder
	if reply.Streaming() {
		for fragment := range reply.Stream {
			select {
			case <-ctx.Done():
				h.logger.Info("client disconnected", "session_id", req.SessionID)
				return
			default:
			}
			full.WriteString(fragment)
			h.writeSSEChunk(w, flusher, fragment)
		}
	} else {
		full.WriteString(reply.Text)
		h.writeSSEChunk(w, flusher, reply.Text)
	}

	h.writeSSEDone(w, flusher, full.String(), sess)
	h.logger.Info("SSE stream completed",
		"session_id", req.SessionID,
		"responseLen", full.Len())
}

// parseTurn decodes and validates a turn request and resolves its
// session, writing the error response itself on failure.
func (h *ChatHandler) parseTurn(w http.ResponseWriter, r *http.Request) (ChatRequest, *session.Session, bool) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return req, nil, false
	}
	if code, msg, valid := validateTurn(req); !valid {
		writeError(w, http.StatusBadRequest, code, msg)
		return req, nil, false
	}

	id, err := uuid.Parse(req.SessionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SESSION_ID", "session_id must be a UUID")
		return req, nil, false
	}
	sess, err := h.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "no session with that ID")
		return req, nil, false
	}
	return req, sess, true
}

func validateTurn(req ChatRequest) (code, message string, valid bool) {
	if req.SessionID == "" {
		return "MISSING_SESSION_ID", "session_id is required", false
	}
	if strings.TrimSpace(req.Message) == "" {
		return "MISSING_MESSAGE", "message is required", false
	}
	if len(req.Message) > MaxMessageLength {
		return "MESSAGE_TOO_LONG", fmt.Sprintf("message exceeds %d characters", MaxMessageLength), false
	}
	return "", "", true
}

// writeSSEChunk writes a chunk event to the SSE stream.
func (h *ChatHandler) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

// writeSSEDone writes a done event to the SSE stream.
func (h *ChatHandler) writeSSEDone(w http.ResponseWriter, flusher http.Flusher, response string, sess *session.Session) {
	data, _ := json.Marshal(SSEDoneData{
		Response:  response,
		SessionID: sess.ID.String(),
		Mode:      sess.Mode().String(),
	})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

// writeSSEError writes an error event to the SSE stream.
func (h *ChatHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
