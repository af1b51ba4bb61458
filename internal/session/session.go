// Package session holds per-conversation state for the chat service.
//
// A Session is owned by exactly one conversation: it accumulates the
// message transcript, tracks whether the conversation is mid-escalation
// (waiting for a callback number), and remembers a captured phone
// number for the duration of the escalation flow. Nothing here is
// persisted; a session lives only as long as its conversation, and
// Reset returns it to a blank slate at any time.
package session

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested session does not exist in the store.
var ErrNotFound = errors.New("session not found")

// Role identifies the author of a transcript message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Mode tracks the conversation's escalation state.
type Mode int

const (
	// ModeNormal is the default state: every turn is classified fresh.
	ModeNormal Mode = iota

	// ModeAwaitingPhone means the previous turn asked the user for a
	// callback number, so the next turn routes to escalation regardless
	// of keywords.
	ModeAwaitingPhone
)

// String implements fmt.Stringer for log output.
func (m Mode) String() string {
	switch m {
	case ModeAwaitingPhone:
		return "awaiting_phone"
	default:
		return "normal"
	}
}

// Message is a single transcript entry. Insertion order is significant;
// the transcript renders chronologically.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is the per-conversation state. All methods are safe for
// concurrent use, but the design assumes one turn completes fully
// (including state updates) before the next begins.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu            sync.Mutex
	messages      []Message
	mode          Mode
	capturedPhone string
}

// New creates an empty session with a fresh ID.
func New() *Session {
	return &Session{
		ID:        uuid.New(),
		CreatedAt: time.Now(),
	}
}

// Append adds a message to the end of the transcript.
func (s *Session) Append(role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: role, Content: content})
}

// Messages returns a copy of the transcript in insertion order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Recent returns at most limit of the newest transcript messages,
// oldest first. limit <= 0 returns nothing.
func (s *Session) Recent(limit int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		return nil
	}
	if limit > len(s.messages) {
		limit = len(s.messages)
	}
	return slices.Clone(s.messages[len(s.messages)-limit:])
}

// Len reports the number of transcript messages.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Mode reports the current escalation state.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// AwaitPhone moves the session into the escalation flow. Any previously
// captured phone number is discarded so a stale number can never leak
// into a new escalation.
func (s *Session) AwaitPhone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeAwaitingPhone
	s.capturedPhone = ""
}

// CapturePhone records the canonical callback number. It only takes
// effect while the session is awaiting a phone number; captured_phone
// is never set outside the escalation flow.
func (s *Session) CapturePhone(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode != ModeAwaitingPhone {
		return
	}
	s.capturedPhone = phone
}

// CapturedPhone returns the phone number captured during escalation,
// or "" if none is held.
func (s *Session) CapturedPhone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturedPhone
}

// EndEscalation returns the session to normal mode and clears the
// captured number. Called after a call is placed (or the flow is
// abandoned).
func (s *Session) EndEscalation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeNormal
	s.capturedPhone = ""
}

// Reset clears the transcript, mode, and captured phone number
// unconditionally. Idempotent.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.mode = ModeNormal
	s.capturedPhone = ""
}
