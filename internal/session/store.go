package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rivertownball/riverchat/internal/log"
)

// Store manages active sessions in memory. Sessions are never persisted;
// the store exists so the HTTP layer can resolve a session ID to the
// live conversation between turns.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	logger   log.Logger
}

// NewStore creates an empty session store.
func NewStore(logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		logger:   logger,
	}
}

// Create registers a new empty session and returns it.
func (st *Store) Create() *Session {
	s := New()

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	st.logger.Debug("session created", "session_id", s.ID)
	return s
}

// Get returns the session with the given ID, or ErrNotFound.
func (st *Store) Get(id uuid.UUID) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete removes a session from the store. Deleting an unknown ID is
// not an error; the operation is idempotent like Reset.
func (st *Store) Delete(id uuid.UUID) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()

	st.logger.Debug("session deleted", "session_id", id)
}

// Len reports the number of active sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
