package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Appends to the same session are
// serialized by a per-session lock; unrelated sessions do not contend.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

type memorySession struct {
	mu        sync.Mutex
	turns     []Turn
	createdAt time.Time
	updatedAt time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
	}
}

// Load returns the session's turns in append order. Unknown sessions
// yield an empty slice.
func (s *MemoryStore) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return []Turn{}, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

// Append adds a turn to the session, creating the session lazily.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sess := s.session(sessionID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.turns = append(sess.turns, turn)
	sess.updatedAt = time.Now().UTC()
	return nil
}

// Len reports the number of turns stored for a session.
func (s *MemoryStore) Len(sessionID string) int {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.turns)
}

func (s *MemoryStore) session(sessionID string) *memorySession {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[sessionID]; ok {
		return sess
	}
	now := time.Now().UTC()
	sess = &memorySession{createdAt: now, updatedAt: now}
	s.sessions[sessionID] = sess
	return sess
}
