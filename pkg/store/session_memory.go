package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type memorySession struct {
	userID   string
	issuedAt time.Time
}

// MemorySessionStore hands out opaque tokens kept in-process. Used by tests and
// single-instance development setups without a signing key.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]memorySession)}
}

func (s *MemorySessionStore) NewSession(userID string) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = memorySession{userID: userID, issuedAt: time.Now().UTC()}
	s.mu.Unlock()
	return token, nil
}

func (s *MemorySessionStore) GetUserIDByToken(token string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return "", false, nil
	}
	return sess.userID, true, nil
}

func (s *MemorySessionStore) DeleteSession(token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// RevokeUserSessions drops the user's sessions issued at or before since.
func (s *MemorySessionStore) RevokeUserSessions(userID string, since time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.sessions {
		if sess.userID == userID && !sess.issuedAt.After(since) {
			delete(s.sessions, token)
		}
	}
	return nil
}
