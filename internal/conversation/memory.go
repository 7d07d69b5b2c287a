package conversation

import (
	"context"
	"sync"
	"time"
)

type key struct {
	userID int64
	chatID int64
}

// MemoryStore keeps sessions in process memory. State is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[key]*Session
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[key]*Session), now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, userID, chatID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key{userID, chatID}]
	if !ok {
		return New(userID, chatID), nil
	}
	return s.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := session.clone()
	stored.UpdatedAt = m.now()
	m.sessions[key{session.UserID, session.ChatID}] = stored
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, key{userID, chatID})
	return nil
}

// clone copies the scratch map so callers never share it with the store
func (s *Session) clone() *Session {
	c := *s
	c.Data = make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		c.Data[k] = v
	}
	return &c
}
