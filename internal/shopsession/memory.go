package shopsession

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. Shops have to
// reinstall after a restart; use the redis or postgres store outside
// local development.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Load(_ context.Context, shop string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[shop]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (s *MemoryStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Shop] = cloneSession(session)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, shop string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, shop)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
