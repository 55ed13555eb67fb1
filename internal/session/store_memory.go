package session

import (
	"context"
	"sync"

	id "applygate/pkg/domain"
)

// InMemoryStore keeps sessions in process memory for tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]Session
	byUser   map[id.UserID]map[id.SessionID]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[id.SessionID]Session),
		byUser:   make(map[id.UserID]map[id.SessionID]struct{}),
	}
}

func (s *InMemoryStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	if s.byUser[session.UserID] == nil {
		s.byUser[session.UserID] = make(map[id.SessionID]struct{})
	}
	s.byUser[session.UserID][session.ID] = struct{}{}
	return nil
}

func (s *InMemoryStore) IsActive(_ context.Context, sessionID id.SessionID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok, nil
}

func (s *InMemoryStore) Invalidate(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(s.sessions, sessionID)
	delete(s.byUser[session.UserID], sessionID)
	return nil
}

func (s *InMemoryStore) InvalidateUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sessionID := range s.byUser[userID] {
		delete(s.sessions, sessionID)
	}
	delete(s.byUser, userID)
	return nil
}
