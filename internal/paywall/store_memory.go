package paywall

import (
	"context"
	"sync"

	id "applygate/pkg/domain"
	"applygate/pkg/platform/sentinel"
)

type grantKey struct {
	viewerID      id.UserID
	applicationID id.ApplicationID
	fieldKey      FieldKey
}

// InMemoryStore keeps grants in process memory for tests and local runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	grants map[grantKey]*Grant
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{grants: make(map[grantKey]*Grant)}
}

func (s *InMemoryStore) Insert(_ context.Context, grant *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{grant.ViewerID, grant.ApplicationID, grant.FieldKey}
	if _, ok := s.grants[key]; ok {
		return sentinel.ErrConflict
	}
	copied := *grant
	s.grants[key] = &copied
	return nil
}

func (s *InMemoryStore) Exists(_ context.Context, viewerID id.UserID, applicationID id.ApplicationID, fieldKey FieldKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[grantKey{viewerID, applicationID, fieldKey}]
	return ok, nil
}

func (s *InMemoryStore) ListByViewer(_ context.Context, viewerID id.UserID, applicationID id.ApplicationID) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Grant
	for key, grant := range s.grants {
		if key.viewerID == viewerID && key.applicationID == applicationID {
			copied := *grant
			out = append(out, &copied)
		}
	}
	return out, nil
}
