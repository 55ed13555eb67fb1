package lifecycle

import (
	"context"
	"sync"
	"time"

	id "applygate/pkg/domain"
	"applygate/pkg/platform/sentinel"
)

// InMemoryAccountStore keeps accounts in process memory for tests and local
// runs.
type InMemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[id.UserID]*Account
}

func NewInMemoryAccountStore() *InMemoryAccountStore {
	return &InMemoryAccountStore{accounts: make(map[id.UserID]*Account)}
}

func (s *InMemoryAccountStore) FindByID(_ context.Context, userID id.UserID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *InMemoryAccountStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

func (s *InMemoryAccountStore) Update(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.ID]; !exists {
		return sentinel.ErrNotFound
	}
	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

func (s *InMemoryAccountStore) MarkDeactivated(_ context.Context, userID id.UserID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[userID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if account.IsDeactivated || account.DeactivationScheduledAt == nil || account.DeactivationScheduledAt.After(now) {
		return false, nil
	}
	account.IsDeactivated = true
	return true, nil
}

func (s *InMemoryAccountStore) ListDueForDeactivation(_ context.Context, now time.Time) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*Account
	for _, account := range s.accounts {
		if account.IsDeactivated || account.DeactivationScheduledAt == nil {
			continue
		}
		if !account.DeactivationScheduledAt.After(now) {
			copied := *account
			due = append(due, &copied)
		}
	}
	return due, nil
}

func (s *InMemoryAccountStore) FindByIDs(_ context.Context, userIDs []id.UserID) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Account
	for _, uid := range userIDs {
		if account, ok := s.accounts[uid]; ok {
			copied := *account
			out = append(out, &copied)
		}
	}
	return out, nil
}

// InMemoryReactivationStore keeps reactivation requests in process memory.
type InMemoryReactivationStore struct {
	mu       sync.RWMutex
	requests map[id.ReactivationID]*ReactivationRequest
}

func NewInMemoryReactivationStore() *InMemoryReactivationStore {
	return &InMemoryReactivationStore{requests: make(map[id.ReactivationID]*ReactivationRequest)}
}

func (s *InMemoryReactivationStore) Create(_ context.Context, req *ReactivationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.UserID == req.UserID && existing.Status == ReactivationPending {
			return sentinel.ErrConflict
		}
	}
	copied := *req
	s.requests[req.ID] = &copied
	return nil
}

func (s *InMemoryReactivationStore) FindByID(_ context.Context, reqID id.ReactivationID) (*ReactivationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[reqID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (s *InMemoryReactivationStore) ListPending(_ context.Context) ([]*ReactivationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []*ReactivationRequest
	for _, req := range s.requests {
		if req.Status == ReactivationPending {
			copied := *req
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

func (s *InMemoryReactivationStore) Update(_ context.Context, req *ReactivationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; !exists {
		return sentinel.ErrNotFound
	}
	copied := *req
	s.requests[req.ID] = &copied
	return nil
}
