package ledger

import (
	"context"
	"sync"

	id "applygate/pkg/domain"
)

// InMemoryStore keeps the ledger in process memory for tests and local runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.UserID][]*Transaction
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.UserID][]*Transaction)}
}

func (s *InMemoryStore) Append(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *tx
	s.entries[tx.UserID] = append(s.entries[tx.UserID], &copied)
	return nil
}

func (s *InMemoryStore) SumByUser(_ context.Context, userID id.UserID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum int64
	for _, tx := range s.entries[userID] {
		sum += tx.Amount
	}
	return sum, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Transaction, 0, len(s.entries[userID]))
	for _, tx := range s.entries[userID] {
		copied := *tx
		out = append(out, &copied)
	}
	return out, nil
}
