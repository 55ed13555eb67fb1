package archive

import (
	"context"
	"sort"
	"sync"
	"time"

	id "applygate/pkg/domain"
	"applygate/pkg/platform/sentinel"
)

// InMemoryStore keeps archive records in process memory for tests and local
// runs. The one-live-record-per-user rule is checked explicitly, matching the
// partial unique index the postgres store relies on.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.ArchiveID]*Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.ArchiveID]*Record)}
}

func (s *InMemoryStore) Insert(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.OriginalUserID == record.OriginalUserID && existing.RestoredAt == nil {
			return sentinel.ErrConflict
		}
	}
	copied := *record
	s.records[record.ID] = &copied
	return nil
}

func (s *InMemoryStore) FindLiveByUser(_ context.Context, userID id.UserID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.OriginalUserID == userID && record.RestoredAt == nil {
			copied := *record
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) MarkRestored(_ context.Context, recordID id.ArchiveID, restoredBy id.UserID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordID]
	if !ok || record.RestoredAt != nil {
		return false, nil
	}
	restoredAt := at
	record.RestoredAt = &restoredAt
	record.RestoredBy = &restoredBy
	return true, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Record
	for _, record := range s.records {
		if record.OriginalUserID == userID {
			copied := *record
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArchivedAt.Before(out[j].ArchivedAt) })
	return out, nil
}
