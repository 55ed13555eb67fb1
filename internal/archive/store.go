package archive

import (
	"context"
	"time"

	id "applygate/pkg/domain"
)

// Store persists archive records.
//
// Insert returns sentinel.ErrConflict when a live record (RestoredAt nil)
// already exists for the user. MarkRestored resolves a live record and
// reports whether this caller did the resolving; a second restore of the
// same record finds nothing live and gets false.
type Store interface {
	Insert(ctx context.Context, record *Record) error
	FindLiveByUser(ctx context.Context, userID id.UserID) (*Record, error)
	MarkRestored(ctx context.Context, recordID id.ArchiveID, restoredBy id.UserID, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Record, error)
}
