// Package archive snapshots an account's full record graph into a durable
// archive row at deactivation time and restores accounts from those rows.
package archive

import (
	"time"

	id "applygate/pkg/domain"
)

// Record is one archival event. A user may accumulate several records across
// restore-then-rearchive cycles, but at most one is live (RestoredAt nil) at
// a time.
type Record struct {
	ID             id.ArchiveID
	OriginalUserID id.UserID
	Snapshot       []byte
	ArchivedAt     time.Time
	ArchivedBy     *id.UserID
	RestoredAt     *time.Time
	RestoredBy     *id.UserID
}
