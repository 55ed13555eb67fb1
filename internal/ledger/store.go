package ledger

import (
	"context"

	id "applygate/pkg/domain"
)

// Store persists ledger entries. Implementations must treat the log as
// append-only: no update or delete operations exist.
type Store interface {
	Append(ctx context.Context, tx *Transaction) error
	// SumByUser returns the signed sum of all entries for the user. A user
	// with no entries has balance zero.
	SumByUser(ctx context.Context, userID id.UserID) (int64, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*Transaction, error)
}
