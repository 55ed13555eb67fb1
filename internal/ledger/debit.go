package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "applygate/pkg/domain"
)

// ApplyDebit checks the balance and appends a negative usage entry through the
// given store. Callers must invoke it inside a transactional boundary that
// also contains whatever action the debit pays for, so the pair commits or
// fails together. This is the single place the never-negative invariant is
// enforced.
func ApplyDebit(ctx context.Context, store Store, userID id.UserID, amount int64, description string, metadata map[string]any, now time.Time) (*Transaction, error) {
	balance, err := store.SumByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientBalance
	}
	tx := &Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      -amount,
		Type:        TypeUsage,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   now,
	}
	if err := store.Append(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}
