package lifecycle

import (
	"context"
	"time"

	id "applygate/pkg/domain"
)

// AccountStore persists accounts and their lifecycle fields.
//
// MarkDeactivated is the scheduler's concurrency token: a conditional update
// that flips is_deactivated only when the account is still undeactivated and
// its scheduled date has passed. It reports whether this caller won the
// claim, so two overlapping scheduler runs cannot both archive an account.
type AccountStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*Account, error)
	Create(ctx context.Context, account *Account) error
	Update(ctx context.Context, account *Account) error
	MarkDeactivated(ctx context.Context, userID id.UserID, now time.Time) (bool, error)
	ListDueForDeactivation(ctx context.Context, now time.Time) ([]*Account, error)
	FindByIDs(ctx context.Context, userIDs []id.UserID) ([]*Account, error)
}

// ReactivationStore persists reactivation requests. Create returns
// sentinel.ErrConflict when the user already has a pending request; that
// uniqueness is the only guard against duplicate pleas.
type ReactivationStore interface {
	Create(ctx context.Context, req *ReactivationRequest) error
	FindByID(ctx context.Context, reqID id.ReactivationID) (*ReactivationRequest, error)
	ListPending(ctx context.Context) ([]*ReactivationRequest, error)
	Update(ctx context.Context, req *ReactivationRequest) error
}
