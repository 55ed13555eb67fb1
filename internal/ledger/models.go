// Package ledger is the append-only credit ledger. A user's balance is the
// sum of their transaction amounts; entries are never updated or deleted.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"

	id "applygate/pkg/domain"
)

// ErrInsufficientBalance is returned when a debit would push a balance
// negative. The ledger never permits that, regardless of caller.
var ErrInsufficientBalance = errors.New("insufficient balance")

// TransactionType labels why credits moved.
type TransactionType string

const (
	TypeSignupBonus TransactionType = "signup_bonus"
	TypeTopUp       TransactionType = "top_up"
	TypeUsage       TransactionType = "usage"
	TypeRefund      TransactionType = "refund"
)

// creditTypes are the types allowed on positive entries.
var creditTypes = map[TransactionType]bool{
	TypeSignupBonus: true,
	TypeTopUp:       true,
	TypeRefund:      true,
}

// IsCreditType reports whether the type may appear on a positive entry.
func (t TransactionType) IsCreditType() bool {
	return creditTypes[t]
}

// Transaction is one immutable ledger entry. Amount is signed: positive for
// credits, negative for usage.
type Transaction struct {
	ID          uuid.UUID
	UserID      id.UserID
	Amount      int64
	Type        TransactionType
	Description string
	Metadata    map[string]any
	CreatedAt   time.Time
}
