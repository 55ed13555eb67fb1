package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"applygate/internal/ledger"
	"applygate/internal/ledger/metrics"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/requestcontext"
)

// Tx provides a transactional boundary for ledger mutations, serialized per
// user: two transactions for the same user must not interleave between the
// balance read and the append. Implementations wrap a database transaction
// holding a per-user advisory lock or, in-memory, a sharded mutex.
type Tx interface {
	RunInTx(ctx context.Context, userID id.UserID, fn func(store ledger.Store) error) error
}

// Service exposes the ledger API surface: derived balances, credits, and
// balance-guarded debits.
type Service struct {
	store   ledger.Store
	tx      Tx
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(store ledger.Store, tx Tx, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, tx: tx, metrics: m, logger: logger}
}

// Balance derives the user's spendable balance from the full transaction
// history. It is computed on demand, never cached authoritatively.
func (s *Service) Balance(ctx context.Context, userID id.UserID) (int64, error) {
	if userID.IsNil() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	sum, err := s.store.SumByUser(ctx, userID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute balance")
	}
	return sum, nil
}

// Credit appends a positive entry. Valid for signup bonuses, top-ups, and
// refunds; amount must be positive.
func (s *Service) Credit(ctx context.Context, userID id.UserID, amount int64, txType ledger.TransactionType, description string) (*ledger.Transaction, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "credit amount must be positive")
	}
	if !txType.IsCreditType() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid credit transaction type")
	}

	tx := &ledger.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Description: description,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.Append(ctx, tx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append credit")
	}
	s.metrics.RecordCredit(string(txType), amount)
	s.logger.InfoContext(ctx, "ledger credit",
		"user_id", userID.String(),
		"amount", amount,
		"type", string(txType),
	)
	return tx, nil
}

// Debit appends a negative usage entry, failing with InsufficientBalance when
// the balance cannot cover it. The check and the append run in one
// transactional boundary.
func (s *Service) Debit(ctx context.Context, userID id.UserID, amount int64, description string) (*ledger.Transaction, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "debit amount must be positive")
	}

	now := requestcontext.Now(ctx)
	var tx *ledger.Transaction
	err := s.tx.RunInTx(ctx, userID, func(store ledger.Store) error {
		var err error
		tx, err = ledger.ApplyDebit(ctx, store, userID, amount, description, nil, now)
		return err
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			s.metrics.RecordInsufficientBalance()
			return nil, dErrors.Wrap(err, dErrors.CodeInsufficientBalance, "balance cannot cover debit")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append debit")
	}
	s.metrics.RecordDebit(amount)
	s.logger.InfoContext(ctx, "ledger debit",
		"user_id", userID.String(),
		"amount", amount,
	)
	return tx, nil
}

// History lists a user's ledger entries oldest first.
func (s *Service) History(ctx context.Context, userID id.UserID) ([]*ledger.Transaction, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}
	entries, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transactions")
	}
	return entries, nil
}
