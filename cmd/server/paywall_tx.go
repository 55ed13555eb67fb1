package main

import (
	"context"
	"database/sql"
	"time"

	"applygate/internal/ledger"
	"applygate/internal/paywall"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
)

const defaultPaywallTxTimeout = 5 * time.Second

// paywallPostgresTx binds the grant insert and the ledger debit to one
// database transaction, so a lost uniqueness race rolls the debit back.
type paywallPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newPaywallPostgresTx(db *sql.DB) *paywallPostgresTx {
	return &paywallPostgresTx{db: db}
}

func (t *paywallPostgresTx) RunInTx(ctx context.Context, viewerID id.UserID, fn func(grants paywall.Store, entries ledger.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultPaywallTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Distinct-field requests insert non-conflicting grant rows, so grant
	// uniqueness alone cannot stop two of them debiting the same balance.
	if err := acquireUserTxLock(ctx, tx, viewerID); err != nil {
		return err
	}
	if err := fn(paywall.NewPostgresTx(tx), ledger.NewPostgresTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}
