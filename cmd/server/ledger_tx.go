package main

import (
	"context"
	"database/sql"
	"time"

	"applygate/internal/ledger"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
)

const defaultLedgerTxTimeout = 5 * time.Second

type ledgerPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newLedgerPostgresTx(db *sql.DB) *ledgerPostgresTx {
	return &ledgerPostgresTx{db: db}
}

func (t *ledgerPostgresTx) RunInTx(ctx context.Context, userID id.UserID, fn func(store ledger.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLedgerTxTimeout
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

	if err := acquireUserTxLock(ctx, tx, userID); err != nil {
		return err
	}
	if err := fn(ledger.NewPostgresTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// acquireUserTxLock serializes ledger-mutating transactions per user. The
// balance check reads a SUM, so READ COMMITTED alone would let two
// transactions for the same user debit against the same stale balance; the
// advisory lock is released automatically at commit or rollback.
func acquireUserTxLock(ctx context.Context, tx *sql.Tx, userID id.UserID) error {
	if userID.IsNil() {
		return nil
	}
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID.String())
	return err
}
