package main

import (
	"context"
	"database/sql"
	"time"

	"applygate/internal/archive"
	"applygate/internal/directory"
	"applygate/internal/ledger"
	"applygate/internal/lifecycle"
	lifecycleservice "applygate/internal/lifecycle/service"
	dErrors "applygate/pkg/domain-errors"
)

const defaultLifecycleTxTimeout = 5 * time.Second

// lifecyclePostgresTx hands archival and restore the full store bundle on a
// single database transaction.
type lifecyclePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newLifecyclePostgresTx(db *sql.DB) *lifecyclePostgresTx {
	return &lifecyclePostgresTx{db: db}
}

func (t *lifecyclePostgresTx) RunInTx(ctx context.Context, fn func(st lifecycleservice.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLifecycleTxTimeout
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

	st := lifecycleservice.Stores{
		Accounts:      lifecycle.NewPostgresAccountStoreTx(tx),
		Archives:      archive.NewPostgresTx(tx),
		Records:       directory.NewPostgresTx(tx),
		Entries:       ledger.NewPostgresTx(tx),
		Reactivations: lifecycle.NewPostgresReactivationStoreTx(tx),
	}
	if err := fn(st); err != nil {
		return err
	}
	return tx.Commit()
}
