package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"applygate/internal/ledger"
	"applygate/internal/paywall"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/platform/sentinel"
)

const numShards = 64

const defaultTxTimeout = 5 * time.Second

// ShardedTx is the in-memory Tx implementation. Requests for the same viewer
// hash to the same shard, and writes are staged so a failed grant insert
// leaves no ledger entry behind.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	grants  paywall.Store
	entries ledger.Store
	timeout time.Duration
}

func NewShardedTx(grants paywall.Store, entries ledger.Store) *ShardedTx {
	return &ShardedTx{grants: grants, entries: entries}
}

func (t *ShardedTx) RunInTx(ctx context.Context, viewerID id.UserID, fn func(grants paywall.Store, entries ledger.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(viewerID)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	stagedEntries := &stagedLedger{base: t.entries}
	stagedGrants := &stagedGrants{base: t.grants}
	if err := fn(stagedGrants, stagedEntries); err != nil {
		return err
	}
	if err := stagedGrants.flush(ctx); err != nil {
		return err
	}
	return stagedEntries.flush(ctx)
}

func (t *ShardedTx) selectShard(viewerID id.UserID) int {
	if viewerID.IsNil() {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(viewerID.String()))
	return int(h.Sum32() % numShards)
}

// stagedLedger buffers appends until flush so an aborted transaction leaves
// the underlying store untouched.
type stagedLedger struct {
	base    ledger.Store
	pending []*ledger.Transaction
}

func (s *stagedLedger) Append(_ context.Context, txn *ledger.Transaction) error {
	s.pending = append(s.pending, txn)
	return nil
}

func (s *stagedLedger) SumByUser(ctx context.Context, userID id.UserID) (int64, error) {
	sum, err := s.base.SumByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, txn := range s.pending {
		if txn.UserID == userID {
			sum += txn.Amount
		}
	}
	return sum, nil
}

func (s *stagedLedger) ListByUser(ctx context.Context, userID id.UserID) ([]*ledger.Transaction, error) {
	list, err := s.base.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, txn := range s.pending {
		if txn.UserID == userID {
			list = append(list, txn)
		}
	}
	return list, nil
}

func (s *stagedLedger) flush(ctx context.Context) error {
	for _, txn := range s.pending {
		if err := s.base.Append(ctx, txn); err != nil {
			return err
		}
	}
	s.pending = nil
	return nil
}

// stagedGrants buffers inserts until flush. Exists consults the base store so
// a duplicate surfaces before any write lands.
type stagedGrants struct {
	base    paywall.Store
	pending []*paywall.Grant
}

func (s *stagedGrants) Insert(ctx context.Context, grant *paywall.Grant) error {
	exists, err := s.base.Exists(ctx, grant.ViewerID, grant.ApplicationID, grant.FieldKey)
	if err != nil {
		return err
	}
	if exists {
		return sentinel.ErrConflict
	}
	s.pending = append(s.pending, grant)
	return nil
}

func (s *stagedGrants) Exists(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID, fieldKey paywall.FieldKey) (bool, error) {
	for _, g := range s.pending {
		if g.ViewerID == viewerID && g.ApplicationID == applicationID && g.FieldKey == fieldKey {
			return true, nil
		}
	}
	return s.base.Exists(ctx, viewerID, applicationID, fieldKey)
}

func (s *stagedGrants) ListByViewer(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID) ([]*paywall.Grant, error) {
	list, err := s.base.ListByViewer(ctx, viewerID, applicationID)
	if err != nil {
		return nil, err
	}
	for _, g := range s.pending {
		if g.ViewerID == viewerID && g.ApplicationID == applicationID {
			list = append(list, g)
		}
	}
	return list, nil
}

func (s *stagedGrants) flush(ctx context.Context) error {
	for _, g := range s.pending {
		if err := s.base.Insert(ctx, g); err != nil {
			return err
		}
	}
	s.pending = nil
	return nil
}
