package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"applygate/internal/ledger"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
)

// numShards spreads lock contention across users; one user's debit only
// serializes against that user's other mutations.
const numShards = 64

// defaultTxTimeout bounds how long a ledger transaction may run.
const defaultTxTimeout = 5 * time.Second

// ShardedTx is the in-memory Tx implementation: a sharded mutex over a shared
// store. Debits for the same user hash to the same shard, which is all the
// serialization the balance check needs.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	store   ledger.Store
	timeout time.Duration
}

func NewShardedTx(store ledger.Store) *ShardedTx {
	return &ShardedTx{store: store}
}

func (t *ShardedTx) RunInTx(ctx context.Context, userID id.UserID, fn func(store ledger.Store) error) error {
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

	shard := t.selectShard(userID)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(t.store)
}

func (t *ShardedTx) selectShard(userID id.UserID) int {
	if userID.IsNil() {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID.String()))
	return int(h.Sum32() % numShards)
}
