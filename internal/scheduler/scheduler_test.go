package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applygate/internal/lifecycle"
	schedmetrics "applygate/internal/scheduler/metrics"
	id "applygate/pkg/domain"
	"applygate/pkg/requestcontext"
)

// Prometheus collectors register globally, so tests share one instance.
var testMetrics = schedmetrics.New()

type fakeDeactivator struct {
	mu       sync.Mutex
	accounts *lifecycle.InMemoryAccountStore
	failFor  map[id.UserID]error
	executed []id.UserID
}

func (f *fakeDeactivator) ExecuteDeactivation(ctx context.Context, userID id.UserID, _ *id.UserID) error {
	f.mu.Lock()
	f.executed = append(f.executed, userID)
	err, shouldFail := f.failFor[userID]
	f.mu.Unlock()
	if shouldFail {
		return err
	}
	_, markErr := f.accounts.MarkDeactivated(ctx, userID, requestcontext.Now(ctx))
	return markErr
}

func newScheduler(accounts *lifecycle.InMemoryAccountStore, deactivator Deactivator, workers int) *Scheduler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(accounts, deactivator, testMetrics, logger, workers)
}

func seedScheduled(t *testing.T, accounts *lifecycle.InMemoryAccountStore, scheduledAt time.Time) id.UserID {
	t.Helper()
	userID := id.NewUserID()
	requestedAt := scheduledAt.Add(-5 * 24 * time.Hour)
	require.NoError(t, accounts.Create(context.Background(), &lifecycle.Account{
		ID:                      userID,
		Email:                   "due@example.com",
		DeactivationRequestedAt: &requestedAt,
		DeactivationScheduledAt: &scheduledAt,
	}))
	return userID
}

func TestRun_GracePeriodBoundary(t *testing.T) {
	day0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	scheduled := day0.Add(5 * 24 * time.Hour)

	accounts := lifecycle.NewInMemoryAccountStore()
	userID := seedScheduled(t, accounts, scheduled)
	deactivator := &fakeDeactivator{accounts: accounts}
	s := newScheduler(accounts, deactivator, 2)

	// Day 4: nothing is due yet.
	day4 := requestcontext.WithTime(context.Background(), day0.Add(4*24*time.Hour))
	report, err := s.Run(day4)
	require.NoError(t, err)
	assert.Equal(t, &Report{}, report)
	assert.Empty(t, deactivator.executed)

	// Day 5: the account is archived and flagged.
	day5 := requestcontext.WithTime(context.Background(), scheduled)
	report, err = s.Run(day5)
	require.NoError(t, err)
	assert.Equal(t, &Report{Processed: 1, Succeeded: 1}, report)

	account, err := accounts.FindByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, account.IsDeactivated)
}

func TestRun_FailureIsolation(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	accounts := lifecycle.NewInMemoryAccountStore()
	healthy1 := seedScheduled(t, accounts, now.Add(-time.Hour))
	broken := seedScheduled(t, accounts, now.Add(-time.Hour))
	healthy2 := seedScheduled(t, accounts, now.Add(-time.Hour))

	deactivator := &fakeDeactivator{
		accounts: accounts,
		failFor:  map[id.UserID]error{broken: errors.New("snapshot write failed")},
	}
	s := newScheduler(accounts, deactivator, 4)

	report, err := s.Run(requestcontext.WithTime(context.Background(), now))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	for _, uid := range []id.UserID{healthy1, healthy2} {
		account, err := accounts.FindByID(context.Background(), uid)
		require.NoError(t, err)
		assert.True(t, account.IsDeactivated)
	}

	// The failed account stays due and is picked up by the next run.
	deactivator.mu.Lock()
	delete(deactivator.failFor, broken)
	deactivator.mu.Unlock()

	report, err = s.Run(requestcontext.WithTime(context.Background(), now.Add(24*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, &Report{Processed: 1, Succeeded: 1}, report)
}

func TestRun_EmptyBatch(t *testing.T) {
	accounts := lifecycle.NewInMemoryAccountStore()
	s := newScheduler(accounts, &fakeDeactivator{accounts: accounts}, 2)
	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Report{}, report)
}
