//go:build integration

package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"applygate/internal/lifecycle"
	id "applygate/pkg/domain"
	"applygate/pkg/platform/sentinel"
	"applygate/pkg/testutil/containers"
)

type PostgresAccountStoreSuite struct {
	suite.Suite
	postgres      *containers.PostgresContainer
	accounts      *lifecycle.PostgresAccountStore
	reactivations *lifecycle.PostgresReactivationStore
}

func TestPostgresAccountStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAccountStoreSuite))
}

func (s *PostgresAccountStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.accounts = lifecycle.NewPostgresAccountStore(s.postgres.DB)
	s.reactivations = lifecycle.NewPostgresReactivationStore(s.postgres.DB)
}

func (s *PostgresAccountStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "reactivation_requests", "accounts")
	s.Require().NoError(err)
}

func newScheduledAccount(scheduledAt time.Time) *lifecycle.Account {
	now := scheduledAt.Add(-5 * 24 * time.Hour)
	return &lifecycle.Account{
		ID:                      id.NewUserID(),
		Email:                   "viewer@example.com",
		CreatedAt:               now,
		DeactivationRequestedAt: &now,
		DeactivationScheduledAt: &scheduledAt,
	}
}

// TestConcurrentMarkDeactivated verifies the conditional update admits exactly
// one winner when scheduler runs overlap.
func (s *PostgresAccountStoreSuite) TestConcurrentMarkDeactivated() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	account := newScheduledAccount(now.Add(-time.Minute))
	s.Require().NoError(s.accounts.Create(ctx, account))

	const goroutines = 20
	var wg sync.WaitGroup
	var wins atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.accounts.MarkDeactivated(ctx, account.ID, now)
			s.NoError(err)
			if claimed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "exactly one claim should win")

	got, err := s.accounts.FindByID(ctx, account.ID)
	s.Require().NoError(err)
	s.True(got.IsDeactivated)
}

func (s *PostgresAccountStoreSuite) TestMarkDeactivatedBeforeSchedule() {
	ctx := context.Background()
	now := time.Now().UTC()
	account := newScheduledAccount(now.Add(24 * time.Hour))
	s.Require().NoError(s.accounts.Create(ctx, account))

	claimed, err := s.accounts.MarkDeactivated(ctx, account.ID, now)
	s.Require().NoError(err)
	s.False(claimed, "a claim before the scheduled time must not win")

	got, err := s.accounts.FindByID(ctx, account.ID)
	s.Require().NoError(err)
	s.False(got.IsDeactivated)
}

func (s *PostgresAccountStoreSuite) TestListDueForDeactivation() {
	ctx := context.Background()
	now := time.Now().UTC()

	due := newScheduledAccount(now.Add(-time.Hour))
	notYet := newScheduledAccount(now.Add(time.Hour))
	active := &lifecycle.Account{ID: id.NewUserID(), Email: "active@example.com", CreatedAt: now}
	s.Require().NoError(s.accounts.Create(ctx, due))
	s.Require().NoError(s.accounts.Create(ctx, notYet))
	s.Require().NoError(s.accounts.Create(ctx, active))

	got, err := s.accounts.ListDueForDeactivation(ctx, now)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(due.ID, got[0].ID)
}

func (s *PostgresAccountStoreSuite) TestFindByIDs() {
	ctx := context.Background()
	now := time.Now().UTC()

	a := &lifecycle.Account{ID: id.NewUserID(), Email: "a@example.com", CreatedAt: now}
	b := &lifecycle.Account{ID: id.NewUserID(), Email: "b@example.com", CreatedAt: now}
	s.Require().NoError(s.accounts.Create(ctx, a))
	s.Require().NoError(s.accounts.Create(ctx, b))

	got, err := s.accounts.FindByIDs(ctx, []id.UserID{a.ID, b.ID, id.NewUserID()})
	s.Require().NoError(err)
	s.Len(got, 2)
}

// TestConcurrentPendingReactivation verifies the partial unique index admits
// one pending request per user under contention.
func (s *PostgresAccountStoreSuite) TestConcurrentPendingReactivation() {
	ctx := context.Background()
	now := time.Now().UTC()
	account := &lifecycle.Account{
		ID:            id.NewUserID(),
		Email:         "deactivated@example.com",
		CreatedAt:     now,
		IsDeactivated: true,
	}
	s.Require().NoError(s.accounts.Create(ctx, account))

	const goroutines = 20
	var wg sync.WaitGroup
	var created atomic.Int32
	var conflicts atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := &lifecycle.ReactivationRequest{
				ID:        id.NewReactivationID(),
				UserID:    account.ID,
				Status:    lifecycle.ReactivationPending,
				Reason:    "please restore my account",
				CreatedAt: now,
			}
			err := s.reactivations.Create(ctx, req)
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			default:
				s.NoError(err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load(), "exactly one pending request should exist")
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresAccountStoreSuite) TestReviewedRequestFreesTheSlot() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	account := &lifecycle.Account{ID: id.NewUserID(), Email: "x@example.com", CreatedAt: now, IsDeactivated: true}
	s.Require().NoError(s.accounts.Create(ctx, account))

	first := &lifecycle.ReactivationRequest{
		ID:        id.NewReactivationID(),
		UserID:    account.ID,
		Status:    lifecycle.ReactivationPending,
		Reason:    "first attempt",
		CreatedAt: now,
	}
	s.Require().NoError(s.reactivations.Create(ctx, first))

	reviewer := id.NewUserID()
	first.Status = lifecycle.ReactivationRejected
	first.ReviewedBy = &reviewer
	first.ReviewedAt = &now
	s.Require().NoError(s.reactivations.Update(ctx, first))

	second := &lifecycle.ReactivationRequest{
		ID:        id.NewReactivationID(),
		UserID:    account.ID,
		Status:    lifecycle.ReactivationPending,
		Reason:    "second attempt",
		CreatedAt: now,
	}
	s.Require().NoError(s.reactivations.Create(ctx, second), "a reviewed request should not block a new one")

	pending, err := s.reactivations.ListPending(ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(second.ID, pending[0].ID)
}
