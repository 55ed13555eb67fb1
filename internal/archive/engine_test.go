package archive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"applygate/internal/directory"
	"applygate/internal/ledger"
	"applygate/internal/lifecycle"
	id "applygate/pkg/domain"
	"applygate/pkg/platform/sentinel"
)

type engineFixture struct {
	accounts *lifecycle.InMemoryAccountStore
	archives *InMemoryStore
	records  *directory.InMemoryStore
	entries  *ledger.InMemoryStore
}

func newEngineFixture() *engineFixture {
	return &engineFixture{
		accounts: lifecycle.NewInMemoryAccountStore(),
		archives: NewInMemoryStore(),
		records:  directory.NewInMemoryStore(),
		entries:  ledger.NewInMemoryStore(),
	}
}

func (f *engineFixture) seedScheduled(t *testing.T, userID id.UserID, scheduledAt time.Time) {
	t.Helper()
	requestedAt := scheduledAt.Add(-5 * 24 * time.Hour)
	err := f.accounts.Create(context.Background(), &lifecycle.Account{
		ID:                      userID,
		Email:                   "applicant@example.com",
		CreatedAt:               requestedAt.Add(-30 * 24 * time.Hour),
		DeactivationRequestedAt: &requestedAt,
		DeactivationScheduledAt: &scheduledAt,
	})
	require.NoError(t, err)
}

func TestTake_ArchivesAndFlips(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	userID := id.NewUserID()
	now := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	f.seedScheduled(t, userID, now.Add(-time.Hour))
	require.NoError(t, f.records.CreateProfile(ctx, &directory.Profile{UserID: userID, FirstName: "Jo", LastName: "Cruz"}))
	require.NoError(t, f.entries.Append(ctx, &ledger.Transaction{UserID: userID, Amount: 25, Type: ledger.TypeSignupBonus}))

	record, err := Take(ctx, f.accounts, f.archives, f.records, f.entries, userID, nil, now)
	require.NoError(t, err)

	account, err := f.accounts.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.True(t, account.IsDeactivated)

	live, err := f.archives.FindLiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, live.ID)

	snap, err := DecodeSnapshot(live.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, int64(25), snap.Account.CreditBalance)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "Jo", snap.Profile.FirstName)
}

func TestTake_NotDueLeavesEverythingUntouched(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	userID := id.NewUserID()
	now := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	f.seedScheduled(t, userID, now.Add(24*time.Hour))

	_, err := Take(ctx, f.accounts, f.archives, f.records, f.entries, userID, nil, now)
	require.ErrorIs(t, err, sentinel.ErrInvalidState)

	account, err := f.accounts.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.False(t, account.IsDeactivated)
	_, err = f.archives.FindLiveByUser(ctx, userID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestTake_AlreadyDeactivated(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	userID := id.NewUserID()
	now := time.Now()
	f.seedScheduled(t, userID, now.Add(-time.Hour))

	_, err := Take(ctx, f.accounts, f.archives, f.records, f.entries, userID, nil, now)
	require.NoError(t, err)

	_, err = Take(ctx, f.accounts, f.archives, f.records, f.entries, userID, nil, now)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestRestore_InPlaceReactivation(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	userID := id.NewUserID()
	admin := id.NewUserID()
	now := time.Now()
	f.seedScheduled(t, userID, now.Add(-time.Hour))
	_, err := Take(ctx, f.accounts, f.archives, f.records, f.entries, userID, nil, now)
	require.NoError(t, err)

	record, err := Restore(ctx, f.accounts, f.archives, f.records, userID, admin, now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, record.RestoredAt)
	require.NotNil(t, record.RestoredBy)
	assert.Equal(t, admin, *record.RestoredBy)

	account, err := f.accounts.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.False(t, account.IsDeactivated)
	assert.Nil(t, account.DeactivationRequestedAt)
	assert.Nil(t, account.DeactivationScheduledAt)
}

func TestRestore_RecreatesFromSnapshot(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	userID := id.NewUserID()
	admin := id.NewUserID()
	now := time.Now()
	f.seedScheduled(t, userID, now.Add(-time.Hour))
	require.NoError(t, f.records.CreateProfile(ctx, &directory.Profile{UserID: userID, FirstName: "Lea", LastName: "Reyes"}))
	require.NoError(t, f.records.CreateAddress(ctx, &directory.Address{UserID: userID, Line1: "1 Main", City: "Davao", Country: "PH"}))
	require.NoError(t, f.entries.Append(ctx, &ledger.Transaction{UserID: userID, Amount: 40, Type: ledger.TypeTopUp}))

	_, err := Take(ctx, f.accounts, f.archives, f.records, f.entries, userID, nil, now)
	require.NoError(t, err)

	// Simulate the original row being gone entirely.
	f.accounts = lifecycle.NewInMemoryAccountStore()
	blank := directory.NewInMemoryStore()

	record, err := Restore(ctx, f.accounts, f.archives, blank, userID, admin, now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, record.RestoredAt)

	account, err := f.accounts.FindByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "applicant@example.com", account.Email)
	assert.False(t, account.IsDeactivated)

	// Ledger entries key off the user id, so the credit state carries over.
	balance, err := f.entries.SumByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)

	graph, err := blank.Load(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, graph.Profile)
	assert.Equal(t, "Lea", graph.Profile.FirstName)
	require.NotNil(t, graph.Address)
	assert.Equal(t, "Davao", graph.Address.City)
}

func TestRestore_SecondCallFailsNotFound(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	userID := id.NewUserID()
	admin := id.NewUserID()
	now := time.Now()
	f.seedScheduled(t, userID, now.Add(-time.Hour))
	_, err := Take(ctx, f.accounts, f.archives, f.records, f.entries, userID, nil, now)
	require.NoError(t, err)

	_, err = Restore(ctx, f.accounts, f.archives, f.records, userID, admin, now)
	require.NoError(t, err)

	_, err = Restore(ctx, f.accounts, f.archives, f.records, userID, admin, now)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRestore_AlreadyActiveBlocksAndLeavesRecord(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	userID := id.NewUserID()
	admin := id.NewUserID()
	now := time.Now()
	f.seedScheduled(t, userID, now.Add(-time.Hour))
	record, err := Take(ctx, f.accounts, f.archives, f.records, f.entries, userID, nil, now)
	require.NoError(t, err)

	// A different live account now occupies the identity.
	account, err := f.accounts.FindByID(ctx, userID)
	require.NoError(t, err)
	account.IsDeactivated = false
	account.DeactivationRequestedAt = nil
	account.DeactivationScheduledAt = nil
	account.Email = "someone-else@example.com"
	require.NoError(t, f.accounts.Update(ctx, account))

	_, err = Restore(ctx, f.accounts, f.archives, f.records, userID, admin, now)
	require.ErrorIs(t, err, lifecycle.ErrAlreadyActive)

	live, err := f.archives.FindLiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, live.ID)
	assert.Nil(t, live.RestoredAt)
}
