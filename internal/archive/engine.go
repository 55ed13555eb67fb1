package archive

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"applygate/internal/directory"
	"applygate/internal/ledger"
	"applygate/internal/lifecycle"
	id "applygate/pkg/domain"
	"applygate/pkg/platform/sentinel"
)

// Take archives one account: it loads the full record graph, writes the
// snapshot record, then flips is_deactivated through the conditional claim.
// It must run inside the caller's transaction so a failed flip rolls the
// record back; a record without the flag, or the flag without a record, is an
// integrity bug.
//
// Returns sentinel.ErrInvalidState when the account is not due or another
// run already claimed it.
func Take(
	ctx context.Context,
	accounts lifecycle.AccountStore,
	archives Store,
	records directory.Store,
	entries ledger.Store,
	userID id.UserID,
	archivedBy *id.UserID,
	now time.Time,
) (*Record, error) {
	account, err := accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.IsDeactivated || account.DeactivationScheduledAt == nil || account.DeactivationScheduledAt.After(now) {
		return nil, sentinel.ErrInvalidState
	}

	graph, err := records.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance, err := entries.SumByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap := BuildSnapshot(account.Email, account.EmailVerifiedAt, account.CreatedAt, balance, graph)
	encoded, err := EncodeSnapshot(snap)
	if err != nil {
		return nil, err
	}

	record := &Record{
		ID:             id.ArchiveID(uuid.New()),
		OriginalUserID: userID,
		Snapshot:       encoded,
		ArchivedAt:     now,
		ArchivedBy:     archivedBy,
	}
	if err := archives.Insert(ctx, record); err != nil {
		return nil, err
	}

	claimed, err := accounts.MarkDeactivated(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, sentinel.ErrInvalidState
	}
	return record, nil
}

// Restore brings a deactivated account back from its live archive record.
// A still-existing deactivated row is reactivated in place; a missing row is
// recreated from the snapshot along with its profile, address and financial
// records. A live, non-deactivated account blocks the restore entirely.
//
// Must run inside the caller's transaction with the review that triggered it.
func Restore(
	ctx context.Context,
	accounts lifecycle.AccountStore,
	archives Store,
	records directory.Store,
	userID id.UserID,
	restoredBy id.UserID,
	now time.Time,
) (*Record, error) {
	record, err := archives.FindLiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	account, err := accounts.FindByID(ctx, userID)
	switch {
	case err == nil && !account.IsDeactivated:
		return nil, lifecycle.ErrAlreadyActive
	case err == nil:
		// The live row is authoritative; just clear the lifecycle fields.
		account.DeactivationRequestedAt = nil
		account.DeactivationScheduledAt = nil
		account.IsDeactivated = false
		if err := accounts.Update(ctx, account); err != nil {
			return nil, err
		}
	case errors.Is(err, sentinel.ErrNotFound):
		if err := recreateFromSnapshot(ctx, accounts, records, record, userID); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	resolved, err := archives.MarkRestored(ctx, record.ID, restoredBy, now)
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, sentinel.ErrConflict
	}
	restoredAt := now
	record.RestoredAt = &restoredAt
	record.RestoredBy = &restoredBy
	return record, nil
}

func recreateFromSnapshot(
	ctx context.Context,
	accounts lifecycle.AccountStore,
	records directory.Store,
	record *Record,
	userID id.UserID,
) error {
	snap, err := DecodeSnapshot(record.Snapshot)
	if err != nil {
		return err
	}

	if err := accounts.Create(ctx, &lifecycle.Account{
		ID:              userID,
		Email:           snap.Account.Email,
		EmailVerifiedAt: snap.Account.EmailVerifiedAt,
		CreatedAt:       snap.Account.CreatedAt,
	}); err != nil {
		return err
	}

	if p := snap.Profile; p != nil {
		if err := records.CreateProfile(ctx, &directory.Profile{
			ID:          uuid.New(),
			UserID:      userID,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			Phone:       p.Phone,
			BirthDate:   p.BirthDate,
			Nationality: p.Nationality,
		}); err != nil {
			return err
		}
	}
	if a := snap.Address; a != nil {
		if err := records.CreateAddress(ctx, &directory.Address{
			ID:       uuid.New(),
			UserID:   userID,
			Line1:    a.Line1,
			Line2:    a.Line2,
			City:     a.City,
			Province: a.Province,
			Postal:   a.Postal,
			Country:  a.Country,
		}); err != nil {
			return err
		}
	}
	if f := snap.Financial; f != nil {
		if err := records.CreateFinancial(ctx, &directory.Financial{
			ID:            uuid.New(),
			UserID:        userID,
			AnnualIncome:  f.AnnualIncome,
			LiquidAssets:  f.LiquidAssets,
			FundingSource: f.FundingSource,
		}); err != nil {
			return err
		}
	}
	return nil
}
