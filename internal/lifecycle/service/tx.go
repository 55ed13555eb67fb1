package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"applygate/internal/archive"
	"applygate/internal/directory"
	"applygate/internal/lifecycle"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

// LockedTx is the in-memory Tx implementation: one mutex over the whole
// store bundle, with writes staged until the callback succeeds. Archival
// writes the record and then claims the account in separate steps; staging
// keeps an aborted claim from leaving the record behind. Lifecycle
// transitions are infrequent admin and batch operations, so a single lock is
// enough serialization.
type LockedTx struct {
	mu      sync.Mutex
	stores  Stores
	timeout time.Duration
}

func NewLockedTx(stores Stores) *LockedTx {
	return &LockedTx{stores: stores}
}

func (t *LockedTx) RunInTx(ctx context.Context, fn func(s Stores) error) error {
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

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	accounts := &stagedAccounts{base: t.stores.Accounts}
	archives := &stagedArchives{base: t.stores.Archives}
	records := &stagedRecords{base: t.stores.Records}
	reactivations := &stagedReactivations{base: t.stores.Reactivations}
	staged := Stores{
		Accounts: accounts,
		Archives: archives,
		Records:  records,
		// Lifecycle transactions only read the ledger, so it needs no
		// staging.
		Entries:       t.stores.Entries,
		Reactivations: reactivations,
	}
	if err := fn(staged); err != nil {
		return err
	}
	if err := accounts.flush(ctx); err != nil {
		return err
	}
	if err := archives.flush(ctx); err != nil {
		return err
	}
	if err := records.flush(ctx); err != nil {
		return err
	}
	return reactivations.flush(ctx)
}

// stagedAccounts overlays buffered account writes on the base store. Reads
// see the staged state, so a claim observes updates made earlier in the same
// transaction. Flush writes the claim as a plain update; the runner mutex
// keeps the base from changing underneath the condition it already checked.
type stagedAccounts struct {
	base    lifecycle.AccountStore
	pending map[id.UserID]*lifecycle.Account
	created map[id.UserID]bool
}

func (s *stagedAccounts) stage(account *lifecycle.Account) {
	if s.pending == nil {
		s.pending = make(map[id.UserID]*lifecycle.Account)
	}
	copied := *account
	s.pending[account.ID] = &copied
}

func (s *stagedAccounts) FindByID(ctx context.Context, userID id.UserID) (*lifecycle.Account, error) {
	if account, ok := s.pending[userID]; ok {
		copied := *account
		return &copied, nil
	}
	return s.base.FindByID(ctx, userID)
}

func (s *stagedAccounts) Create(ctx context.Context, account *lifecycle.Account) error {
	if _, ok := s.pending[account.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, err := s.base.FindByID(ctx, account.ID); err == nil {
		return sentinel.ErrConflict
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	s.stage(account)
	if s.created == nil {
		s.created = make(map[id.UserID]bool)
	}
	s.created[account.ID] = true
	return nil
}

func (s *stagedAccounts) Update(ctx context.Context, account *lifecycle.Account) error {
	if _, ok := s.pending[account.ID]; !ok {
		if _, err := s.base.FindByID(ctx, account.ID); err != nil {
			return err
		}
	}
	s.stage(account)
	return nil
}

func (s *stagedAccounts) MarkDeactivated(ctx context.Context, userID id.UserID, now time.Time) (bool, error) {
	account, err := s.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if account.IsDeactivated || account.DeactivationScheduledAt == nil || account.DeactivationScheduledAt.After(now) {
		return false, nil
	}
	account.IsDeactivated = true
	s.stage(account)
	return true, nil
}

func (s *stagedAccounts) ListDueForDeactivation(ctx context.Context, now time.Time) ([]*lifecycle.Account, error) {
	list, err := s.base.ListDueForDeactivation(ctx, now)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, account := range list {
		if _, ok := s.pending[account.ID]; !ok {
			out = append(out, account)
		}
	}
	for _, account := range s.pending {
		if account.IsDeactivated || account.DeactivationScheduledAt == nil || account.DeactivationScheduledAt.After(now) {
			continue
		}
		copied := *account
		out = append(out, &copied)
	}
	return out, nil
}

func (s *stagedAccounts) FindByIDs(ctx context.Context, userIDs []id.UserID) ([]*lifecycle.Account, error) {
	var out []*lifecycle.Account
	for _, uid := range userIDs {
		account, err := s.FindByID(ctx, uid)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, nil
}

func (s *stagedAccounts) flush(ctx context.Context) error {
	for _, account := range s.pending {
		var err error
		if s.created[account.ID] {
			err = s.base.Create(ctx, account)
		} else {
			err = s.base.Update(ctx, account)
		}
		if err != nil {
			return err
		}
	}
	s.pending, s.created = nil, nil
	return nil
}

// stagedArchives buffers record inserts and restore marks. FindLiveByUser
// remembers the base records it returned so a later MarkRestored in the same
// transaction can resolve them without a by-ID lookup on the base.
type stagedArchives struct {
	base     archive.Store
	pending  []*archive.Record
	seen     map[id.ArchiveID]*archive.Record
	restored map[id.ArchiveID]restoreMark
}

type restoreMark struct {
	by id.UserID
	at time.Time
}

func (s *stagedArchives) Insert(ctx context.Context, record *archive.Record) error {
	for _, r := range s.pending {
		if r.OriginalUserID == record.OriginalUserID && r.RestoredAt == nil {
			return sentinel.ErrConflict
		}
	}
	live, err := s.base.FindLiveByUser(ctx, record.OriginalUserID)
	switch {
	case err == nil:
		if _, ok := s.restored[live.ID]; !ok {
			return sentinel.ErrConflict
		}
	case !errors.Is(err, sentinel.ErrNotFound):
		return err
	}
	copied := *record
	s.pending = append(s.pending, &copied)
	return nil
}

func (s *stagedArchives) FindLiveByUser(ctx context.Context, userID id.UserID) (*archive.Record, error) {
	for _, r := range s.pending {
		if r.OriginalUserID == userID && r.RestoredAt == nil {
			copied := *r
			return &copied, nil
		}
	}
	record, err := s.base.FindLiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := s.restored[record.ID]; ok {
		return nil, sentinel.ErrNotFound
	}
	if s.seen == nil {
		s.seen = make(map[id.ArchiveID]*archive.Record)
	}
	copied := *record
	s.seen[record.ID] = &copied
	return record, nil
}

func (s *stagedArchives) MarkRestored(_ context.Context, recordID id.ArchiveID, restoredBy id.UserID, at time.Time) (bool, error) {
	for _, r := range s.pending {
		if r.ID != recordID {
			continue
		}
		if r.RestoredAt != nil {
			return false, nil
		}
		restoredAt := at
		r.RestoredAt = &restoredAt
		r.RestoredBy = &restoredBy
		return true, nil
	}
	if _, ok := s.restored[recordID]; ok {
		return false, nil
	}
	record, ok := s.seen[recordID]
	if !ok || record.RestoredAt != nil {
		return false, nil
	}
	if s.restored == nil {
		s.restored = make(map[id.ArchiveID]restoreMark)
	}
	s.restored[recordID] = restoreMark{by: restoredBy, at: at}
	return true, nil
}

func (s *stagedArchives) ListByUser(ctx context.Context, userID id.UserID) ([]*archive.Record, error) {
	list, err := s.base.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, r := range list {
		if mark, ok := s.restored[r.ID]; ok {
			restoredAt := mark.at
			restoredBy := mark.by
			r.RestoredAt = &restoredAt
			r.RestoredBy = &restoredBy
		}
	}
	for _, r := range s.pending {
		if r.OriginalUserID == userID {
			copied := *r
			list = append(list, &copied)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ArchivedAt.Before(list[j].ArchivedAt) })
	return list, nil
}

func (s *stagedArchives) flush(ctx context.Context) error {
	// Restores land before inserts so a restore-then-archive sequence never
	// trips the one-live-record rule.
	for recordID, mark := range s.restored {
		resolved, err := s.base.MarkRestored(ctx, recordID, mark.by, mark.at)
		if err != nil {
			return err
		}
		if !resolved {
			return sentinel.ErrConflict
		}
	}
	for _, r := range s.pending {
		if err := s.base.Insert(ctx, r); err != nil {
			return err
		}
	}
	s.pending, s.seen, s.restored = nil, nil, nil
	return nil
}

// stagedRecords buffers dependent-record creates. Load overlays the staged
// pieces so a restore sees what it just recreated.
type stagedRecords struct {
	base       directory.Store
	profiles   []*directory.Profile
	addresses  []*directory.Address
	financials []*directory.Financial
}

func (s *stagedRecords) Load(ctx context.Context, userID id.UserID) (*directory.Graph, error) {
	graph, err := s.base.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, p := range s.profiles {
		if p.UserID == userID {
			copied := *p
			graph.Profile = &copied
		}
	}
	for _, a := range s.addresses {
		if a.UserID == userID {
			copied := *a
			graph.Address = &copied
		}
	}
	for _, f := range s.financials {
		if f.UserID == userID {
			copied := *f
			graph.Financial = &copied
		}
	}
	return graph, nil
}

func (s *stagedRecords) CreateProfile(_ context.Context, p *directory.Profile) error {
	copied := *p
	s.profiles = append(s.profiles, &copied)
	return nil
}

func (s *stagedRecords) CreateAddress(_ context.Context, a *directory.Address) error {
	copied := *a
	s.addresses = append(s.addresses, &copied)
	return nil
}

func (s *stagedRecords) CreateFinancial(_ context.Context, f *directory.Financial) error {
	copied := *f
	s.financials = append(s.financials, &copied)
	return nil
}

func (s *stagedRecords) flush(ctx context.Context) error {
	for _, p := range s.profiles {
		if err := s.base.CreateProfile(ctx, p); err != nil {
			return err
		}
	}
	for _, a := range s.addresses {
		if err := s.base.CreateAddress(ctx, a); err != nil {
			return err
		}
	}
	for _, f := range s.financials {
		if err := s.base.CreateFinancial(ctx, f); err != nil {
			return err
		}
	}
	s.profiles, s.addresses, s.financials = nil, nil, nil
	return nil
}

// stagedReactivations buffers request creates and updates. Create re-checks
// the one-pending-request rule against both the staged view and the base.
type stagedReactivations struct {
	base    lifecycle.ReactivationStore
	pending map[id.ReactivationID]*lifecycle.ReactivationRequest
	created map[id.ReactivationID]bool
}

func (s *stagedReactivations) stage(req *lifecycle.ReactivationRequest) {
	if s.pending == nil {
		s.pending = make(map[id.ReactivationID]*lifecycle.ReactivationRequest)
	}
	copied := *req
	s.pending[req.ID] = &copied
}

func (s *stagedReactivations) Create(ctx context.Context, req *lifecycle.ReactivationRequest) error {
	for _, staged := range s.pending {
		if staged.UserID == req.UserID && staged.Status == lifecycle.ReactivationPending {
			return sentinel.ErrConflict
		}
	}
	existing, err := s.base.ListPending(ctx)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.UserID != req.UserID {
			continue
		}
		if staged, ok := s.pending[e.ID]; ok && staged.Status != lifecycle.ReactivationPending {
			continue
		}
		return sentinel.ErrConflict
	}
	s.stage(req)
	if s.created == nil {
		s.created = make(map[id.ReactivationID]bool)
	}
	s.created[req.ID] = true
	return nil
}

func (s *stagedReactivations) FindByID(ctx context.Context, reqID id.ReactivationID) (*lifecycle.ReactivationRequest, error) {
	if req, ok := s.pending[reqID]; ok {
		copied := *req
		return &copied, nil
	}
	return s.base.FindByID(ctx, reqID)
}

func (s *stagedReactivations) ListPending(ctx context.Context) ([]*lifecycle.ReactivationRequest, error) {
	list, err := s.base.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, req := range list {
		if staged, ok := s.pending[req.ID]; ok {
			if staged.Status != lifecycle.ReactivationPending {
				continue
			}
			copied := *staged
			out = append(out, &copied)
			continue
		}
		out = append(out, req)
	}
	for reqID, req := range s.pending {
		if !s.created[reqID] || req.Status != lifecycle.ReactivationPending {
			continue
		}
		copied := *req
		out = append(out, &copied)
	}
	return out, nil
}

func (s *stagedReactivations) Update(ctx context.Context, req *lifecycle.ReactivationRequest) error {
	if _, ok := s.pending[req.ID]; !ok {
		if _, err := s.base.FindByID(ctx, req.ID); err != nil {
			return err
		}
	}
	s.stage(req)
	return nil
}

func (s *stagedReactivations) flush(ctx context.Context) error {
	for reqID, req := range s.pending {
		var err error
		if s.created[reqID] {
			err = s.base.Create(ctx, req)
		} else {
			err = s.base.Update(ctx, req)
		}
		if err != nil {
			return err
		}
	}
	s.pending, s.created = nil, nil
	return nil
}
