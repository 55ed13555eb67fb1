// Package service implements the account state machine: request, cancel and
// execute deactivation, and the admin-mediated reactivation flow.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"applygate/internal/archive"
	"applygate/internal/directory"
	"applygate/internal/events"
	"applygate/internal/ledger"
	"applygate/internal/lifecycle"
	"applygate/internal/lifecycle/metrics"
	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
	"applygate/pkg/platform/sentinel"
	"applygate/pkg/requestcontext"
)

// Stores bundles everything a lifecycle transaction may touch. Archival and
// restoration write across accounts, archive records, directory records and
// reactivation requests in one atomic unit.
type Stores struct {
	Accounts      lifecycle.AccountStore
	Archives      archive.Store
	Records       directory.Store
	Entries       ledger.Store
	Reactivations lifecycle.ReactivationStore
}

// Tx provides the transactional boundary for lifecycle transitions.
type Tx interface {
	RunInTx(ctx context.Context, fn func(s Stores) error) error
}

// SessionInvalidator force-logs-out every session a user holds.
type SessionInvalidator interface {
	InvalidateUser(ctx context.Context, userID id.UserID) error
}

// PendingReactivation is a pending request joined with the account it
// belongs to, for the admin review queue.
type PendingReactivation struct {
	Request *lifecycle.ReactivationRequest
	Email   string
}

// Service runs the account state machine.
type Service struct {
	accounts      lifecycle.AccountStore
	reactivations lifecycle.ReactivationStore
	tx            Tx
	sessions      SessionInvalidator
	events        events.Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	gracePeriod   time.Duration
	tracer        trace.Tracer
}

func NewService(
	accounts lifecycle.AccountStore,
	reactivations lifecycle.ReactivationStore,
	tx Tx,
	sessions SessionInvalidator,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	gracePeriod time.Duration,
) *Service {
	return &Service{
		accounts:      accounts,
		reactivations: reactivations,
		tx:            tx,
		sessions:      sessions,
		events:        publisher,
		metrics:       m,
		logger:        logger,
		gracePeriod:   gracePeriod,
		tracer:        otel.Tracer("applygate/lifecycle"),
	}
}

// GetAccount loads the lifecycle view of one account.
func (s *Service) GetAccount(ctx context.Context, userID id.UserID) (*lifecycle.Account, error) {
	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return account, nil
}

// RequestDeactivation starts the grace period and immediately force-logs the
// user out, so the grace period cannot be used to keep working. The check and
// the write run inside the lifecycle transaction so they cannot interleave
// with an in-flight archival.
func (s *Service) RequestDeactivation(ctx context.Context, userID id.UserID) (*lifecycle.Account, error) {
	now := requestcontext.Now(ctx)
	requestedAt := now
	scheduledAt := now.Add(s.gracePeriod)

	var account *lifecycle.Account
	err := s.tx.RunInTx(ctx, func(st Stores) error {
		found, err := st.Accounts.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
		}
		if found.DeactivationRequestedAt != nil || found.IsDeactivated {
			return dErrors.Wrap(lifecycle.ErrAlreadyRequested, dErrors.CodeConflict, "deactivation already requested")
		}
		found.DeactivationRequestedAt = &requestedAt
		found.DeactivationScheduledAt = &scheduledAt
		if err := st.Accounts.Update(ctx, found); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record deactivation request")
		}
		account = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.InvalidateUser(ctx, userID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to invalidate sessions")
	}

	s.metrics.RecordDeactivationRequested()
	s.logger.InfoContext(ctx, "deactivation requested",
		"user_id", userID.String(),
		"scheduled_at", scheduledAt,
	)
	s.events.Publish(ctx, events.Event{
		Type:       events.TypeDeactivationRequested,
		UserID:     userID.String(),
		OccurredAt: now,
		Payload:    map[string]any{"scheduled_at": scheduledAt},
	})
	return account, nil
}

// CancelDeactivation withdraws a pending request. Afterwards the account is
// indistinguishable from one that never requested. Runs inside the lifecycle
// transaction so a cancel cannot land between an archival's precondition read
// and its claim.
func (s *Service) CancelDeactivation(ctx context.Context, userID id.UserID) (*lifecycle.Account, error) {
	var account *lifecycle.Account
	err := s.tx.RunInTx(ctx, func(st Stores) error {
		found, err := st.Accounts.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
		}
		if !found.DeactivationPending() {
			return dErrors.Wrap(lifecycle.ErrNoPendingRequest, dErrors.CodeConflict, "no deactivation request to cancel")
		}
		found.DeactivationRequestedAt = nil
		found.DeactivationScheduledAt = nil
		if err := st.Accounts.Update(ctx, found); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel deactivation")
		}
		account = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDeactivationCancelled()
	s.logger.InfoContext(ctx, "deactivation cancelled", "user_id", userID.String())
	s.events.Publish(ctx, events.Event{
		Type:       events.TypeDeactivationCancelled,
		UserID:     userID.String(),
		OccurredAt: requestcontext.Now(ctx),
	})
	return account, nil
}

// ExecuteDeactivation archives the account and flips is_deactivated in one
// transaction. Called by the scheduler once the grace period has elapsed.
func (s *Service) ExecuteDeactivation(ctx context.Context, userID id.UserID, archivedBy *id.UserID) error {
	ctx, span := s.tracer.Start(ctx, "lifecycle.ExecuteDeactivation",
		trace.WithAttributes(attribute.String("user_id", userID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	err := s.tx.RunInTx(ctx, func(st Stores) error {
		_, err := archive.Take(ctx, st.Accounts, st.Archives, st.Records, st.Entries, userID, archivedBy, now)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.Wrap(err, dErrors.CodeConflict, "account is not due for deactivation")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to execute deactivation")
		}
	}

	// Sessions were already invalidated at request time; clear again in case
	// any were created since.
	if err := s.sessions.InvalidateUser(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear sessions after deactivation",
			"user_id", userID.String(),
			"error", err.Error(),
		)
	}

	s.metrics.RecordDeactivationExecuted()
	s.logger.InfoContext(ctx, "account deactivated", "user_id", userID.String())
	s.events.Publish(ctx, events.Event{
		Type:       events.TypeAccountDeactivated,
		UserID:     userID.String(),
		OccurredAt: now,
	})
	return nil
}

// RequestReactivation files a deactivated user's plea for review.
func (s *Service) RequestReactivation(ctx context.Context, userID id.UserID, reason string) (*lifecycle.ReactivationRequest, error) {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !account.IsDeactivated {
		return nil, dErrors.New(dErrors.CodeConflict, "account is not deactivated")
	}

	req := &lifecycle.ReactivationRequest{
		ID:        id.ReactivationID(uuid.New()),
		UserID:    userID,
		Status:    lifecycle.ReactivationPending,
		Reason:    reason,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.reactivations.Create(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(lifecycle.ErrPendingExists, dErrors.CodeConflict, "a reactivation request is already pending")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to file reactivation request")
	}

	s.metrics.RecordReactivationRequested()
	s.logger.InfoContext(ctx, "reactivation requested", "user_id", userID.String())
	s.events.Publish(ctx, events.Event{
		Type:       events.TypeReactivationRequested,
		UserID:     userID.String(),
		OccurredAt: req.CreatedAt,
	})
	return req, nil
}

// ListPendingReactivations returns the admin review queue with account
// emails attached.
func (s *Service) ListPendingReactivations(ctx context.Context) ([]*PendingReactivation, error) {
	pending, err := s.reactivations.ListPending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list reactivation requests")
	}
	if len(pending) == 0 {
		return nil, nil
	}

	userIDs := make([]id.UserID, 0, len(pending))
	for _, req := range pending {
		userIDs = append(userIDs, req.UserID)
	}
	accounts, err := s.accounts.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load accounts for review queue")
	}
	emails := make(map[id.UserID]string, len(accounts))
	for _, account := range accounts {
		emails[account.ID] = account.Email
	}

	out := make([]*PendingReactivation, 0, len(pending))
	for _, req := range pending {
		out = append(out, &PendingReactivation{Request: req, Email: emails[req.UserID]})
	}
	return out, nil
}

// ReviewReactivation resolves a pending request. Approval restores the
// account from its archive record inside the same transaction that marks the
// request approved; rejection just records the verdict. Either way the
// request is terminal.
func (s *Service) ReviewReactivation(ctx context.Context, reqID id.ReactivationID, decision lifecycle.ReviewDecision, adminNotes string) (*lifecycle.ReactivationRequest, error) {
	reviewer := requestcontext.UserID(ctx)
	if reviewer.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "reviewer identity required")
	}

	req, err := s.reactivations.FindByID(ctx, reqID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "reactivation request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load reactivation request")
	}
	if req.Status != lifecycle.ReactivationPending {
		return nil, dErrors.New(dErrors.CodeConflict, "reactivation request already reviewed")
	}

	now := requestcontext.Now(ctx)
	reviewedAt := now
	req.AdminNotes = adminNotes
	req.ReviewedBy = &reviewer
	req.ReviewedAt = &reviewedAt

	if decision == lifecycle.DecisionReject {
		req.Status = lifecycle.ReactivationRejected
		if err := s.reactivations.Update(ctx, req); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record review")
		}
		s.metrics.RecordReactivationReviewed(string(lifecycle.DecisionReject))
		s.logger.InfoContext(ctx, "reactivation rejected",
			"request_id", reqID.String(),
			"user_id", req.UserID.String(),
		)
		s.events.Publish(ctx, events.Event{
			Type:       events.TypeReactivationReviewed,
			UserID:     req.UserID.String(),
			OccurredAt: now,
			Payload:    map[string]any{"decision": "reject"},
		})
		return req, nil
	}

	req.Status = lifecycle.ReactivationApproved
	err = s.tx.RunInTx(ctx, func(st Stores) error {
		if _, err := archive.Restore(ctx, st.Accounts, st.Archives, st.Records, req.UserID, reviewer, now); err != nil {
			return err
		}
		return st.Reactivations.Update(ctx, req)
	})
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrAlreadyActive):
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "a live account already occupies this identity")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "no live archive record for this account")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to restore account")
		}
	}

	s.metrics.RecordReactivationReviewed(string(lifecycle.DecisionApprove))
	s.logger.InfoContext(ctx, "account restored",
		"request_id", reqID.String(),
		"user_id", req.UserID.String(),
	)
	s.events.Publish(ctx, events.Event{
		Type:       events.TypeAccountRestored,
		UserID:     req.UserID.String(),
		OccurredAt: now,
	})
	return req, nil
}
