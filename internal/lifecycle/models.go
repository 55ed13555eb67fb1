// Package lifecycle holds the account records and lifecycle state the
// deactivation flow moves through: active, deactivation requested,
// deactivated, restored.
package lifecycle

import (
	"errors"
	"time"

	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
)

var (
	// ErrAlreadyRequested means deactivation is already pending or done.
	ErrAlreadyRequested = errors.New("deactivation already requested")
	// ErrNoPendingRequest means there is no deactivation request to cancel.
	ErrNoPendingRequest = errors.New("no pending deactivation request")
	// ErrPendingExists means an unresolved reactivation request already exists.
	ErrPendingExists = errors.New("pending reactivation request exists")
	// ErrAlreadyActive means a live account occupies the identity a restore
	// would recreate.
	ErrAlreadyActive = errors.New("account already active")
)

// Account is the lifecycle view of a user. DeactivationRequestedAt and
// IsDeactivated are mutually exclusive outside the execution transition.
type Account struct {
	ID                      id.UserID
	Email                   string
	EmailVerifiedAt         *time.Time
	CreatedAt               time.Time
	DeactivationRequestedAt *time.Time
	DeactivationScheduledAt *time.Time
	IsDeactivated           bool
}

// DeactivationPending reports whether a request exists that has not yet been
// executed.
func (a *Account) DeactivationPending() bool {
	return a.DeactivationRequestedAt != nil && !a.IsDeactivated
}

// ReactivationStatus is the review state of a reactivation request.
type ReactivationStatus string

const (
	ReactivationPending  ReactivationStatus = "pending"
	ReactivationApproved ReactivationStatus = "approved"
	ReactivationRejected ReactivationStatus = "rejected"
)

// ReactivationRequest is a deactivated user's plea to get their account back.
// Review is terminal; a reviewed request is never reopened.
type ReactivationRequest struct {
	ID         id.ReactivationID
	UserID     id.UserID
	Status     ReactivationStatus
	Reason     string
	AdminNotes string
	ReviewedBy *id.UserID
	ReviewedAt *time.Time
	CreatedAt  time.Time
}

// ReviewDecision is an admin's verdict on a reactivation request.
type ReviewDecision string

const (
	DecisionApprove ReviewDecision = "approve"
	DecisionReject  ReviewDecision = "reject"
)

// ParseReviewDecision validates external review input.
func ParseReviewDecision(s string) (ReviewDecision, error) {
	switch ReviewDecision(s) {
	case DecisionApprove, DecisionReject:
		return ReviewDecision(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "decision must be approve or reject")
	}
}
