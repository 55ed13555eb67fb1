// Package session is the active-session registry. Deactivation closes the
// grace-period loophole by invalidating every session a user holds, which the
// auth middleware then observes on the next request.
package session

import (
	"context"
	"time"

	id "applygate/pkg/domain"
)

// Session is one authenticated session.
type Session struct {
	ID        id.SessionID
	UserID    id.UserID
	CreatedAt time.Time
}

type Store interface {
	Save(ctx context.Context, session Session) error
	IsActive(ctx context.Context, sessionID id.SessionID) (bool, error)
	Invalidate(ctx context.Context, sessionID id.SessionID) error
	// InvalidateUser removes every session the user holds. Used for the
	// forced logout on deactivation request.
	InvalidateUser(ctx context.Context, userID id.UserID) error
}
