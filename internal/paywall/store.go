package paywall

import (
	"context"

	id "applygate/pkg/domain"
)

// Store persists disclosure grants. The (viewer, application, field) triple is
// unique; Insert must return sentinel.ErrConflict (wrapped or bare) when the
// triple already exists. That uniqueness is the gate's sole concurrency
// control against double charging.
type Store interface {
	Insert(ctx context.Context, grant *Grant) error
	Exists(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID, fieldKey FieldKey) (bool, error)
	// ListByViewer returns every grant the viewer holds on the application.
	ListByViewer(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID) ([]*Grant, error)
}
