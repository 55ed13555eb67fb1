package directory

import (
	"context"

	id "applygate/pkg/domain"
)

// Store reads and writes the account's dependent records. Load never fails on
// absence; a user with no records gets an empty Graph.
type Store interface {
	Load(ctx context.Context, userID id.UserID) (*Graph, error)
	CreateProfile(ctx context.Context, p *Profile) error
	CreateAddress(ctx context.Context, a *Address) error
	CreateFinancial(ctx context.Context, f *Financial) error
}
