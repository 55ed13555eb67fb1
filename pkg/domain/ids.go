package domain

import (
	"github.com/google/uuid"

	dErrors "applygate/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types keep a viewer's user ID from being
// mixed up with an application or archive ID at compile time.
type (
	// UserID identifies an account, whether applicant, company viewer or admin.
	UserID uuid.UUID

	// ApplicationID identifies a franchise application filed by an applicant.
	ApplicationID uuid.UUID

	// ArchiveID identifies an archive record produced by a deactivation.
	ArchiveID uuid.UUID

	// ReactivationID identifies a reactivation request.
	ReactivationID uuid.UUID

	// SessionID identifies an authenticated session.
	SessionID uuid.UUID
)

// ParseUserID constructs a UserID from external input.
// Errors with CodeInvalidInput on empty, malformed, or nil UUIDs.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

// ParseApplicationID constructs an ApplicationID from external input.
func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s)
	return ApplicationID(u), err
}

// ParseArchiveID constructs an ArchiveID from external input.
func ParseArchiveID(s string) (ArchiveID, error) {
	u, err := parseUUID(s)
	return ArchiveID(u), err
}

// ParseReactivationID constructs a ReactivationID from external input.
func ParseReactivationID(s string) (ReactivationID, error) {
	u, err := parseUUID(s)
	return ReactivationID(u), err
}

// ParseSessionID constructs a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	return SessionID(u), err
}

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewApplicationID() ApplicationID   { return ApplicationID(uuid.New()) }
func NewArchiveID() ArchiveID           { return ArchiveID(uuid.New()) }
func NewReactivationID() ReactivationID { return ReactivationID(uuid.New()) }
func NewSessionID() SessionID           { return SessionID(uuid.New()) }

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id ApplicationID) String() string  { return uuid.UUID(id).String() }
func (id ArchiveID) String() string      { return uuid.UUID(id).String() }
func (id ReactivationID) String() string { return uuid.UUID(id).String() }
func (id SessionID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ApplicationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ArchiveID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ReactivationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
