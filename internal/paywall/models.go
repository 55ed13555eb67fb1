// Package paywall is the field disclosure gate: per (viewer, application,
// field) grants that are paid for exactly once and permanent thereafter.
package paywall

import (
	"errors"
	"time"

	id "applygate/pkg/domain"
	dErrors "applygate/pkg/domain-errors"
)

// ErrAlreadyDisclosed signals that a grant for the triple already exists.
// Callers normalize it to success: re-requesting a paid field is free.
var ErrAlreadyDisclosed = errors.New("field already disclosed")

// FieldKey identifies one disclosable field of an applicant's application.
// Invariant: the value must be one of the supported field keys.
type FieldKey string

// Disclosable applicant fields. A disclosure grant is scoped to exactly one
// of these per (viewer, application) pair.
const (
	FieldFullName     FieldKey = "full_name"
	FieldEmail        FieldKey = "email"
	FieldPhone        FieldKey = "phone"
	FieldAddress      FieldKey = "address"
	FieldFinancial    FieldKey = "financial"
	FieldAffiliations FieldKey = "affiliations"
	FieldAttachments  FieldKey = "attachments"
)

// validFieldKeys is the single source of truth for disclosable fields.
var validFieldKeys = map[FieldKey]bool{
	FieldFullName:     true,
	FieldEmail:        true,
	FieldPhone:        true,
	FieldAddress:      true,
	FieldFinancial:    true,
	FieldAffiliations: true,
	FieldAttachments:  true,
}

// ParseFieldKey constructs a FieldKey from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseFieldKey(s string) (FieldKey, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "field key cannot be empty")
	}
	k := FieldKey(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown field key")
	}
	return k, nil
}

// IsValid checks if the field key is one of the supported enum values.
func (k FieldKey) IsValid() bool {
	return validFieldKeys[k]
}

func (k FieldKey) String() string {
	return string(k)
}

// Grant records that one field of one application is permanently visible to
// one viewer. Grants are never deleted and never charged again.
type Grant struct {
	ViewerID      id.UserID
	ApplicationID id.ApplicationID
	FieldKey      FieldKey
	Cost          int64
	GrantedAt     time.Time
}
