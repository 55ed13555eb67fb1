// Package directory exposes the account's dependent records: profile,
// address, financial data, affiliations, attachments, applications and
// company. The archival engine reads the whole graph before deactivation and
// restoration recreates the pieces a recovered account needs.
package directory

import (
	"time"

	"github.com/google/uuid"

	id "applygate/pkg/domain"
)

type Profile struct {
	ID          uuid.UUID
	UserID      id.UserID
	FirstName   string
	LastName    string
	Phone       string
	BirthDate   *time.Time
	Nationality string
}

type Address struct {
	ID       uuid.UUID
	UserID   id.UserID
	Line1    string
	Line2    string
	City     string
	Province string
	Postal   string
	Country  string
}

type Financial struct {
	ID            uuid.UUID
	UserID        id.UserID
	AnnualIncome  int64
	LiquidAssets  int64
	FundingSource string
}

type Affiliation struct {
	ID           uuid.UUID
	UserID       id.UserID
	Organization string
	Role         string
	Since        *time.Time
}

type Attachment struct {
	ID         uuid.UUID
	UserID     id.UserID
	FileName   string
	MimeType   string
	StorageKey string
	UploadedAt time.Time
}

type Application struct {
	ID          id.ApplicationID
	ApplicantID id.UserID
	CompanyID   uuid.UUID
	Status      string
	SubmittedAt time.Time
}

type Company struct {
	ID      uuid.UUID
	OwnerID id.UserID
	Name    string
	Slug    string
}

// Graph is the full dependent-record set of one account, loaded in one pass
// for archival. Nil members mean the account never created that record.
type Graph struct {
	Profile      *Profile
	Address      *Address
	Financial    *Financial
	Affiliations []*Affiliation
	Attachments  []*Attachment
	Applications []*Application
	Company      *Company
}
