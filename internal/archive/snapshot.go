package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"applygate/internal/directory"
	dErrors "applygate/pkg/domain-errors"
)

// SchemaVersion1 is the only snapshot schema in use. Decoding rejects any
// other version instead of guessing at shape.
const SchemaVersion1 = 1

// Snapshot is the point-in-time copy of an account and its dependent records
// taken immediately before deactivation. Optional sub-records are pointers;
// nil means the account never had one.
type Snapshot struct {
	SchemaVersion int               `json:"schema_version"`
	Account       AccountSnapshot   `json:"account"`
	Profile       *ProfileData      `json:"profile,omitempty"`
	Address       *AddressData      `json:"address,omitempty"`
	Financial     *FinancialData    `json:"financial,omitempty"`
	Affiliations  []AffiliationData `json:"affiliations,omitempty"`
	Attachments   []AttachmentData  `json:"attachments,omitempty"`
	Applications  []ApplicationData `json:"applications,omitempty"`
	Company       *CompanyData      `json:"company,omitempty"`
}

type AccountSnapshot struct {
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CreditBalance   int64      `json:"credit_balance"`
}

type ProfileData struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone,omitempty"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Nationality string     `json:"nationality,omitempty"`
}

type AddressData struct {
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	Province string `json:"province,omitempty"`
	Postal   string `json:"postal,omitempty"`
	Country  string `json:"country"`
}

type FinancialData struct {
	AnnualIncome  int64  `json:"annual_income"`
	LiquidAssets  int64  `json:"liquid_assets"`
	FundingSource string `json:"funding_source,omitempty"`
}

type AffiliationData struct {
	Organization string     `json:"organization"`
	Role         string     `json:"role,omitempty"`
	Since        *time.Time `json:"since,omitempty"`
}

type AttachmentData struct {
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type,omitempty"`
	StorageKey string    `json:"storage_key"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type ApplicationData struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"company_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type CompanyData struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// BuildSnapshot assembles the snapshot from the account's lifecycle fields,
// its record graph and its ledger balance at archival time.
func BuildSnapshot(email string, emailVerifiedAt *time.Time, createdAt time.Time, balance int64, graph *directory.Graph) *Snapshot {
	snap := &Snapshot{
		SchemaVersion: SchemaVersion1,
		Account: AccountSnapshot{
			Email:           email,
			EmailVerifiedAt: emailVerifiedAt,
			CreatedAt:       createdAt,
			CreditBalance:   balance,
		},
	}
	if graph == nil {
		return snap
	}
	if p := graph.Profile; p != nil {
		snap.Profile = &ProfileData{
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			Phone:       p.Phone,
			BirthDate:   p.BirthDate,
			Nationality: p.Nationality,
		}
	}
	if a := graph.Address; a != nil {
		snap.Address = &AddressData{
			Line1:    a.Line1,
			Line2:    a.Line2,
			City:     a.City,
			Province: a.Province,
			Postal:   a.Postal,
			Country:  a.Country,
		}
	}
	if f := graph.Financial; f != nil {
		snap.Financial = &FinancialData{
			AnnualIncome:  f.AnnualIncome,
			LiquidAssets:  f.LiquidAssets,
			FundingSource: f.FundingSource,
		}
	}
	for _, af := range graph.Affiliations {
		snap.Affiliations = append(snap.Affiliations, AffiliationData{
			Organization: af.Organization,
			Role:         af.Role,
			Since:        af.Since,
		})
	}
	for _, at := range graph.Attachments {
		snap.Attachments = append(snap.Attachments, AttachmentData{
			FileName:   at.FileName,
			MimeType:   at.MimeType,
			StorageKey: at.StorageKey,
			UploadedAt: at.UploadedAt,
		})
	}
	for _, ap := range graph.Applications {
		snap.Applications = append(snap.Applications, ApplicationData{
			ID:          ap.ID.String(),
			CompanyID:   ap.CompanyID.String(),
			Status:      ap.Status,
			SubmittedAt: ap.SubmittedAt,
		})
	}
	if c := graph.Company; c != nil {
		snap.Company = &CompanyData{Name: c.Name, Slug: c.Slug}
	}
	return snap
}

// EncodeSnapshot serializes the snapshot for storage.
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a stored snapshot, validating the schema version so
// restoration never trusts a shape it does not understand.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "snapshot is not valid JSON")
	}
	if snap.SchemaVersion != SchemaVersion1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("unsupported snapshot schema version %d", snap.SchemaVersion))
	}
	return &snap, nil
}
