package directory

import (
	"context"
	"database/sql"
	"fmt"

	id "applygate/pkg/domain"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so the same store can run
// standalone or inside a transaction runner.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore reads and writes the dependent-record tables in PostgreSQL.
type PostgresStore struct {
	db Querier
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) Load(ctx context.Context, userID id.UserID) (*Graph, error) {
	g := &Graph{}

	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	g.Profile = profile

	address, err := s.loadAddress(ctx, userID)
	if err != nil {
		return nil, err
	}
	g.Address = address

	financial, err := s.loadFinancial(ctx, userID)
	if err != nil {
		return nil, err
	}
	g.Financial = financial

	if g.Affiliations, err = s.loadAffiliations(ctx, userID); err != nil {
		return nil, err
	}
	if g.Attachments, err = s.loadAttachments(ctx, userID); err != nil {
		return nil, err
	}
	if g.Applications, err = s.loadApplications(ctx, userID); err != nil {
		return nil, err
	}
	if g.Company, err = s.loadCompany(ctx, userID); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *PostgresStore) loadProfile(ctx context.Context, userID id.UserID) (*Profile, error) {
	var p Profile
	var rawUser string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, first_name, last_name, phone, birth_date, nationality
		FROM profiles WHERE user_id = $1
	`, userID.String()).Scan(&p.ID, &rawUser, &p.FirstName, &p.LastName, &p.Phone, &p.BirthDate, &p.Nationality)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	p.UserID = userID
	return &p, nil
}

func (s *PostgresStore) loadAddress(ctx context.Context, userID id.UserID) (*Address, error) {
	var a Address
	var rawUser string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, line1, line2, city, province, postal, country
		FROM addresses WHERE user_id = $1
	`, userID.String()).Scan(&a.ID, &rawUser, &a.Line1, &a.Line2, &a.City, &a.Province, &a.Postal, &a.Country)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load address: %w", err)
	}
	a.UserID = userID
	return &a, nil
}

func (s *PostgresStore) loadFinancial(ctx context.Context, userID id.UserID) (*Financial, error) {
	var f Financial
	var rawUser string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, annual_income, liquid_assets, funding_source
		FROM financial_records WHERE user_id = $1
	`, userID.String()).Scan(&f.ID, &rawUser, &f.AnnualIncome, &f.LiquidAssets, &f.FundingSource)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load financial record: %w", err)
	}
	f.UserID = userID
	return &f, nil
}

func (s *PostgresStore) loadAffiliations(ctx context.Context, userID id.UserID) ([]*Affiliation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization, role, since FROM affiliations WHERE user_id = $1 ORDER BY id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("load affiliations: %w", err)
	}
	defer rows.Close()

	var out []*Affiliation
	for rows.Next() {
		a := Affiliation{UserID: userID}
		if err := rows.Scan(&a.ID, &a.Organization, &a.Role, &a.Since); err != nil {
			return nil, fmt.Errorf("scan affiliation: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadAttachments(ctx context.Context, userID id.UserID) ([]*Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, mime_type, storage_key, uploaded_at
		FROM attachments WHERE user_id = $1 ORDER BY uploaded_at, id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	defer rows.Close()

	var out []*Attachment
	for rows.Next() {
		a := Attachment{UserID: userID}
		if err := rows.Scan(&a.ID, &a.FileName, &a.MimeType, &a.StorageKey, &a.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadApplications(ctx context.Context, userID id.UserID) ([]*Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, status, submitted_at
		FROM applications WHERE applicant_id = $1 ORDER BY submitted_at, id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("load applications: %w", err)
	}
	defer rows.Close()

	var out []*Application
	for rows.Next() {
		a := Application{ApplicantID: userID}
		var rawID string
		if err := rows.Scan(&rawID, &a.CompanyID, &a.Status, &a.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		appID, err := id.ParseApplicationID(rawID)
		if err != nil {
			return nil, fmt.Errorf("scan application id: %w", err)
		}
		a.ID = appID
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadCompany(ctx context.Context, userID id.UserID) (*Company, error) {
	var c Company
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug FROM companies WHERE owner_id = $1
	`, userID.String()).Scan(&c.ID, &c.Name, &c.Slug)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load company: %w", err)
	}
	c.OwnerID = userID
	return &c, nil
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, first_name, last_name, phone, birth_date, nationality)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.UserID.String(), p.FirstName, p.LastName, p.Phone, p.BirthDate, p.Nationality)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAddress(ctx context.Context, a *Address) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, line1, line2, city, province, postal, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.UserID.String(), a.Line1, a.Line2, a.City, a.Province, a.Postal, a.Country)
	if err != nil {
		return fmt.Errorf("create address: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateFinancial(ctx context.Context, f *Financial) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO financial_records (id, user_id, annual_income, liquid_assets, funding_source)
		VALUES ($1, $2, $3, $4, $5)
	`, f.ID, f.UserID.String(), f.AnnualIncome, f.LiquidAssets, f.FundingSource)
	if err != nil {
		return fmt.Errorf("create financial record: %w", err)
	}
	return nil
}
