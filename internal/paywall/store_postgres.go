package paywall

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	id "applygate/pkg/domain"
	"applygate/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code raised when the grant's
// primary key (viewer_id, application_id, field_key) already exists.
const uniqueViolation = "23505"

// Querier is satisfied by both *sql.DB and *sql.Tx so the same store can run
// standalone or inside a transaction runner.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists disclosure grants in PostgreSQL. The table's primary
// key carries the uniqueness invariant; a concurrent duplicate insert loses
// the race at the database and surfaces as sentinel.ErrConflict.
type PostgresStore struct {
	db Querier
}

// NewPostgres constructs a PostgreSQL-backed grant store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) Insert(ctx context.Context, grant *Grant) error {
	query := `
		INSERT INTO disclosure_grants (viewer_id, application_id, field_key, cost, granted_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		grant.ViewerID.String(), grant.ApplicationID.String(), grant.FieldKey.String(), grant.Cost, grant.GrantedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert disclosure grant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID, fieldKey FieldKey) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM disclosure_grants
			WHERE viewer_id = $1 AND application_id = $2 AND field_key = $3
		)
	`, viewerID.String(), applicationID.String(), fieldKey.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check disclosure grant: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByViewer(ctx context.Context, viewerID id.UserID, applicationID id.ApplicationID) ([]*Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT viewer_id, application_id, field_key, cost, granted_at
		FROM disclosure_grants
		WHERE viewer_id = $1 AND application_id = $2
		ORDER BY granted_at
	`, viewerID.String(), applicationID.String())
	if err != nil {
		return nil, fmt.Errorf("list disclosure grants: %w", err)
	}
	defer rows.Close()

	var out []*Grant
	for rows.Next() {
		var (
			grant    Grant
			rawView  string
			rawApp   string
			rawField string
		)
		if err := rows.Scan(&rawView, &rawApp, &rawField, &grant.Cost, &grant.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan disclosure grant: %w", err)
		}
		viewerID, err := id.ParseUserID(rawView)
		if err != nil {
			return nil, fmt.Errorf("scan grant viewer: %w", err)
		}
		applicationID, err := id.ParseApplicationID(rawApp)
		if err != nil {
			return nil, fmt.Errorf("scan grant application: %w", err)
		}
		grant.ViewerID = viewerID
		grant.ApplicationID = applicationID
		grant.FieldKey = FieldKey(rawField)
		out = append(out, &grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate disclosure grants: %w", err)
	}
	return out, nil
}
