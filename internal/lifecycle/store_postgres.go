package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	id "applygate/pkg/domain"
	"applygate/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Querier is satisfied by both *sql.DB and *sql.Tx so the same store can run
// standalone or inside a transaction runner.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresAccountStore persists accounts in PostgreSQL.
type PostgresAccountStore struct {
	db Querier
}

func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

// NewPostgresAccountStoreTx binds the store to an open transaction.
func NewPostgresAccountStoreTx(tx *sql.Tx) *PostgresAccountStore {
	return &PostgresAccountStore{db: tx}
}

const accountColumns = `id, email, email_verified_at, created_at,
	deactivation_requested_at, deactivation_scheduled_at, is_deactivated`

func (s *PostgresAccountStore) FindByID(ctx context.Context, userID id.UserID) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, userID.String())
	return scanAccount(row)
}

func (s *PostgresAccountStore) Create(ctx context.Context, account *Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, email_verified_at, created_at,
			deactivation_requested_at, deactivation_scheduled_at, is_deactivated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.ID.String(), account.Email, account.EmailVerifiedAt, account.CreatedAt,
		account.DeactivationRequestedAt, account.DeactivationScheduledAt, account.IsDeactivated)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) Update(ctx context.Context, account *Account) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET email = $2, email_verified_at = $3,
			deactivation_requested_at = $4, deactivation_scheduled_at = $5,
			is_deactivated = $6
		WHERE id = $1
	`, account.ID.String(), account.Email, account.EmailVerifiedAt,
		account.DeactivationRequestedAt, account.DeactivationScheduledAt, account.IsDeactivated)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// MarkDeactivated performs the conditional claim. The WHERE clause is the
// concurrency token: only one transaction can move the row from undeactivated
// to deactivated.
func (s *PostgresAccountStore) MarkDeactivated(ctx context.Context, userID id.UserID, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET is_deactivated = TRUE
		WHERE id = $1
		  AND is_deactivated = FALSE
		  AND deactivation_scheduled_at IS NOT NULL
		  AND deactivation_scheduled_at <= $2
	`, userID.String(), now)
	if err != nil {
		return false, fmt.Errorf("mark account deactivated: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark account deactivated: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresAccountStore) ListDueForDeactivation(ctx context.Context, now time.Time) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE is_deactivated = FALSE
		  AND deactivation_scheduled_at IS NOT NULL
		  AND deactivation_scheduled_at <= $1
		ORDER BY deactivation_scheduled_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list accounts due for deactivation: %w", err)
	}
	defer rows.Close()

	var due []*Account
	for rows.Next() {
		account, err := scanAccountRows(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due accounts: %w", err)
	}
	return due, nil
}

// FindByIDs loads a batch of accounts in one round trip.
func (s *PostgresAccountStore) FindByIDs(ctx context.Context, userIDs []id.UserID) ([]*Account, error) {
	raw := make([]string, 0, len(userIDs))
	for _, uid := range userIDs {
		raw = append(raw, uid.String())
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("load accounts by ids: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		account, err := scanAccountRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row *sql.Row) (*Account, error) {
	account, err := scanAccountFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return account, err
}

func scanAccountRows(rows *sql.Rows) (*Account, error) {
	return scanAccountFrom(rows)
}

func scanAccountFrom(scanner rowScanner) (*Account, error) {
	var (
		account Account
		rawID   string
	)
	err := scanner.Scan(&rawID, &account.Email, &account.EmailVerifiedAt, &account.CreatedAt,
		&account.DeactivationRequestedAt, &account.DeactivationScheduledAt, &account.IsDeactivated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	userID, err := id.ParseUserID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan account id: %w", err)
	}
	account.ID = userID
	return &account, nil
}

// PostgresReactivationStore persists reactivation requests. A partial unique
// index on (user_id) WHERE status = 'pending' backs the one-pending-request
// rule; Create surfaces its violation as sentinel.ErrConflict.
type PostgresReactivationStore struct {
	db Querier
}

func NewPostgresReactivationStore(db *sql.DB) *PostgresReactivationStore {
	return &PostgresReactivationStore{db: db}
}

// NewPostgresReactivationStoreTx binds the store to an open transaction.
func NewPostgresReactivationStoreTx(tx *sql.Tx) *PostgresReactivationStore {
	return &PostgresReactivationStore{db: tx}
}

func (s *PostgresReactivationStore) Create(ctx context.Context, req *ReactivationRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reactivation_requests (id, user_id, status, reason, admin_notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, req.ID.String(), req.UserID.String(), string(req.Status), req.Reason, req.AdminNotes, req.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create reactivation request: %w", err)
	}
	return nil
}

const reactivationColumns = `id, user_id, status, reason, admin_notes, reviewed_by, reviewed_at, created_at`

func (s *PostgresReactivationStore) FindByID(ctx context.Context, reqID id.ReactivationID) (*ReactivationRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reactivationColumns+` FROM reactivation_requests WHERE id = $1`, reqID.String())
	req, err := scanReactivation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return req, err
}

func (s *PostgresReactivationStore) ListPending(ctx context.Context) ([]*ReactivationRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reactivationColumns+`
		FROM reactivation_requests
		WHERE status = 'pending'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending reactivation requests: %w", err)
	}
	defer rows.Close()

	var pending []*ReactivationRequest
	for rows.Next() {
		req, err := scanReactivation(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactivation requests: %w", err)
	}
	return pending, nil
}

func (s *PostgresReactivationStore) Update(ctx context.Context, req *ReactivationRequest) error {
	var reviewedBy any
	if req.ReviewedBy != nil {
		reviewedBy = req.ReviewedBy.String()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE reactivation_requests
		SET status = $2, admin_notes = $3, reviewed_by = $4, reviewed_at = $5
		WHERE id = $1
	`, req.ID.String(), string(req.Status), req.AdminNotes, reviewedBy, req.ReviewedAt)
	if err != nil {
		return fmt.Errorf("update reactivation request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update reactivation request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanReactivation(scanner rowScanner) (*ReactivationRequest, error) {
	var (
		req        ReactivationRequest
		rawID      string
		rawUser    string
		rawStatus  string
		reviewedBy sql.NullString
	)
	err := scanner.Scan(&rawID, &rawUser, &rawStatus, &req.Reason, &req.AdminNotes,
		&reviewedBy, &req.ReviewedAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan reactivation request: %w", err)
	}
	reqID, err := id.ParseReactivationID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan reactivation request id: %w", err)
	}
	userID, err := id.ParseUserID(rawUser)
	if err != nil {
		return nil, fmt.Errorf("scan reactivation request user: %w", err)
	}
	req.ID = reqID
	req.UserID = userID
	req.Status = ReactivationStatus(rawStatus)
	if reviewedBy.Valid {
		reviewer, err := id.ParseUserID(reviewedBy.String)
		if err != nil {
			return nil, fmt.Errorf("scan reactivation reviewer: %w", err)
		}
		req.ReviewedBy = &reviewer
	}
	return &req, nil
}
