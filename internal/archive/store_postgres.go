package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

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

// PostgresStore persists archive records. A partial unique index on
// (original_user_id) WHERE restored_at IS NULL carries the one-live-record
// rule.
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

func (s *PostgresStore) Insert(ctx context.Context, record *Record) error {
	var archivedBy any
	if record.ArchivedBy != nil {
		archivedBy = record.ArchivedBy.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO archive_records (id, original_user_id, snapshot, archived_at, archived_by)
		VALUES ($1, $2, $3, $4, $5)
	`, record.ID.String(), record.OriginalUserID.String(), record.Snapshot, record.ArchivedAt, archivedBy)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert archive record: %w", err)
	}
	return nil
}

const archiveColumns = `id, original_user_id, snapshot, archived_at, archived_by, restored_at, restored_by`

func (s *PostgresStore) FindLiveByUser(ctx context.Context, userID id.UserID) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+archiveColumns+`
		FROM archive_records
		WHERE original_user_id = $1 AND restored_at IS NULL
	`, userID.String())
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return record, err
}

func (s *PostgresStore) MarkRestored(ctx context.Context, recordID id.ArchiveID, restoredBy id.UserID, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE archive_records
		SET restored_at = $2, restored_by = $3
		WHERE id = $1 AND restored_at IS NULL
	`, recordID.String(), at, restoredBy.String())
	if err != nil {
		return false, fmt.Errorf("mark archive record restored: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark archive record restored: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+archiveColumns+`
		FROM archive_records
		WHERE original_user_id = $1
		ORDER BY archived_at
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list archive records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive records: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		record     Record
		rawID      string
		rawUser    string
		archivedBy sql.NullString
		restoredBy sql.NullString
	)
	err := scanner.Scan(&rawID, &rawUser, &record.Snapshot, &record.ArchivedAt,
		&archivedBy, &record.RestoredAt, &restoredBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan archive record: %w", err)
	}
	recordID, err := id.ParseArchiveID(rawID)
	if err != nil {
		return nil, fmt.Errorf("scan archive record id: %w", err)
	}
	userID, err := id.ParseUserID(rawUser)
	if err != nil {
		return nil, fmt.Errorf("scan archive record user: %w", err)
	}
	record.ID = recordID
	record.OriginalUserID = userID
	if archivedBy.Valid {
		actor, err := id.ParseUserID(archivedBy.String)
		if err != nil {
			return nil, fmt.Errorf("scan archive record actor: %w", err)
		}
		record.ArchivedBy = &actor
	}
	if restoredBy.Valid {
		actor, err := id.ParseUserID(restoredBy.String)
		if err != nil {
			return nil, fmt.Errorf("scan archive record actor: %w", err)
		}
		record.RestoredBy = &actor
	}
	return &record, nil
}
