package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
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

// PostgresStore persists ledger entries in PostgreSQL.
type PostgresStore struct {
	db Querier
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) Append(ctx context.Context, tx *Transaction) error {
	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("marshal transaction metadata: %w", err)
	}
	query := `
		INSERT INTO credit_transactions (id, user_id, amount, type, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		tx.ID, tx.UserID.String(), tx.Amount, string(tx.Type), tx.Description, metadata, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("append credit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) SumByUser(ctx context.Context, userID id.UserID) (int64, error) {
	var sum int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1`,
		userID.String()).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum credit transactions: %w", err)
	}
	return sum, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, amount, type, description, metadata, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var (
			tx       Transaction
			rawUser  string
			rawType  string
			metadata []byte
		)
		if err := rows.Scan(&tx.ID, &rawUser, &tx.Amount, &rawType, &tx.Description, &metadata, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit transaction: %w", err)
		}
		userID, err := id.ParseUserID(rawUser)
		if err != nil {
			return nil, fmt.Errorf("scan credit transaction user: %w", err)
		}
		tx.UserID = userID
		tx.Type = TransactionType(rawType)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal transaction metadata: %w", err)
			}
		}
		out = append(out, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit transactions: %w", err)
	}
	return out, nil
}
