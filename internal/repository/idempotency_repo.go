package repository

import (
	"context"
	"database/sql"
	"time"
)

// SQLiteIdempotencyRepository implements IdempotencyRepository for SQLite.
type SQLiteIdempotencyRepository struct {
	db querier
}

// NewSQLiteIdempotencyRepository creates a new SQLite idempotency repository.
func NewSQLiteIdempotencyRepository(db querier) *SQLiteIdempotencyRepository {
	return &SQLiteIdempotencyRepository{db: db}
}

func (r *SQLiteIdempotencyRepository) Get(ctx context.Context, kind, transactionID string) (bool, bool, error) {
	var outcome bool
	err := r.db.QueryRowContext(ctx,
		`SELECT outcome FROM idempotency_keys WHERE kind = ? AND transaction_id = ?`,
		kind, transactionID,
	).Scan(&outcome)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return outcome, true, nil
}

// Record fails with a UNIQUE constraint error if the key already exists.
func (r *SQLiteIdempotencyRepository) Record(ctx context.Context, kind, transactionID string, outcome bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (kind, transaction_id, outcome, created_at) VALUES (?, ?, ?, ?)`,
		kind, transactionID, outcome, at.UTC().Format(time.RFC3339),
	)
	return err
}

func (r *SQLiteIdempotencyRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE created_at < ?`,
		before.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
