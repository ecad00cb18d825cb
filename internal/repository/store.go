package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrRolledBack is returned by RunRollback when fn itself succeeded.
var ErrRolledBack = errors.New("transaction rolled back")

// Store is the WalletStore: the repositories plus the transaction boundary
// every mutating operation runs in.
//
// SQLite allows a single writer, so write transactions are serialized by
// writeMu. Sufficiency checks and the writes that depend on them therefore
// see a stable view of the allocation rows.
type Store struct {
	*Repositories
	db      *sql.DB
	writeMu sync.Mutex
}

// NewStore creates a store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Repositories: NewRepositories(db),
		db:           db,
	}
}

// DB returns the underlying pool (used for readiness checks).
func (s *Store) DB() *sql.DB {
	return s.db
}

// RunInTx runs fn in one database transaction and commits if fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(repos *Repositories) error) error {
	return s.run(ctx, true, fn)
}

// RunRollback runs fn in one database transaction and always rolls back.
// It returns fn's error, or nil when fn succeeded.
func (s *Store) RunRollback(ctx context.Context, fn func(repos *Repositories) error) error {
	err := s.run(ctx, false, fn)
	if errors.Is(err, ErrRolledBack) {
		return nil
	}
	return err
}

func (s *Store) run(ctx context.Context, commit bool, fn func(repos *Repositories) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(newRepositories(tx)); err != nil {
		return err
	}
	if !commit {
		return ErrRolledBack
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
