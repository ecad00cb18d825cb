// Package migrations holds the schema history of the wallet store.
//
// Each file named YYYYMMDD-HHmmss-description.go registers one Migration
// from init(). Run applies the ones not yet recorded in schema_migrations,
// oldest first, each inside its own transaction.
package migrations

import (
	"cmp"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Migration is one registered schema change.
type Migration struct {
	Timestamp   string // YYYYMMDD-HHmmss, orders the history
	Description string
	Up          []string
}

// Status pairs a registered migration with the time it was applied.
// AppliedAt is nil while the migration is pending.
type Status struct {
	Timestamp   string
	Description string
	AppliedAt   *time.Time
}

const historyDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at TEXT NOT NULL
)`

var registry []Migration

// Register adds m to the history. Called from init().
func Register(m Migration) {
	registry = append(registry, m)
}

// All returns the registered migrations oldest first.
func All() []Migration {
	out := slices.Clone(registry)
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Timestamp, b.Timestamp) })
	return out
}

// Run applies every pending migration.
func Run(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(historyDDL); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	done, err := history(db)
	if err != nil {
		return err
	}

	for _, m := range All() {
		if _, ok := done[m.Timestamp]; ok {
			continue
		}
		logger.Info("applying migration", "version", m.Timestamp, "description", m.Description)
		if err := apply(db, m); err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.Timestamp, m.Description, err)
		}
	}
	return nil
}

// Statuses reports every registered migration without changing the
// database. A database that was never migrated reports all as pending.
func Statuses(db *sql.DB) ([]Status, error) {
	done, err := history(db)
	if err != nil {
		return nil, err
	}
	all := All()
	out := make([]Status, 0, len(all))
	for _, m := range all {
		s := Status{Timestamp: m.Timestamp, Description: m.Description}
		if at, ok := done[m.Timestamp]; ok {
			s.AppliedAt = &at
		}
		out = append(out, s)
	}
	return out, nil
}

// Latest returns the newest applied version, or "" on a fresh database.
func Latest(db *sql.DB) (string, error) {
	done, err := history(db)
	if err != nil {
		return "", err
	}
	var latest string
	for v := range done {
		latest = max(latest, v)
	}
	return latest, nil
}

// history maps applied versions to their application time.
func history(db *sql.DB) (map[string]time.Time, error) {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]time.Time{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up schema_migrations: %w", err)
	}

	rows, err := db.Query(`SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	done := make(map[string]time.Time)
	for rows.Next() {
		var version, at string
		if err := rows.Scan(&version, &at); err != nil {
			return nil, err
		}
		parsed, _ := time.Parse(time.RFC3339, at)
		done[version] = parsed
	}
	return done, rows.Err()
}

func apply(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.Up {
		if _, err := tx.Exec(stmt); err != nil && !rerunnable(err, stmt) {
			return fmt.Errorf("%w\n%s", err, stmt)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Timestamp, m.Description, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}

// rerunnable reports errors raised by additive DDL that already took effect.
func rerunnable(err error, stmt string) bool {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "duplicate column"):
		return true
	case strings.Contains(msg, "already exists"):
		return strings.Contains(stmt, "CREATE INDEX")
	}
	return false
}
