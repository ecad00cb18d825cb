// Package database handles database connections and migrations.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tursodatabase/go-libsql"

	"github.com/jmylchreest/wallet-engine/internal/database/migrations"
)

// Options configures how New connects.
type Options struct {
	// TursoURL and TursoAuthToken enable embedded replica mode: the local
	// file named by the DSN is synced with the remote Turso database.
	TursoURL       string
	TursoAuthToken string
	// BusyTimeoutMillis bounds how long a connection waits on a locked database.
	BusyTimeoutMillis int
}

// New creates a new database connection using libsql.
// Supports:
//   - Local files: DATABASE_URL="file:wallets.db"
//   - Embedded replica: TURSO_URL + TURSO_AUTH_TOKEN
//   - Local libsql server: `turso dev` with DATABASE_URL="http://127.0.0.1:8080"
func New(dsn string, opts Options) (*sql.DB, error) {
	var db *sql.DB

	if opts.TursoURL != "" && opts.TursoAuthToken != "" {
		dbPath := strings.TrimPrefix(dsn, "file:")
		dbPath = strings.Split(dbPath, "?")[0]

		connector, err := libsql.NewEmbeddedReplicaConnector(dbPath, opts.TursoURL,
			libsql.WithAuthToken(opts.TursoAuthToken),
			libsql.WithReadYourWrites(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Turso connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		var err error
		db, err = sql.Open("libsql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	if err := configure(db, opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func configure(db *sql.DB, opts Options) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if opts.BusyTimeoutMillis > 0 {
		// The PRAGMA echoes the new value as a row; libsql rejects Exec on it.
		var applied int
		if err := db.QueryRow(fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeoutMillis)).Scan(&applied); err != nil {
			return fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// MigrateWithLogger applies pending migrations, logging each one.
func MigrateWithLogger(db *sql.DB, logger *slog.Logger) error {
	return migrations.Run(db, logger)
}

// MigrationStatus lists every known migration and when it was applied.
func MigrationStatus(db *sql.DB) ([]migrations.Status, error) {
	return migrations.Statuses(db)
}

// GetLatestSchemaVersion returns the newest applied migration version.
func GetLatestSchemaVersion(db *sql.DB) (string, error) {
	return migrations.Latest(db)
}
