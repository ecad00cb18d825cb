package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg, cliLogger(cmd))
			if err != nil {
				return err
			}
			defer closeQuietly(db)

			latest, err := database.GetLatestSchemaVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at %s\n", latest)
			return nil
		},
	}
}

type migrationStatus struct {
	Timestamp   string     `json:"timestamp" yaml:"timestamp"`
	Description string     `json:"description" yaml:"description"`
	AppliedAt   *time.Time `json:"appliedAt,omitempty" yaml:"appliedAt,omitempty"`
}

func newMigrationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrations",
		Short: "List applied and pending migrations without applying any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.New(cfg.DatabaseURL, database.Options{
				TursoURL:       cfg.TursoURL,
				TursoAuthToken: cfg.TursoAuthToken,
			})
			if err != nil {
				return err
			}
			defer closeQuietly(db)

			statuses, err := database.MigrationStatus(db)
			if err != nil {
				return err
			}
			out := make([]migrationStatus, len(statuses))
			for i, m := range statuses {
				out[i] = migrationStatus{Timestamp: m.Timestamp, Description: m.Description, AppliedAt: m.AppliedAt}
			}
			return printValue(cmd, out)
		},
	}
}
