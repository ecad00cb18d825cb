package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/wallet-engine/internal/config"
	"github.com/jmylchreest/wallet-engine/internal/database"
	"github.com/jmylchreest/wallet-engine/internal/logging"
	"github.com/jmylchreest/wallet-engine/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "Operate a wallet engine deployment",
		Long:          "walletctl runs migrations, funds root allocations, mints service tokens and exports the API document.\nDatabase and catalog settings come from the same environment variables as wallet-api.",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "Print JSON instead of YAML")

	root.AddCommand(
		newMigrateCmd(),
		newMigrationsCmd(),
		newTokenCmd(),
		newRootDepositCmd(),
		newWalletsCmd(),
		newCatalogCmd(),
		newOpenAPICmd(),
	)
	return root
}

// printValue writes v as YAML, or JSON when --json is set.
func printValue(cmd *cobra.Command, v any) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(v)
}

// cliLogger logs to stderr so command output stays parseable.
func cliLogger(cmd *cobra.Command) *slog.Logger {
	return logging.NewWithWriter(cmd.ErrOrStderr(), true, slog.LevelWarn)
}

// openDatabase connects with the server's settings and applies migrations.
func openDatabase(cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := database.New(cfg.DatabaseURL, database.Options{
		TursoURL:          cfg.TursoURL,
		TursoAuthToken:    cfg.TursoAuthToken,
		BusyTimeoutMillis: int(cfg.DatabaseBusyTimeout.Milliseconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.MigrateWithLogger(db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
