package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/soaringjerry/maat/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Applies the SQL migrations in MAAT_MIGRATIONS_DIR, or the embedded set
when that directory is unset or empty, to the database at MAAT_DB_PATH.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(cfg.DBPath, "file:") {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		conn, err := sqlx.ConnectContext(cmd.Context(), "sqlite3", db.DSN(cfg.DBPath))
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer func() {
			if cerr := conn.Close(); cerr != nil {
				logger.Warn("close sqlite", "error", cerr)
			}
		}()

		applied, err := db.RunMigrations(cmd.Context(), conn.DB, cfg.MigrationsDir)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
		}
		return nil
	},
}
