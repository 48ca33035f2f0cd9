package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/soaringjerry/maat/internal/logging"
	"github.com/soaringjerry/maat/internal/models"
)

// SQLiteStore persists experiments, participants, trials, runs, responses and
// the export manifest.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used for store warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens (creating if needed) the SQLite file at path and applies migrations.
func Open(ctx context.Context, path, migrationsDir string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	conn, err := sqlx.ConnectContext(ctx, "sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite has a single writer; one connection also keeps in-memory databases shared.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if _, err := RunMigrations(ctx, conn.DB, migrationsDir); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return NewSQLiteStore(conn, opts...)
}

// DSN builds a go-sqlite3 connection string with foreign keys enforced.
func DSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + "_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", filepath.ToSlash(path))
}

// NewSQLiteStore wraps an already migrated connection.
func NewSQLiteStore(conn *sqlx.DB, opts ...Option) (*SQLiteStore, error) {
	if conn == nil {
		return nil, errors.New("nil db")
	}
	s := &SQLiteStore{db: conn, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for maintenance commands.
func (s *SQLiteStore) DB() *sqlx.DB { return s.db }

// Counts returns table sizes for the researcher dashboard.
func (s *SQLiteStore) Counts(ctx context.Context) (*models.Counts, error) {
	var c models.Counts
	err := s.db.GetContext(ctx, &c, `SELECT
		(SELECT COUNT(1) FROM experiments) AS experiments,
		(SELECT COUNT(1) FROM participants) AS participants,
		(SELECT COUNT(1) FROM trials) AS trials,
		(SELECT COUNT(1) FROM responses) AS responses,
		(SELECT COUNT(1) FROM export_files) AS export_files`)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// wrapWrite maps uniqueness violations to models.ErrConflict.
func wrapWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, models.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func affected(op string, res interface{ RowsAffected() (int64, error) }) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}
