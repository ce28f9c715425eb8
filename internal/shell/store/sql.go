package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// =============================================================================
// SQLStore
// =============================================================================

// SQLStore implements Store on SQLite or PostgreSQL. Queries are written
// with ? placeholders and rebound for the active driver.
type SQLStore struct {
	db     *sqlx.DB
	exec   executor
	tx     *sqlx.Tx
	driver string
}

// NewStore opens the database for driver, checks the connection and runs
// the embedded migrations for that dialect.
func NewStore(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "_foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_foreign_keys=on"
		}
	case DriverPostgres:
	default:
		return nil, NewStoreError("NewStore", "", "", fmt.Sprintf("driver %q", driver), ErrUnsupportedDriver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, NewStoreError("NewStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// A single connection keeps an in-memory SQLite database alive and
	// serializes writers.
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB, driver); err != nil {
		db.Close()
		return nil, NewStoreError("NewStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return newSQLStore(db), nil
}

// newSQLStore wraps an open connection without running migrations.
func newSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, exec: db, driver: db.DriverName()}
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB, driver string) error {
	var (
		dbDriver database.Driver
		dir      string
		err      error
	)
	switch driver {
	case DriverSQLite:
		dir = "migrations/sqlite"
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case DriverPostgres:
		dir = "migrations/postgres"
		dbDriver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		return ErrUnsupportedDriver
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Driver returns the database/sql driver name.
func (s *SQLStore) Driver() string {
	return s.driver
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection. It is a no-op inside a transaction.
func (s *SQLStore) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

// =============================================================================
// Transaction Support
// =============================================================================

// WithTx runs fn against a transaction-bound copy of the store. fn's error
// rolls the transaction back and is returned unchanged. Nested calls join
// the outer transaction.
func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &SQLStore{db: s.db, exec: tx, tx: tx, driver: s.driver}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Shared Helpers
// =============================================================================

// isUniqueViolation reports whether err is a unique constraint failure on
// table.column. PostgreSQL names constraints <table>_<column>_key and
// <table>_pkey.
func isUniqueViolation(err error, table, column string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return false
		}
		if column == "id" && pgErr.ConstraintName == table+"_pkey" {
			return true
		}
		return pgErr.ConstraintName == table+"_"+column+"_key"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+table+"."+column)
}

// isForeignKeyViolation reports whether err is a foreign key failure.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t := parseTime(*s)
	return &t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// hasJSON reports whether a JSON column holds a value worth decoding.
func hasJSON(s string) bool {
	return s != "" && s != "null"
}

// rowsAffected maps a zero-row write to ErrNotFound.
func rowsAffected(result sql.Result, op, entity, id string) error {
	n, _ := result.RowsAffected()
	if n == 0 {
		return NewStoreError(op, entity, id, entity+" not found", ErrNotFound)
	}
	return nil
}

// deleteByID removes one row from table.
func deleteByID(ctx context.Context, exec executor, op, table, entity, id string) error {
	result, err := exec.ExecContext(ctx, exec.Rebind(`DELETE FROM `+table+` WHERE id = ?`), id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return NewStoreError(op, entity, id, entity+" is still referenced", ErrForeignKey)
		}
		return NewStoreError(op, entity, id, err.Error(), err)
	}
	return rowsAffected(result, op, entity, id)
}

// getByID loads one row from table into dest.
func getByID(ctx context.Context, exec executor, dest any, op, table, columns, entity, id string) error {
	query := exec.Rebind(`SELECT ` + columns + ` FROM ` + table + ` WHERE id = ?`)
	if err := exec.GetContext(ctx, dest, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewStoreError(op, entity, id, entity+" not found", ErrNotFound)
		}
		return NewStoreError(op, entity, id, err.Error(), err)
	}
	return nil
}

// whereClause joins conditions with AND.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
