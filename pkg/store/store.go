// Package store persists the catalog mirror, the installed state and the
// user's dependency decisions in a single SQLite database.
//
// All access goes through typed query functions. The database handle is
// limited to one open connection, so writers are serialized, and every
// delete-then-insert replacement runs inside a transaction.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/fsutil"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by modernc.org/sqlite.
	DriverName = "sqlite"

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	// maxInParams bounds the number of ids bound into a single IN (...) clause.
	maxInParams = 500
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// Store wraps the SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != MemoryPath {
		if err := fsutil.EnsureFileDir(path); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := migrateSchema(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("Opened store", logger.Fields{"path": path})
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrateSchema(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, DriverName, driver)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	// m.Close is not called: it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errutils.NewStoreWriteError(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errutils.NewStoreWriteError(op, err)
	}
	return nil
}

// execWrite runs an insert or upsert and reports ErrConflictNoOp when it
// touched no rows.
func execWrite(ctx context.Context, ext sqlx.ExecerContext, op, query string, args ...interface{}) error {
	res, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return errutils.NewStoreWriteError(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errutils.NewStoreWriteError(op, errutils.ErrConflictNoOp)
	}
	return nil
}

// upsert is execWrite with the zero-rows case treated as success.
func upsert(ctx context.Context, ext sqlx.ExecerContext, op, query string, args ...interface{}) error {
	return tolerateNoOp(execWrite(ctx, ext, op, query, args...))
}

func tolerateNoOp(err error) error {
	if errors.Is(err, errutils.ErrConflictNoOp) {
		return nil
	}
	return err
}

// deleteByAddonIDs removes every row of table whose addon_id is in ids.
func deleteByAddonIDs(ctx context.Context, tx *sqlx.Tx, table string, ids []int64) error {
	return deleteByIDs(ctx, tx, table, "addon_id", ids)
}

// deleteByIDs removes every row of table whose column value is in ids, in
// chunks that stay under the SQLite parameter limit.
func deleteByIDs(ctx context.Context, tx *sqlx.Tx, table, column string, ids []int64) error {
	for start := 0; start < len(ids); start += maxInParams {
		end := min(start+maxInParams, len(ids))
		query, args, err := sqlx.In("DELETE FROM "+table+" WHERE "+column+" IN (?)", ids[start:end])
		if err != nil {
			return errutils.NewStoreWriteError("delete "+table, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
			return errutils.NewStoreWriteError("delete "+table, err)
		}
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
