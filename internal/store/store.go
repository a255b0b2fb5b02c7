// Package store persists tasks and their bounded history in SQLite. It
// owns schema migration (including forward migration from two legacy
// on-disk layouts) and enforces the upsert-with-history-replacement and
// cascade-delete invariants the rest of the service relies on.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the durable task/history store. All mutations are serialized
// per task id via lockFor; the underlying connection pool is capped to
// one open connection to keep WAL behavior predictable, matching how the teacher's
// own sqlite stores open modernc.org/sqlite.
type Store struct {
	db   *sqlx.DB
	mu   sync.Mutex
	locks map[string]*sync.Mutex
}

// Open opens (creating if absent) a SQLite database at path, applies
// pending migrations, and attempts the one-shot legacy JSON import. It is
// the sole entry point; dbPath rewriting per the configured environment
// variable is the caller's responsibility (internal/config).
func Open(ctx context.Context, path string, legacyJSONPath string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, locks: make(map[string]*sync.Mutex)}

	if err := s.rebuildLegacyNameColumn(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("rebuild legacy schema: %w", err)
	}
	if err := s.runSchemaMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run schema migrations: %w", err)
	}
	if err := s.importLegacyJSON(ctx, legacyJSONPath); err != nil {
		// MigrationError: logged, never fatal — startup proceeds with an
		// empty (or partially imported) task set.
		slog.Error("legacy task import failed", "component", "store", "error", err)
	}

	return s, nil
}

func (s *Store) runSchemaMigrations() error {
	driver, err := sqlite3.WithInstance(s.db.DB, &sqlite3.Config{MultiStatementEnabled: true})
	if err != nil {
		return fmt.Errorf("build migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("build migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// lockFor returns the per-task mutex, creating it on first use. Locks are
// never removed (tasks are few and long-lived relative to process
// lifetime), matching the scheduler's own per-task serialization
// discipline described in §5.
func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}
