// Package store owns the client's embedded SQLite database. It opens the
// database lazily, applies migrations and hands out repositories bound to
// the open handle.
//
// A store that failed to open stays unavailable: Open keeps returning
// common.ErrStoreUnavailable and callers fall back to remote-only mode.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/notekeeper/internal/client/migrations"
	"github.com/dmitrijs2005/notekeeper/internal/client/repositories/assets"
	"github.com/dmitrijs2005/notekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/notekeeper/internal/client/repositories/notes"
	"github.com/dmitrijs2005/notekeeper/internal/client/repositories/pending"
	"github.com/dmitrijs2005/notekeeper/internal/common"
	"github.com/dmitrijs2005/notekeeper/internal/filex"
	"github.com/dmitrijs2005/notekeeper/internal/logging"
	_ "modernc.org/sqlite"
)

// Store is safe for concurrent use.
type Store struct {
	path   string
	logger logging.Logger

	mu      sync.Mutex
	db      *sql.DB
	openErr error

	notes    *notes.SQLiteRepository
	assets   *assets.SQLiteRepository
	pending  *pending.SQLiteRepository
	metadata *metadata.SQLiteRepository
}

func New(path string, logger logging.Logger) *Store {
	return &Store{path: path, logger: logger.With("component", "store")}
}

// dsn enables WAL and a busy timeout so the sync engine and direct writes
// do not fail on a momentarily locked database.
func dsn(path string) string {
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Open opens the database and applies migrations. It is idempotent; after a
// failure it returns the recorded error wrapped in ErrStoreUnavailable
// without trying again.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if s.openErr != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, s.openErr)
	}

	db, err := s.open(ctx)
	if err != nil {
		s.openErr = err
		s.logger.Error(ctx, "local store unavailable, continuing without cache", "path", s.path, "error", err)
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	s.db = db
	s.notes = notes.NewSQLiteRepository(db, s.logger)
	s.assets = assets.NewSQLiteRepository(db)
	s.pending = pending.NewSQLiteRepository(db)
	s.metadata = metadata.NewSQLiteRepository(db)
	s.logger.Debug(ctx, "local store opened", "path", s.path)
	return nil
}

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	if err := filex.EnsureDir(filepath.Dir(s.path)); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(s.path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Ready reports whether the store is open.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db != nil
}

// Err returns the recorded open failure, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openErr
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// DB returns the underlying handle or nil when the store is not open.
func (s *Store) DB() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// Notes returns the note repository or ErrStoreUnavailable.
func (s *Store) Notes() (notes.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, common.ErrStoreUnavailable
	}
	return s.notes, nil
}

func (s *Store) Assets() (assets.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, common.ErrStoreUnavailable
	}
	return s.assets, nil
}

func (s *Store) Pending() (pending.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, common.ErrStoreUnavailable
	}
	return s.pending, nil
}

func (s *Store) Metadata() (metadata.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, common.ErrStoreUnavailable
	}
	return s.metadata, nil
}
