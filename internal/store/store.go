// Package store is the durable repository every other component goes
// through. It owns the SQLite state file holding jobs, file state, node
// mappings, processing leases, and the signal/flag rows the CLI uses to
// talk to a running engine.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
)

// Store is a handle onto the shared state database. It is safe to copy;
// all copies share the same connection pool.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if missing) the state database at dbPath and
// brings the schema up to date. poolSize bounds concurrent connections
// and should match the process worker count.
func Open(dbPath string, poolSize int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %v", syncerr.ErrDatabase, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", syncerr.ErrDatabase, err)
	}

	if poolSize < 1 {
		poolSize = 1
	}
	db.SetMaxOpenConns(poolSize)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", syncerr.ErrDatabase, err)
	}

	logrus.WithField("db_path", dbPath).Debug("Store opened")
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying pool for read-only consumers.
func (s *Store) DB() *sql.DB {
	return s.db
}

// now returns the wall clock in UTC truncated to the second, the
// granularity every persisted timestamp uses.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func dbErr(err error) error {
	return fmt.Errorf("%w: %v", syncerr.ErrDatabase, err)
}
