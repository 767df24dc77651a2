package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

// DefaultBusyTimeout satisfies the store contract's "busy timeout >=
// 30s" requirement.
const DefaultBusyTimeout = 30 * time.Second

// DSN builds a modernc.org/sqlite data source name for path, configured
// with WAL journaling and the given busy timeout. _txlock=immediate
// makes every database/sql transaction BEGIN IMMEDIATE rather than
// SQLite's default deferred lock, which is what lets ReapDeadWorkers run
// its read-then-write as one explicit immediate transaction instead of
// hand-rolling BEGIN IMMEDIATE over a raw connection.
//
// Passing ":memory:" (or any SQLite memory URI) is valid and is how the
// test suite exercises this package without touching disk.
func DSN(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_txlock=immediate",
		path, busyTimeout.Milliseconds(),
	)
}

// Open opens a *bun.DB against path in WAL mode with DefaultBusyTimeout,
// and initializes the schema. The caller owns the returned handle's
// lifetime (Close it when done). Each OS process sharing a store file
// — the orchestrator and every worker — calls Open independently against
// the same DB_PATH; WAL mode, not connection sharing, is what makes
// that safe.
func Open(ctx context.Context, path string) (*bun.DB, error) {
	sqlDB, err := sql.Open("sqlite", DSN(path, DefaultBusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := InitDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return db, nil
}

// memoryDSN builds an in-memory DSN suitable for tests. The DSN names a
// shared-cache in-memory database after name, so calls with the same
// name return the same database and handles opened on it see the same
// data.
func memoryDSN(name string) string {
	v := url.Values{}
	v.Set("_pragma", "journal_mode(WAL)")
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", name, v.Encode())
}

// Store bundles every sqlite-backed implementation of the store
// interfaces behind the single *bun.DB handle they share.
type Store struct {
	db *bun.DB
}

// NewStore wraps an already-opened, already-initialized *bun.DB.
func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle, for callers that need direct access
// (for example, to Close it).
func (s *Store) DB() *bun.DB {
	return s.db
}
