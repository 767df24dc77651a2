// Package sqlite implements the store interfaces on top of an embedded
// SQLite database file, using bun as the query builder and
// modernc.org/sqlite as the (pure-Go, cgo-free) driver.
//
// The database must be opened in WAL journaling mode with a busy
// timeout of at least 30s:
//
//	sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(30000)")
//
// Every process sharing the store file — the orchestrator and every
// worker process — opens its own *bun.DB against that same path; WAL
// mode is what makes concurrent readers and writers across OS processes
// safe, not a single shared in-process connection.
//
// The central correctness property lives in Dispatcher.ClaimNextJob: a
// single UPDATE ... WHERE id IN (subquery ORDER BY ... LIMIT 1)
// RETURNING * statement, so the database engine's own write
// serialization — not application-level locking — guarantees no two
// concurrent claimers ever receive the same row.
package sqlite
