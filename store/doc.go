// Package store defines the durable-store contract: atomic job claim,
// status transitions, content-addressed cache lookup, worker registry
// bookkeeping, and an append-only event log.
//
// store does not mandate a particular backend. The sqlite subpackage
// provides a bun/modernc.org-sqlite backed implementation opened in WAL
// mode, but any implementation satisfying these interfaces may be
// substituted — the rest of buildqueue (runtime, pool, backend,
// lifecycle) depends only on the interfaces in this package.
//
// # Concurrency Mode
//
// Implementations must be safe for concurrent use by many goroutines
// and OS processes sharing the same underlying file. Writers must be
// serialized only at commit time (a write-ahead log or equivalent); a
// busy timeout of at least 30s must be configured so short contention
// never surfaces as a caller-visible error.
//
// # The Atomic Claim
//
// Dispatcher.ClaimNextJob is the single most important correctness
// property of this package: it must be implemented as one write
// statement that selects the eligible row and transitions it in the
// same operation. A compound select-then-update pattern is forbidden —
// it lets every concurrent claimer read the same oldest row, so only one
// update succeeds and the rest spin and starve.
package store
