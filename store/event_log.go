package store

import (
	"context"
	"time"
)

// Event is an append-only audit record. Events are not part of the
// dispatch protocol: a store implementation may lose or discard them
// without affecting any correctness property of job dispatch.
type Event struct {
	ID        int64
	Kind      string
	JobID     *int64
	WorkerID  *int64
	Detail    map[string]any
	CreatedAt time.Time
}

// EventLog is the write side of the audit trail. Every component that
// transitions job or worker state (worker runtime, pool manager, backend)
// appends through this interface on a best-effort basis.
type EventLog interface {
	AppendEvent(ctx context.Context, kind string, jobID, workerID *int64, detail map[string]any) error
}

// EventPruner removes old events. It is the one place in this module
// where rows are ever deleted by the core — jobs and the results cache
// are never deleted except by the caller, but the event log is
// explicitly documented as discardable.
type EventPruner interface {
	// PruneEvents deletes events created at or before the given time.
	// If before is nil, no time filter is applied and all events are
	// eligible. PruneEvents returns the number of deleted rows.
	PruneEvents(ctx context.Context, before *time.Time) (int64, error)
}
