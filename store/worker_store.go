package store

import (
	"context"
	"time"

	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/worker"
)

// WorkerStore is the registry of worker processes: registration,
// heartbeats, status changes, staleness queries, and the dead-worker
// reap that underlies both the pool manager's supervision loop and the
// backend's belt-and-braces reconciliation pass.
type WorkerStore interface {
	// RegisterWorker inserts a new worker row in the Idle state and
	// returns its assigned id. A single autocommit statement is
	// naturally idempotent to retry; the worker runtime applies its own
	// bounded backoff around this call rather than have every
	// implementation duplicate that policy.
	RegisterWorker(ctx context.Context, workerType job.Type, containerID string) (int64, error)

	// UpdateHeartbeat refreshes LastHeartbeat to now.
	UpdateHeartbeat(ctx context.Context, id int64) error

	// MarkWorkerStatus sets a worker's status directly. It is used for
	// Idle/Busy transitions around job processing.
	MarkWorkerStatus(ctx context.Context, id int64, status worker.Status) error

	// RecordJobOutcome updates the rolling JobsProcessed/JobsFailed/
	// AvgProcessTime statistics after a worker finishes handling a job.
	RecordJobOutcome(ctx context.Context, id int64, success bool, duration time.Duration) error

	// ListStaleWorkers returns the ids of workers whose LastHeartbeat
	// predates threshold and marks them Hung. It does not reap their
	// jobs.
	ListStaleWorkers(ctx context.Context, threshold time.Time) ([]int64, error)

	// ReapDeadWorkers atomically marks every worker whose LastHeartbeat
	// predates deadThreshold as Dead, and resets any job still in
	// Processing under a Dead worker (newly reaped or already Dead) back
	// to Pending with WorkerID cleared. It returns the ids of the
	// workers it newly marked Dead. Both the pool manager's
	// supervision loop and the backend's reconciliation pass call this
	// same method so they apply one consistent threshold.
	ReapDeadWorkers(ctx context.Context, deadThreshold time.Time) ([]int64, error)

	// GetWorker returns the worker identified by id, or (nil, nil) if
	// absent.
	GetWorker(ctx context.Context, id int64) (*worker.Worker, error)

	// ListWorkers returns workers, optionally filtered by type and/or
	// status. A nil filter argument means "no filter on that
	// dimension".
	ListWorkers(ctx context.Context, workerType *job.Type, status *worker.Status) ([]*worker.Worker, error)
}
