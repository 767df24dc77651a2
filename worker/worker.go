package worker

import (
	"time"

	"github.com/coursekit/buildqueue/job"
)

// Worker is a snapshot of a registered processing process as stored by
// the durable store.
type Worker struct {
	ID int64

	// Type matches the job.Type this worker services.
	Type job.Type

	// ContainerID is an opaque handle assigned by the executor that
	// launched this worker (a container id, or "direct:<pid>" for the
	// direct executor). It is unique per worker row.
	ContainerID string

	Status Status

	StartedAt      time.Time
	LastHeartbeat  time.Time
	JobsProcessed  int64
	JobsFailed     int64
	AvgProcessTime time.Duration
}

// Stale reports whether the worker's last heartbeat is older than now
// minus threshold.
func (w *Worker) Stale(threshold time.Duration, now time.Time) bool {
	return now.Sub(w.LastHeartbeat) > threshold
}
