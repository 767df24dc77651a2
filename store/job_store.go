package store

import (
	"context"

	"github.com/coursekit/buildqueue/job"
)

// AddJobRequest carries everything the planner supplies about a single
// unit of work. It never includes delivery state — that is assigned by
// Submitter.AddJob.
type AddJobRequest struct {
	Type        job.Type
	InputFile   string
	OutputFile  string
	ContentHash string
	Payload     job.Payload
	Priority    int
	MaxAttempts uint32
}

// Submitter is the write-side entry point for new jobs.
type Submitter interface {
	// AddJob persists a new job in the Pending state and returns its
	// assigned id. AddJob does not consult the cache; callers are
	// expected to have already done so.
	AddJob(ctx context.Context, req AddJobRequest) (int64, error)
}

// Dispatcher defines the read-write contract for consuming and managing
// jobs in the queue lifecycle.
//
// ClaimNextJob provides exclusive dispatch: with N concurrent workers of
// the same Type polling the same store, each call returns a distinct job
// or none — never the same job to two callers.
type Dispatcher interface {
	// ClaimNextJob selects the highest-priority, oldest eligible
	// Pending job of the given type (attempts < max attempts) and
	// atomically transitions it to Processing, incrementing Attempts
	// and setting WorkerID/StartedAt. It returns (nil, nil) if no job
	// is eligible.
	ClaimNextJob(ctx context.Context, jobType job.Type, workerID int64) (*job.Job, error)

	// UpdateJobStatus transitions a Processing job to a terminal state
	// (Completed or Failed). jobErr must be non-nil for Failed and nil
	// for Completed. If the job is not currently Processing under the
	// given workerID, ErrCompleteFailed is returned.
	UpdateJobStatus(ctx context.Context, id int64, workerID int64, status job.Status, jobErr error) error

	// ReleaseJob returns a Processing job owned by workerID back to
	// Pending, clearing WorkerID and StartedAt, without touching
	// Attempts (already incremented by the ClaimNextJob that produced
	// this attempt). It is how the worker runtime hands a job back for
	// another claim after a failed attempt that still has retry budget
	// left; a terminally-failed attempt goes through UpdateJobStatus
	// instead. If the job is not Processing under workerID,
	// ErrCompleteFailed is returned.
	ReleaseJob(ctx context.Context, id int64, workerID int64) error
}

// Observer provides read-only access to jobs. It does not participate
// in dispatch and is intended for diagnostic, monitoring, and
// administrative use — the external read-only monitoring surfaces
// described by the system overview are Observer consumers.
type Observer interface {
	// Get returns the job identified by id, or (nil, nil) if no such
	// job exists.
	Get(ctx context.Context, id int64) (*job.Job, error)

	// List returns up to limit jobs matching status. If status is nil,
	// no status filter is applied. If limit <= 0, no LIMIT is applied.
	List(ctx context.Context, status *job.Status, limit int) ([]*job.Job, error)
}
