package store

import "errors"

var (
	// ErrJobLost indicates that the referenced job no longer exists, or
	// is no longer in the state the caller expected. No operation of
	// the sqlite store returns it; a status update on a reaped job
	// returns ErrCompleteFailed.
	ErrJobLost = errors.New("store: job lost")

	// ErrCompleteFailed indicates UpdateJobStatus could not transition
	// a job to a terminal state because it was not Processing, or not
	// owned by the calling worker.
	ErrCompleteFailed = errors.New("store: complete failed")

	// ErrBadStatus indicates a status argument that is not valid for the
	// operation. No operation of the sqlite store returns it; PruneEvents
	// takes no status filter.
	ErrBadStatus = errors.New("store: bad status for this operation")
)
