package job

import "time"

// Job is the fundamental unit of work dispatched by the durable store to
// a worker.
//
// Invariants maintained by the store, never by callers:
//
//	Status == Processing => WorkerID != nil && StartedAt != nil
//	Status == Completed  => CompletedAt != nil && Error == ""
//	Status == Failed     => Attempts >= 1
//	Attempts <= MaxAttempts
type Job struct {
	ID int64

	Type Type

	Status Status

	// Priority orders dispatch within a single Type: higher values are
	// claimed first, ties broken by CreatedAt ascending.
	Priority int

	InputFile  string
	OutputFile string

	// ContentHash fingerprints the input plus any transform parameters
	// and is the primary key of the results cache.
	ContentHash string

	Payload Payload

	Attempts    uint32
	MaxAttempts uint32

	// WorkerID is non-nil only while Status == Processing.
	WorkerID *int64

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Error holds the terminal failure message. Non-empty only when
	// Status == Failed.
	Error string
}

// Retryable reports whether the job may still be claimed again after a
// failed attempt.
func (j *Job) Retryable() bool {
	return j.Attempts < j.MaxAttempts
}
