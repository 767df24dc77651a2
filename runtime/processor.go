package runtime

import (
	"context"

	"github.com/coursekit/buildqueue/job"
)

// Result carries what a Processor learned about a job it completed
// successfully. Metadata is handed to the results cache verbatim.
type Result struct {
	Metadata map[string]any
}

// Processor converts one job's input into its output artifact. It is
// the only domain-specific piece of a worker process: everything else
// in package runtime is generic dispatch plumbing.
//
// The context is canceled when the runtime is asked to stop. A
// well-behaved Processor should watch ctx and abandon work promptly,
// but is not required to: the job's attempt has already been recorded
// by ClaimNextJob, so an attempt abandoned with an error is handled like
// any other failed attempt — the job goes back to Pending for the next
// claim, or to Failed if it is out of attempts.
//
// A non-nil error fails the attempt. Whether that results in a retry or
// a terminal failure depends on the job's remaining attempt budget, not
// on the error itself — Processor implementations do not need to
// distinguish retryable from non-retryable errors.
type Processor interface {
	Process(ctx context.Context, j *job.Job) (*Result, error)
}

// ProcessorFunc adapts a plain function to the Processor interface.
type ProcessorFunc func(ctx context.Context, j *job.Job) (*Result, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, j *job.Job) (*Result, error) {
	return f(ctx, j)
}
