package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursekit/buildqueue/internal/concur"
	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/store"
)

// Store is the subset of the durable store the backend depends on.
type Store interface {
	store.Submitter
	store.Observer
	store.CacheStore
	store.EventLog

	ReapDeadWorkers(ctx context.Context, deadThreshold time.Time) ([]int64, error)
}

// SubmitResult is the outcome of Submit: either an existing cache entry
// satisfied the request, or a new job was created.
type SubmitResult struct {
	// CacheHit is true if Submit found a matching results_cache entry
	// and did not create a job.
	CacheHit bool

	// CacheEntry is set when CacheHit is true.
	CacheEntry *store.CacheEntry

	// JobID is set when CacheHit is false.
	JobID int64
}

// CompletionHandler is invoked once per job that reaches a terminal
// state through WaitForCompletion, on the backend's bounded notify
// pool rather than on the caller's own goroutine.
type CompletionHandler func(ctx context.Context, j *job.Job)

// Backend is the submit/wait facade. It is safe for concurrent use.
type Backend struct {
	concur.Base

	store   Store
	config  Config
	log     *slog.Logger
	handler CompletionHandler
	notify  *concur.WorkerPool[*job.Job]
}

// NewBackend builds a Backend. handler may be nil, in which case no
// notify pool is started and WaitForCompletion callers simply receive
// the terminal job back from the call itself.
func NewBackend(st Store, config Config, handler CompletionHandler, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	b := &Backend{
		store:   st,
		config:  config,
		log:     log,
		handler: handler,
	}
	if handler != nil {
		b.notify = concur.NewWorkerPool[*job.Job](config.notifyConcurrency(), config.notifyQueue(), log)
	}
	return b
}

// Start begins the notify pool, if a CompletionHandler was configured.
func (b *Backend) Start(ctx context.Context) error {
	if err := b.TryStart(); err != nil {
		return err
	}
	if b.notify != nil {
		b.notify.Start(ctx, func(ctx context.Context, j *job.Job) {
			b.handler(ctx, j)
		})
	}
	return nil
}

// Stop stops the notify pool. Completed jobs still queued for a handler
// when Stop is called are not delivered.
func (b *Backend) Stop(timeout time.Duration) error {
	return b.TryStop(timeout, func() concur.DoneChan {
		if b.notify == nil {
			done := make(concur.DoneChan)
			close(done)
			return done
		}
		return b.notify.Stop()
	})
}

// Submit checks the results cache for (req.OutputFile, req.ContentHash)
// before creating a job. A cache hit means the requested artifact
// already exists and is valid; no job is created.
func (b *Backend) Submit(ctx context.Context, req store.AddJobRequest) (*SubmitResult, error) {
	entry, err := b.store.CheckCache(ctx, req.OutputFile, req.ContentHash)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return &SubmitResult{CacheHit: true, CacheEntry: entry}, nil
	}

	id, err := b.store.AddJob(ctx, req)
	if err != nil {
		return nil, err
	}
	_ = b.store.AppendEvent(ctx, "job_submitted", &id, nil, map[string]any{"job_type": req.Type.String()})
	return &SubmitResult{JobID: id}, nil
}

// BatchResult is the outcome of WaitForCompletion over a set of ids.
// Jobs is indexed the same as the ids slice passed in; a slot is filled
// in as soon as that job reaches a terminal status, and stays nil if
// the overall deadline is hit first.
type BatchResult struct {
	Jobs []*job.Job

	// FirstFailure is the first job observed to terminally fail, in the
	// order ids were drained (not necessarily the order of ids).
	FirstFailure *job.Job

	// FailedCount is the total number of ids that terminally failed.
	FailedCount int
}

// WaitForCompletion polls the store over the given ids — the "active
// id set" — partitioning them into pending/processing/completed/failed,
// until every id has reached a terminal status or the configured
// overall timeout elapses. Before every poll cycle it runs the same
// dead-worker reap the pool manager's own supervision loop runs, using
// the configured Staleness.DeadThreshold, so a caller waiting on a job
// whose worker died is not left waiting on the pool manager's
// independent timer.
//
// A terminal failure on one id does not stop WaitForCompletion from
// continuing to drain the rest: every id is waited on to its own
// terminal status (or the deadline), and the first failure encountered
// is reported back wrapped in ErrJobsFailed once draining finishes.
// ErrTimeout takes priority over ErrJobsFailed if the deadline is hit
// with ids still pending.
func (b *Backend) WaitForCompletion(ctx context.Context, ids []int64) (*BatchResult, error) {
	result := &BatchResult{Jobs: make([]*job.Job, len(ids))}
	active := make(map[int]int64, len(ids)) // index -> job id, for ids not yet terminal
	for i, id := range ids {
		active[i] = id
	}

	deadline := time.Now().Add(b.config.overallTimeout())
	ticker := time.NewTicker(b.config.pollInterval())
	defer ticker.Stop()

	for len(active) > 0 {
		if time.Now().After(deadline) {
			return result, ErrTimeout
		}

		if _, err := b.store.ReapDeadWorkers(ctx, time.Now().Add(-b.config.Staleness.DeadThreshold)); err != nil {
			b.log.Warn("reconciliation reap failed", "err", err)
		}

		for i, id := range active {
			jb, err := b.store.Get(ctx, id)
			if err != nil {
				b.log.Error("get job failed during wait", "job_id", id, "err", err)
				continue
			}
			if jb == nil {
				b.log.Error("job lost during wait", "job_id", id)
				delete(active, i)
				continue
			}
			if !jb.Status.Terminal() {
				continue
			}

			result.Jobs[i] = jb
			delete(active, i)
			if b.notify != nil {
				b.notify.Push(jb)
			}
			if jb.Status == job.Failed {
				result.FailedCount++
				if result.FirstFailure == nil {
					result.FirstFailure = jb
				}
			}
		}

		if len(active) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
	}

	if result.FirstFailure != nil {
		return result, fmt.Errorf("%w: %d of %d job(s) failed, first: job %d: %s",
			ErrJobsFailed, result.FailedCount, len(ids), result.FirstFailure.ID, result.FirstFailure.Error)
	}
	return result, nil
}
