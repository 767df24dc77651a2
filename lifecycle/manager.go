package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coursekit/buildqueue/backend"
	"github.com/coursekit/buildqueue/internal/concur"
	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/pool"
	"github.com/coursekit/buildqueue/store"
	"github.com/coursekit/buildqueue/worker"
)

// Mode selects how a Manager treats the lifetime of its worker pool.
type Mode int

const (
	// OneShot launches a pool, runs a fixed batch of jobs to
	// completion via RunBatch, and tears the pool down once every job
	// in the batch has reached a terminal state.
	OneShot Mode = iota

	// Persistent runs the pool indefinitely; jobs are submitted over
	// its lifetime by whatever else is running in the process, and the
	// pool only stops when Stop is called explicitly.
	Persistent
)

// Store is the subset of the durable store the lifecycle manager needs
// for reuse detection at startup.
type Store interface {
	ListWorkers(ctx context.Context, workerType *job.Type, status *worker.Status) ([]*worker.Worker, error)
}

// JobOutcome is one request's result from RunBatch: either a results
// cache hit, or a job that ran to a terminal state (or an error
// recorded separately via the returned error from RunBatch).
type JobOutcome struct {
	Request    store.AddJobRequest
	CacheHit   bool
	CacheEntry *store.CacheEntry
	Job        *job.Job
}

// Manager composes a pool.Manager and a backend.Backend into one of the
// two deployment shapes.
type Manager struct {
	concur.Base

	poolMgr *pool.Manager
	backend *backend.Backend
	store   Store
	mode    Mode
	log     *slog.Logger

	staleThreshold  time.Duration
	pools           []pool.WorkerPoolConfig
	shutdownTimeout time.Duration
}

// NewManager builds a Manager. staleThreshold is the heartbeat age past
// which an existing worker row is not counted toward reuse detection at
// Start; pools must match the WorkerPoolConfig list the pool manager
// itself was configured with.
func NewManager(poolMgr *pool.Manager, be *backend.Backend, st Store, mode Mode, pools []pool.WorkerPoolConfig, staleThreshold, shutdownTimeout time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		poolMgr:         poolMgr,
		backend:         be,
		store:           st,
		mode:            mode,
		pools:           pools,
		staleThreshold:  staleThreshold,
		shutdownTimeout: shutdownTimeout,
		log:             log,
	}
}

// Start brings up the backend and, unless a live pool matching every
// configured type and count is already registered in the store (a
// prior persistent run that this process is attaching to rather than
// duplicating), launches the pool manager too. Only Idle or Busy rows
// count; a worker row whose heartbeat is older than staleThreshold does
// not count toward this
// match — it is presumed dead and gets replaced the ordinary way once
// the pool manager's own supervision loop reaps it.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.TryStart(); err != nil {
		return err
	}

	reuse, err := m.detectReusablePool(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: reuse detection: %w", err)
	}
	if reuse {
		m.log.Info("found live worker pool matching configuration, reusing it")
	} else if err := m.poolMgr.Start(ctx); err != nil {
		return fmt.Errorf("lifecycle: start pool manager: %w", err)
	}

	if err := m.backend.Start(ctx); err != nil {
		return fmt.Errorf("lifecycle: start backend: %w", err)
	}
	return nil
}

func (m *Manager) detectReusablePool(ctx context.Context) (bool, error) {
	if len(m.pools) == 0 {
		return false, nil
	}
	now := time.Now()
	for _, pc := range m.pools {
		t := pc.Type
		workers, err := m.store.ListWorkers(ctx, &t, nil)
		if err != nil {
			return false, err
		}
		live := 0
		for _, w := range workers {
			if w.Status != worker.Idle && w.Status != worker.Busy {
				continue
			}
			if w.Stale(m.staleThreshold, now) {
				continue
			}
			live++
		}
		if live < pc.Count {
			return false, nil
		}
	}
	return true, nil
}

// Stop tears down the backend's notify pool and, in every mode, the
// pool manager. Stopping the pool manager also stops (force-killing if
// needed) every worker process it launched and resets their jobs to
// Pending; workers of a reused pool that this Manager did not launch
// are not stopped.
func (m *Manager) Stop() error {
	return m.TryStop(m.shutdownTimeout, func() concur.DoneChan {
		done := make(concur.DoneChan)
		go func() {
			defer close(done)
			if err := m.backend.Stop(m.shutdownTimeout); err != nil {
				m.log.Warn("stop backend failed", "err", err)
			}
			if err := m.poolMgr.Stop(); err != nil {
				m.log.Warn("stop pool manager failed", "err", err)
			}
		}()
		return done
	})
}

// RunBatch submits every request concurrently, then waits on the whole
// resulting set of job ids together as a single active id set, and
// finally stops the whole manager. RunBatch is only valid in OneShot
// mode.
//
// A submit error on one request does not stop the others from being
// submitted, and a terminal failure on one job does not stop
// WaitForCompletion from continuing to drain the rest: every request
// that was submitted gets its outcome slot filled in (Job or a cache
// hit) regardless of what happened to its siblings; the slot of a
// request whose own submit failed stays nil. RunBatch returns the
// first error encountered — a submit failure, or the backend's own
// backend.ErrJobsFailed/backend.ErrTimeout — alongside the outcomes
// slice.
func (m *Manager) RunBatch(ctx context.Context, reqs []store.AddJobRequest) ([]*JobOutcome, error) {
	if m.mode != OneShot {
		return nil, fmt.Errorf("lifecycle: RunBatch requires OneShot mode")
	}

	outcomes := make([]*JobOutcome, len(reqs))

	type pending struct {
		index int
		jobID int64
	}
	var (
		mu       sync.Mutex
		pendings []pending
		firstErr error
		wg       sync.WaitGroup
	)
	recordErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for i, req := range reqs {
		i, req := i, req
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := m.backend.Submit(ctx, req)
			if err != nil {
				recordErr(fmt.Errorf("lifecycle: submit %s: %w", req.OutputFile, err))
				return
			}
			if result.CacheHit {
				outcomes[i] = &JobOutcome{Request: req, CacheHit: true, CacheEntry: result.CacheEntry}
				return
			}
			mu.Lock()
			pendings = append(pendings, pending{index: i, jobID: result.JobID})
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(pendings) > 0 {
		ids := make([]int64, len(pendings))
		for i, p := range pendings {
			ids[i] = p.jobID
		}
		batch, err := m.backend.WaitForCompletion(ctx, ids)
		for i, p := range pendings {
			outcomes[p.index] = &JobOutcome{Request: reqs[p.index], Job: batch.Jobs[i]}
		}
		if err != nil {
			recordErr(fmt.Errorf("lifecycle: wait for batch: %w", err))
		}
	}

	if err := m.Stop(); err != nil {
		m.log.Warn("stop after batch failed", "err", err)
	}
	return outcomes, firstErr
}
