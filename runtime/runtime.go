package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/coursekit/buildqueue"
	"github.com/coursekit/buildqueue/internal/concur"
	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/store"
	"github.com/coursekit/buildqueue/worker"
)

// Store is the subset of the durable store a Runtime depends on:
// claiming and completing jobs, registering and heartbeating itself,
// populating the results cache, and appending audit events.
type Store interface {
	store.Dispatcher
	store.WorkerStore
	store.CacheStore
	store.EventLog
}

// Runtime polls the store for jobs of one type and dispatches them to a
// Processor. One Runtime corresponds to exactly one worker row; it is
// the loop that runs inside every worker process regardless of which
// executor launched it.
type Runtime struct {
	concur.Base

	store       Store
	jobType     job.Type
	containerID string
	processor   Processor
	config      Config
	log         *slog.Logger

	workerID  int64
	parentPID int

	cancel context.CancelFunc
	done   concur.DoneChan
	wg     sync.WaitGroup

	current       time.Duration
	emptyStreak   int
	lastHeartbeat time.Time
}

// NewRuntime builds a Runtime. The worker is not registered or started
// until Start is called.
func NewRuntime(st Store, jobType job.Type, containerID string, processor Processor, config Config, log *slog.Logger) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	return &Runtime{
		store:       st,
		jobType:     jobType,
		containerID: containerID,
		processor:   processor,
		config:      config,
		log:         log,
		current:     config.PollInterval,
	}
}

// WorkerID returns the id assigned by the store at registration. It is
// only valid once Start has returned successfully.
func (r *Runtime) WorkerID() int64 {
	return r.workerID
}

// Start registers the worker with the store, applying bounded backoff
// on transient failure, then begins the poll loop in the background.
// Start returns once registration succeeds (or its retry budget is
// exhausted); it does not wait for the poll loop to do anything.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.TryStart(); err != nil {
		return err
	}
	if err := r.register(ctx); err != nil {
		return err
	}
	r.parentPID = os.Getppid()

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(concur.DoneChan)
	r.wg.Add(1)
	go r.loop(loopCtx)
	return nil
}

func (r *Runtime) register(ctx context.Context) error {
	backoff := buildqueue.NewBackoff(r.config.RegistrationBackoff)
	var attempt uint32
	var lastErr error
	for {
		attempt++
		id, err := r.store.RegisterWorker(ctx, r.jobType, r.containerID)
		if err == nil {
			r.workerID = id
			return nil
		}
		lastErr = err
		delay, ok := backoff.Next(attempt)
		if !ok {
			return fmt.Errorf("runtime: register worker after %d attempts: %w", attempt, lastErr)
		}
		r.log.Warn("worker registration failed, retrying", "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Stop requests the poll loop to exit, waiting for an in-flight job to
// finish (or be abandoned via context cancellation) up to
// config.ShutdownTimeout. It marks the worker Dead on a clean exit; the
// pool manager's staleness detection is the backstop if Stop does not
// get a chance to run at all (a SIGKILL, or an orphaned process).
func (r *Runtime) Stop() error {
	return r.TryStop(r.config.ShutdownTimeout, func() concur.DoneChan {
		r.cancel()
		return r.done
	})
}

func (r *Runtime) loop(ctx context.Context) {
	defer close(r.done)
	defer r.wg.Done()
	defer r.markDead()

	orphanCheck := time.NewTicker(r.config.orphanCheckInterval())
	defer orphanCheck.Stop()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-orphanCheck.C:
			if os.Getppid() != r.parentPID {
				r.log.Error("parent process gone, exiting", "worker_id", r.workerID)
				return
			}
		case <-timer.C:
			claimed := r.tick(ctx)
			r.adapt(claimed)
			timer.Reset(r.current)
		}
	}
}

func (r *Runtime) adapt(claimed bool) {
	if claimed || r.config.MaxPollInterval == 0 {
		r.current = r.config.PollInterval
		r.emptyStreak = 0
		return
	}
	r.emptyStreak++
	if r.emptyStreak < r.config.emptyThreshold() {
		return
	}
	next := time.Duration(float64(r.current) * r.config.multiplier())
	if next > r.config.MaxPollInterval {
		next = r.config.MaxPollInterval
	}
	r.current = next
}

func (r *Runtime) tick(ctx context.Context) bool {
	if time.Since(r.lastHeartbeat) >= r.config.HeartbeatInterval {
		if err := r.store.UpdateHeartbeat(ctx, r.workerID); err != nil {
			r.log.Error("heartbeat failed", "worker_id", r.workerID, "err", err)
		}
		r.lastHeartbeat = time.Now()
	}

	jb, err := r.store.ClaimNextJob(ctx, r.jobType, r.workerID)
	if err != nil {
		r.log.Error("claim failed", "worker_id", r.workerID, "job_type", r.jobType, "err", err)
		return false
	}
	if jb == nil {
		return false
	}

	// Force a heartbeat write on every claim, regardless of
	// HeartbeatInterval: a job can run long enough that the next
	// interval-driven heartbeat would land after the pool manager's
	// staleness thresholds have already elapsed, getting this worker
	// reaped while it is still alive and holding the job.
	if err := r.store.UpdateHeartbeat(ctx, r.workerID); err != nil {
		r.log.Error("heartbeat on claim failed", "worker_id", r.workerID, "err", err)
	}
	r.lastHeartbeat = time.Now()

	r.handle(ctx, jb)
	return true
}

func (r *Runtime) handle(ctx context.Context, jb *job.Job) {
	// Store bookkeeping uses a context that Stop does not cancel, so the
	// outcome of an in-flight attempt is still recorded during shutdown.
	procCtx := ctx
	ctx = context.WithoutCancel(ctx)

	if err := r.store.MarkWorkerStatus(ctx, r.workerID, worker.Busy); err != nil {
		r.log.Warn("mark busy failed", "worker_id", r.workerID, "err", err)
	}

	start := time.Now()
	result, procErr := r.processor.Process(procCtx, jb)
	duration := time.Since(start)

	if err := r.store.RecordJobOutcome(ctx, r.workerID, procErr == nil, duration); err != nil {
		r.log.Warn("record job outcome failed", "worker_id", r.workerID, "err", err)
	}

	jobID, workerID := jb.ID, r.workerID
	switch {
	case procErr == nil:
		if err := r.store.UpdateJobStatus(ctx, jb.ID, r.workerID, job.Completed, nil); err != nil {
			r.log.Error("complete job failed", "job_id", jb.ID, "err", err)
		}
		if result != nil {
			if err := r.store.AddToCache(ctx, jb.OutputFile, jb.ContentHash, result.Metadata); err != nil {
				r.log.Warn("add to cache failed", "job_id", jb.ID, "err", err)
			}
		}
		_ = r.store.AppendEvent(ctx, "job_completed", &jobID, &workerID, map[string]any{"attempts": jb.Attempts})

	case jb.Retryable():
		r.log.Warn("job attempt failed, retrying", "job_id", jb.ID, "attempt", jb.Attempts, "err", procErr)
		if err := r.store.ReleaseJob(ctx, jb.ID, r.workerID); err != nil {
			r.log.Error("release job failed", "job_id", jb.ID, "err", err)
		}
		_ = r.store.AppendEvent(ctx, "job_retried", &jobID, &workerID, map[string]any{"attempt": jb.Attempts, "error": procErr.Error()})

	default:
		if err := r.store.UpdateJobStatus(ctx, jb.ID, r.workerID, job.Failed, procErr); err != nil {
			r.log.Error("fail job failed", "job_id", jb.ID, "err", err)
		}
		_ = r.store.AppendEvent(ctx, "job_failed", &jobID, &workerID, map[string]any{"attempts": jb.Attempts, "error": procErr.Error()})
	}

	if err := r.store.MarkWorkerStatus(ctx, r.workerID, worker.Idle); err != nil {
		r.log.Warn("mark idle failed", "worker_id", r.workerID, "err", err)
	}
}

func (r *Runtime) markDead() {
	if err := r.store.MarkWorkerStatus(context.Background(), r.workerID, worker.Dead); err != nil {
		r.log.Warn("mark dead on shutdown failed", "worker_id", r.workerID, "err", err)
	}
}
