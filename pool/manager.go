package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursekit/buildqueue/executor"
	"github.com/coursekit/buildqueue/internal/concur"
	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/store"
)

// Store is the subset of the durable store the pool manager depends
// on.
type Store interface {
	store.WorkerStore
	store.EventLog
}

type slot struct {
	workerType job.Type
	handle     *executor.Handle
}

// Manager supervises every job type's worker pool, keeping it at its
// configured size by reaping stale workers and launching replacements.
type Manager struct {
	concur.Base

	store  Store
	exec   executor.Executor
	config ManagerConfig
	log    *slog.Logger

	task concur.TimerTask

	mu    sync.Mutex
	slots map[string]*slot // keyed by executor.Handle.ID, which equals worker.ContainerID
}

// NewManager builds a Manager. No workers are launched until Start is
// called.
func NewManager(st Store, ex executor.Executor, config ManagerConfig, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:  st,
		exec:   ex,
		config: config,
		log:    log,
		slots:  make(map[string]*slot),
	}
}

// Start launches every configured pool's initial workers concurrently
// and begins the supervision loop.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.TryStart(); err != nil {
		return err
	}
	if err := m.launchInitial(ctx); err != nil {
		return err
	}
	interval := m.config.SupervisionInterval
	if interval == 0 {
		interval = 10 * time.Second
	}
	m.task.Start(ctx, m.supervise, interval)
	return nil
}

// Stop halts the supervision loop, then gracefully stops every tracked
// worker process (both executors force-kill on their own once their
// Stop deadline elapses, so no separate force-kill pass is needed
// here) and resets any job those workers still owned back to Pending,
// so that once Stop returns no worker process or in-flight claim is
// left behind.
func (m *Manager) Stop() error {
	return m.TryStop(m.config.ShutdownTimeout, func() concur.DoneChan {
		done := make(concur.DoneChan)
		go func() {
			defer close(done)
			<-m.task.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), m.config.ShutdownTimeout)
			defer cancel()

			m.mu.Lock()
			slots := make([]*slot, 0, len(m.slots))
			for _, sl := range m.slots {
				slots = append(slots, sl)
			}
			m.slots = make(map[string]*slot)
			m.mu.Unlock()

			var wg sync.WaitGroup
			for _, sl := range slots {
				sl := sl
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := m.exec.Stop(ctx, sl.handle, m.config.ShutdownTimeout); err != nil {
						m.log.Warn("stop worker failed, force killing", "handle_id", sl.handle.ID, "err", err)
						if err := m.exec.ForceKill(ctx, sl.handle); err != nil {
							m.log.Warn("force kill worker failed", "handle_id", sl.handle.ID, "err", err)
						}
					}
				}()
			}
			wg.Wait()

			// Every worker, tracked or not, is considered gone now: mark
			// them Dead and reset whatever jobs they still owned back to
			// Pending, regardless of how recently they last heartbeated.
			if _, err := m.store.ReapDeadWorkers(ctx, time.Now().Add(time.Second)); err != nil {
				m.log.Warn("reap workers on shutdown failed", "err", err)
			}
		}()
		return done
	})
}

func (m *Manager) launchInitial(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, pc := range m.config.Pools {
		pc := pc
		for i := 0; i < pc.Count; i++ {
			g.Go(func() error {
				return m.launch(gctx, pc)
			})
		}
	}
	return g.Wait()
}

func (m *Manager) launch(ctx context.Context, pc WorkerPoolConfig) error {
	h, err := m.exec.Launch(ctx, executor.Spec{
		WorkerType:   pc.Type,
		Command:      pc.Command,
		Image:        pc.Image,
		SourceDir:    m.config.SourceDir,
		WorkspaceDir: m.config.WorkspaceDir,
		StorePath:    m.config.StorePath,
	})
	if err != nil {
		return fmt.Errorf("pool: launch %s worker: %w", pc.Type, err)
	}
	m.mu.Lock()
	m.slots[h.ID] = &slot{workerType: pc.Type, handle: h}
	m.mu.Unlock()
	return nil
}

func (m *Manager) supervise(ctx context.Context) {
	now := time.Now()

	if _, err := m.store.ListStaleWorkers(ctx, now.Add(-m.config.Staleness.HungThreshold)); err != nil {
		m.log.Error("list stale workers failed", "err", err)
	}

	deadIDs, err := m.store.ReapDeadWorkers(ctx, now.Add(-m.config.Staleness.DeadThreshold))
	if err != nil {
		m.log.Error("reap dead workers failed", "err", err)
		return
	}
	for _, id := range deadIDs {
		m.handleDeadWorker(ctx, id)
	}
}

func (m *Manager) handleDeadWorker(ctx context.Context, workerID int64) {
	w, err := m.store.GetWorker(ctx, workerID)
	if err != nil || w == nil {
		m.log.Warn("lookup of reaped worker failed", "worker_id", workerID, "err", err)
		return
	}

	m.mu.Lock()
	sl, tracked := m.slots[w.ContainerID]
	if tracked {
		delete(m.slots, w.ContainerID)
	}
	m.mu.Unlock()

	if tracked {
		if err := m.exec.ForceKill(ctx, sl.handle); err != nil {
			m.log.Warn("force kill reaped worker failed", "worker_id", workerID, "err", err)
		}
	}

	wid := workerID
	_ = m.store.AppendEvent(ctx, "worker_reaped", nil, &wid, map[string]any{"worker_type": w.Type.String()})

	pc, found := m.poolFor(w.Type)
	if !found {
		m.log.Warn("reaped worker has no configured pool, not relaunching", "worker_type", w.Type)
		return
	}
	if err := m.launch(ctx, pc); err != nil {
		m.log.Error("relaunch worker failed", "worker_type", w.Type, "err", err)
	}
}

func (m *Manager) poolFor(t job.Type) (WorkerPoolConfig, bool) {
	for _, pc := range m.config.Pools {
		if pc.Type == t {
			return pc, true
		}
	}
	return WorkerPoolConfig{}, false
}
