package backend_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/coursekit/buildqueue/backend"
	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/pool"
	"github.com/coursekit/buildqueue/store"
	"github.com/coursekit/buildqueue/store/sqlite"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := sqlite.InitDB(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return sqlite.NewStore(db)
}

func TestSubmitCacheHitSkipsJobCreation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.AddToCache(ctx, "a.html", "h1", map[string]any{"cached": true}); err != nil {
		t.Fatal(err)
	}

	be := backend.NewBackend(st, backend.Config{Staleness: pool.StalenessConfig{DeadThreshold: time.Hour}}, nil, nil)

	result, err := be.Submit(ctx, store.AddJobRequest{
		Type: job.Notebook, InputFile: "a.ipynb", OutputFile: "a.html",
		ContentHash: "h1", MaxAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.CacheHit {
		t.Fatal("expected a cache hit")
	}

	jobs, err := st.List(ctx, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 0 {
		t.Fatalf("expected no job created on cache hit, found %d", len(jobs))
	}
}

func TestSubmitMissCreatesJob(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	be := backend.NewBackend(st, backend.Config{Staleness: pool.StalenessConfig{DeadThreshold: time.Hour}}, nil, nil)

	result, err := be.Submit(ctx, store.AddJobRequest{
		Type: job.Notebook, InputFile: "a.ipynb", OutputFile: "a.html",
		ContentHash: "h1", MaxAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.CacheHit {
		t.Fatal("expected a cache miss")
	}
	if result.JobID == 0 {
		t.Fatal("expected a job id")
	}
}

func TestWaitForCompletionReturnsOnTerminalStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	be := backend.NewBackend(st, backend.Config{
		PollInterval:   5 * time.Millisecond,
		OverallTimeout: time.Second,
		Staleness:      pool.StalenessConfig{DeadThreshold: time.Hour},
	}, nil, nil)

	id, err := st.AddJob(ctx, store.AddJobRequest{
		Type: job.Notebook, InputFile: "a.ipynb", OutputFile: "a.html",
		ContentHash: "h1", MaxAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	workerID, err := st.RegisterWorker(ctx, job.Notebook, "direct:1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.ClaimNextJob(ctx, job.Notebook, workerID); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = st.UpdateJobStatus(ctx, id, workerID, job.Completed, nil)
	}()

	result, err := be.WaitForCompletion(ctx, []int64{id})
	if err != nil {
		t.Fatal(err)
	}
	if result.Jobs[0].Status != job.Completed {
		t.Fatalf("expected Completed, got %v", result.Jobs[0].Status)
	}
}

func TestWaitForCompletionTimesOut(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	be := backend.NewBackend(st, backend.Config{
		PollInterval:   5 * time.Millisecond,
		OverallTimeout: 30 * time.Millisecond,
		Staleness:      pool.StalenessConfig{DeadThreshold: time.Hour},
	}, nil, nil)

	id, err := st.AddJob(ctx, store.AddJobRequest{
		Type: job.Notebook, InputFile: "a.ipynb", OutputFile: "a.html",
		ContentHash: "h1", MaxAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := be.WaitForCompletion(ctx, []int64{id}); err != backend.ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWaitForCompletionDrainsAllIdsDespiteOneFailure(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	be := backend.NewBackend(st, backend.Config{
		PollInterval:   5 * time.Millisecond,
		OverallTimeout: time.Second,
		Staleness:      pool.StalenessConfig{DeadThreshold: time.Hour},
	}, nil, nil)

	okID, err := st.AddJob(ctx, store.AddJobRequest{
		Type: job.Notebook, InputFile: "a.ipynb", OutputFile: "a.html",
		ContentHash: "h1", MaxAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	failID, err := st.AddJob(ctx, store.AddJobRequest{
		Type: job.Notebook, InputFile: "b.ipynb", OutputFile: "b.html",
		ContentHash: "h2", MaxAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	workerID, err := st.RegisterWorker(ctx, job.Notebook, "direct:1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.ClaimNextJob(ctx, job.Notebook, workerID); err != nil {
		t.Fatal(err)
	}
	if _, err := st.ClaimNextJob(ctx, job.Notebook, workerID); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = st.UpdateJobStatus(ctx, failID, workerID, job.Failed, fmt.Errorf("boom"))
		time.Sleep(20 * time.Millisecond)
		_ = st.UpdateJobStatus(ctx, okID, workerID, job.Completed, nil)
	}()

	result, err := be.WaitForCompletion(ctx, []int64{okID, failID})
	if !errors.Is(err, backend.ErrJobsFailed) {
		t.Fatalf("expected ErrJobsFailed, got %v", err)
	}
	if result.FailedCount != 1 || result.FirstFailure == nil || result.FirstFailure.ID != failID {
		t.Fatalf("expected failure recorded for job %d, got %+v", failID, result.FirstFailure)
	}
	if result.Jobs[0] == nil || result.Jobs[0].Status != job.Completed {
		t.Fatalf("expected okID to still drain to Completed despite the sibling failure, got %+v", result.Jobs[0])
	}
	if result.Jobs[1] == nil || result.Jobs[1].Status != job.Failed {
		t.Fatalf("expected failID to be recorded as Failed, got %+v", result.Jobs[1])
	}
}

func TestWaitForCompletionInvokesNotifyHandler(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var called atomic.Bool
	be := backend.NewBackend(st, backend.Config{
		PollInterval:   5 * time.Millisecond,
		OverallTimeout: time.Second,
		Staleness:      pool.StalenessConfig{DeadThreshold: time.Hour},
	}, func(ctx context.Context, j *job.Job) {
		called.Store(true)
	}, nil)

	if err := be.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = be.Stop(time.Second) }()

	id, err := st.AddJob(ctx, store.AddJobRequest{
		Type: job.Notebook, InputFile: "a.ipynb", OutputFile: "a.html",
		ContentHash: "h1", MaxAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	workerID, err := st.RegisterWorker(ctx, job.Notebook, "direct:1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.ClaimNextJob(ctx, job.Notebook, workerID); err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateJobStatus(ctx, id, workerID, job.Completed, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := be.WaitForCompletion(ctx, []int64{id}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for !called.Load() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !called.Load() {
		t.Fatal("expected completion handler to be invoked")
	}
}
