package runtime_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coursekit/buildqueue"
	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/runtime"
	"github.com/coursekit/buildqueue/store"
	"github.com/coursekit/buildqueue/store/sqlite"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"database/sql"

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

func testConfig() runtime.Config {
	return runtime.Config{
		PollInterval:      10 * time.Millisecond,
		HeartbeatInterval: time.Hour, // disabled for these tests
		ShutdownTimeout:   time.Second,
		RegistrationBackoff: buildqueue.BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      2,
		},
	}
}

func TestRuntimeProcessesJob(t *testing.T) {
	st := newTestStore(t)

	processed := make(chan struct{}, 1)
	proc := runtime.ProcessorFunc(func(ctx context.Context, j *job.Job) (*runtime.Result, error) {
		processed <- struct{}{}
		return &runtime.Result{Metadata: map[string]any{"ok": true}}, nil
	})

	rt := runtime.NewRuntime(st, job.Notebook, "direct:test", proc, testConfig(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rt.Stop() }()

	id, err := st.AddJob(ctx, store.AddJobRequest{
		Type:        job.Notebook,
		InputFile:   "in.ipynb",
		OutputFile:  "out.html",
		ContentHash: "abc123",
		MaxAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-processed:
	case <-time.After(time.Second):
		t.Fatal("processor not invoked")
	}

	time.Sleep(50 * time.Millisecond)

	jb, err := st.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if jb.Status != job.Completed {
		t.Fatalf("expected Completed, got %v", jb.Status)
	}

	entry, err := st.CheckCache(ctx, "out.html", "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if entry == nil {
		t.Fatal("expected a cache entry written from the processor's result metadata")
	}
}

func TestRuntimeHeartbeatsImmediatelyOnClaim(t *testing.T) {
	st := newTestStore(t)

	started := make(chan struct{})
	release := make(chan struct{})
	proc := runtime.ProcessorFunc(func(ctx context.Context, j *job.Job) (*runtime.Result, error) {
		close(started)
		<-release
		return &runtime.Result{}, nil
	})

	cfg := testConfig()
	cfg.HeartbeatInterval = time.Hour // no interval-driven heartbeat after the first tick
	rt := runtime.NewRuntime(st, job.Notebook, "direct:test", proc, cfg, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() {
		close(release)
		_ = rt.Stop()
	}()

	// Let registration and the first poll tick write their heartbeats,
	// so a heartbeat newer than claimWindow can only come from the claim.
	time.Sleep(50 * time.Millisecond)
	claimWindow := time.Now()

	if _, err := st.AddJob(ctx, store.AddJobRequest{
		Type:        job.Notebook,
		InputFile:   "in.ipynb",
		OutputFile:  "out.html",
		ContentHash: "hb1",
		MaxAttempts: 1,
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("processor not invoked")
	}

	w, err := st.GetWorker(ctx, rt.WorkerID())
	if err != nil {
		t.Fatal(err)
	}
	if !w.LastHeartbeat.After(claimWindow) || time.Since(w.LastHeartbeat) > time.Second {
		t.Fatalf("expected a fresh heartbeat written at claim time, got %v", w.LastHeartbeat)
	}
}

func TestRuntimeRetriesFailedJob(t *testing.T) {
	st := newTestStore(t)

	var calls atomic.Int32
	proc := runtime.ProcessorFunc(func(ctx context.Context, j *job.Job) (*runtime.Result, error) {
		if calls.Add(1) < 2 {
			return nil, errors.New("transient failure")
		}
		return &runtime.Result{}, nil
	})

	rt := runtime.NewRuntime(st, job.PlantUML, "direct:test", proc, testConfig(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rt.Stop() }()

	id, err := st.AddJob(ctx, store.AddJobRequest{
		Type:        job.PlantUML,
		InputFile:   "in.puml",
		OutputFile:  "out.svg",
		ContentHash: "def456",
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		jb, err := st.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if jb.Status == job.Completed {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("job never completed, last status %v attempts %d", jb.Status, jb.Attempts)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestRuntimeFailsJobAfterAttemptsExhausted(t *testing.T) {
	st := newTestStore(t)

	proc := runtime.ProcessorFunc(func(ctx context.Context, j *job.Job) (*runtime.Result, error) {
		return nil, errors.New("permanent failure")
	})

	rt := runtime.NewRuntime(st, job.Drawio, "direct:test", proc, testConfig(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rt.Stop() }()

	id, err := st.AddJob(ctx, store.AddJobRequest{
		Type:        job.Drawio,
		InputFile:   "in.drawio",
		OutputFile:  "out.png",
		ContentHash: "ghi789",
		MaxAttempts: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		jb, err := st.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if jb.Status == job.Failed {
			if jb.Error == "" {
				t.Fatal("expected Error to be recorded")
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job never failed, last status %v", jb.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
