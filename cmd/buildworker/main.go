// Command buildworker is the process launched by the executor for every
// worker slot in a pool. It registers itself with the durable store,
// polls for jobs of one configured type, and converts each one with the
// processor matching that type.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coursekit/buildqueue"
	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/runtime"
	"github.com/coursekit/buildqueue/store/sqlite"

	_ "modernc.org/sqlite"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	if err := run(log); err != nil {
		log.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	workerType, err := job.ParseType(os.Getenv("WORKER_TYPE"))
	if err != nil {
		return fmt.Errorf("buildworker: %w", err)
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		return fmt.Errorf("buildworker: DB_PATH is required")
	}

	containerID := os.Getenv("WORKER_CONTAINER_ID")
	if containerID == "" {
		containerID = "direct:" + strconv.Itoa(os.Getpid())
	}

	ctx := context.Background()
	db, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("buildworker: open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	st := sqlite.NewStore(db)

	proc, err := processorFor(workerType)
	if err != nil {
		return err
	}

	cfg := runtime.Config{
		PollInterval:      envDuration("WORKER_POLL_INTERVAL", 100*time.Millisecond),
		MaxPollInterval:   envDuration("WORKER_MAX_POLL_INTERVAL", time.Second),
		HeartbeatInterval: envDuration("WORKER_HEARTBEAT_INTERVAL", 2*time.Second),
		ShutdownTimeout:   10 * time.Second,
		RegistrationBackoff: buildqueue.BackoffConfig{
			MaxRetries:          4, // five attempts in all
			InitialInterval:     500 * time.Millisecond,
			MaxInterval:         10 * time.Second,
			Multiplier:          2,
			RandomizationFactor: 0.2,
		},
	}

	rt := runtime.NewRuntime(st, workerType, containerID, proc, cfg, log)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(sigCtx); err != nil {
		return fmt.Errorf("buildworker: start runtime: %w", err)
	}
	log.Info("worker started", "type", workerType, "worker_id", rt.WorkerID(), "container_id", containerID)

	<-sigCtx.Done()
	log.Info("shutting down", "worker_id", rt.WorkerID())
	if err := rt.Stop(); err != nil {
		return fmt.Errorf("buildworker: stop runtime: %w", err)
	}
	return nil
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

