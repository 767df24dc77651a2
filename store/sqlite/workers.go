package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/worker"
)

// RegisterWorker inserts a new worker row in the Idle state. Transient
// lock contention surfaces as a plain error; the bounded-backoff retry
// described by the worker runtime's startup sequence happens at the
// call site (package runtime), not here — this keeps the single
// autocommit statement naturally idempotent to retry against.
func (s *Store) RegisterWorker(ctx context.Context, workerType job.Type, containerID string) (int64, error) {
	now := time.Now()
	model := &workerModel{
		Type:          workerType,
		ContainerID:   containerID,
		Status:        worker.Idle,
		StartedAt:     now,
		LastHeartbeat: now,
	}
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return 0, err
	}
	return model.ID, nil
}

// UpdateHeartbeat refreshes a worker's LastHeartbeat to now.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	_, err := s.db.NewUpdate().
		Model((*workerModel)(nil)).
		Set("last_heartbeat = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// MarkWorkerStatus sets a worker's status directly.
func (s *Store) MarkWorkerStatus(ctx context.Context, id int64, status worker.Status) error {
	_, err := s.db.NewUpdate().
		Model((*workerModel)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// RecordJobOutcome updates the rolling processed/failed counters and the
// exponentially-weighted average processing time.
func (s *Store) RecordJobOutcome(ctx context.Context, id int64, success bool, duration time.Duration) error {
	var row workerModel
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	const weight = 0.2 // newest sample's share of the rolling average
	newMs := duration.Milliseconds()
	avgMs := row.AvgProcessTimeMs
	if row.JobsProcessed+row.JobsFailed == 0 {
		avgMs = newMs
	} else {
		avgMs = int64(float64(avgMs)*(1-weight) + float64(newMs)*weight)
	}

	q := s.db.NewUpdate().
		Model((*workerModel)(nil)).
		Set("avg_processing_time_ms = ?", avgMs).
		Where("id = ?", id)
	if success {
		q = q.Set("jobs_processed = jobs_processed + 1")
	} else {
		q = q.Set("jobs_failed = jobs_failed + 1")
	}
	_, err = q.Exec(ctx)
	return err
}

// ListStaleWorkers marks every non-dead worker whose LastHeartbeat
// predates threshold as Hung, and returns their ids.
func (s *Store) ListStaleWorkers(ctx context.Context, threshold time.Time) ([]int64, error) {
	var rows []workerModel
	err := s.db.NewUpdate().
		Model((*workerModel)(nil)).
		Set("status = ?", worker.Hung).
		Where("last_heartbeat < ?", threshold).
		Where("status != ?", worker.Dead).
		Returning("id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	return ids, nil
}

// ReapDeadWorkers marks every non-dead worker whose LastHeartbeat
// predates deadThreshold as Dead, and resets every job still in
// Processing under a Dead worker (newly reaped or already Dead) back to
// Pending with WorkerID cleared — all inside one BEGIN IMMEDIATE
// transaction, so a reaped worker's claim is never observed half-reset.
// It returns only the ids of the workers it newly marked Dead.
func (s *Store) ReapDeadWorkers(ctx context.Context, deadThreshold time.Time) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var dead []workerModel
	err = tx.NewUpdate().
		Model((*workerModel)(nil)).
		Set("status = ?", worker.Dead).
		Where("last_heartbeat < ?", deadThreshold).
		Where("status != ?", worker.Dead).
		Returning("id").
		Scan(ctx, &dead)
	if err != nil {
		return nil, errors.Join(err, tx.Rollback())
	}

	// Reset every Processing job whose owner is Dead: the workers marked
	// Dead just above, and any that were already Dead while still
	// holding a claim.
	deadWorkers := tx.NewSelect().
		Model((*workerModel)(nil)).
		Column("id").
		Where("status = ?", worker.Dead)
	_, err = tx.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.Pending).
		Set("worker_id = NULL").
		Set("started_at = NULL").
		Where("status = ?", job.Processing).
		Where("worker_id IN (?)", deadWorkers).
		Exec(ctx)
	if err != nil {
		return nil, errors.Join(err, tx.Rollback())
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	ids := make([]int64, len(dead))
	for i := range dead {
		ids[i] = dead[i].ID
	}
	return ids, nil
}

// GetWorker returns the worker identified by id, or (nil, nil) if
// absent.
func (s *Store) GetWorker(ctx context.Context, id int64) (*worker.Worker, error) {
	var row workerModel
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toWorker(), nil
}

// ListWorkers returns workers, optionally filtered by type and/or
// status.
func (s *Store) ListWorkers(ctx context.Context, workerType *job.Type, status *worker.Status) ([]*worker.Worker, error) {
	var rows []workerModel
	q := s.db.NewSelect().Model(&rows)
	if workerType != nil {
		q = q.Where("worker_type = ?", *workerType)
	}
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	ret := make([]*worker.Worker, len(rows))
	for i := range rows {
		ret[i] = rows[i].toWorker()
	}
	return ret, nil
}
