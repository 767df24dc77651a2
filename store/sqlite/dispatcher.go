package sqlite

import (
	"context"
	"time"

	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/store"
)

// ClaimNextJob is the central atomic-dispatch algorithm. It selects the
// single highest-priority, oldest eligible Pending job of jobType and
// transitions it to Processing in one UPDATE ... WHERE id IN (subquery)
// RETURNING statement.
//
// This is deliberately not a select-then-update pattern: selecting the
// row first and updating it in a second statement would let every
// concurrent caller read the same oldest row, so only one update would
// ever affect a row and the rest would spin and starve. A single
// statement lets SQLite's own write serialization guarantee exclusivity.
func (s *Store) ClaimNextJob(ctx context.Context, jobType job.Type, workerID int64) (*job.Job, error) {
	now := time.Now()
	subQuery := s.db.NewSelect().
		Model((*jobModel)(nil)).
		Column("id").
		Where("job_type = ?", jobType).
		Where("status = ?", job.Pending).
		Where("attempts < max_attempts").
		Order("priority DESC").
		Order("created_at ASC").
		Limit(1)

	var rows []jobModel
	err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.Processing).
		Set("attempts = attempts + 1").
		Set("worker_id = ?", workerID).
		Set("started_at = ?", now).
		Where("id IN (?)", subQuery).
		Returning("*").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toJob(), nil
}

// UpdateJobStatus transitions a Processing job owned by workerID to a
// terminal state, setting CompletedAt and clearing WorkerID. Completed
// clears Error; Failed records jobErr's message. If the job is not
// Processing under workerID, store.ErrCompleteFailed is returned.
func (s *Store) UpdateJobStatus(ctx context.Context, id int64, workerID int64, status job.Status, jobErr error) error {
	now := time.Now()
	q := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", status).
		Set("completed_at = ?", now).
		Set("worker_id = NULL").
		Where("id = ?", id).
		Where("status = ?", job.Processing).
		Where("worker_id = ?", workerID)

	if status == job.Failed && jobErr != nil {
		q = q.Set("error = ?", jobErr.Error())
	} else {
		q = q.Set("error = NULL")
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return store.ErrCompleteFailed
	}
	return nil
}

// ReleaseJob returns a Processing job owned by workerID to Pending so it
// can be claimed again, leaving Attempts untouched. Used when a failed
// attempt still has retry budget remaining.
func (s *Store) ReleaseJob(ctx context.Context, id int64, workerID int64) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("status = ?", job.Pending).
		Set("worker_id = NULL").
		Set("started_at = NULL").
		Where("id = ?", id).
		Where("status = ?", job.Processing).
		Where("worker_id = ?", workerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return store.ErrCompleteFailed
	}
	return nil
}
