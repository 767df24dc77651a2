package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coursekit/buildqueue/job"
)

// Get returns the job identified by id, or (nil, nil) if absent.
func (s *Store) Get(ctx context.Context, id int64) (*job.Job, error) {
	var row jobModel
	err := s.db.NewSelect().
		Model(&row).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toJob(), nil
}

// List returns up to limit jobs, optionally filtered by status.
func (s *Store) List(ctx context.Context, status *job.Status, limit int) ([]*job.Job, error) {
	var rows []jobModel
	q := s.db.NewSelect().Model(&rows)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	ret := make([]*job.Job, len(rows))
	for i := range rows {
		ret[i] = rows[i].toJob()
	}
	return ret, nil
}
