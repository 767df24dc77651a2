package sqlite

import (
	"context"
	"time"
)

// AppendEvent inserts an audit-log row. Events are append-only and, per
// the store contract, may be safely discarded without affecting any
// dispatch invariant — callers should not treat a failure here as fatal
// to the operation being recorded.
func (s *Store) AppendEvent(ctx context.Context, kind string, jobID, workerID *int64, detail map[string]any) error {
	model := &eventModel{
		Kind:      kind,
		JobID:     jobID,
		WorkerID:  workerID,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	_, err := s.db.NewInsert().Model(model).Exec(ctx)
	return err
}

// PruneEvents deletes events created at or before before. It is the one
// place this module ever deletes rows on its own initiative — jobs and
// the results cache are retained until the caller purges them, but the
// event log is explicitly documented as discardable retention data.
func (s *Store) PruneEvents(ctx context.Context, before *time.Time) (int64, error) {
	q := s.db.NewDelete().Model((*eventModel)(nil))
	if before != nil {
		q = q.Where("created_at <= ?", *before)
	} else {
		q = q.Where("1 = 1")
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}
