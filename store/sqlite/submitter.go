package sqlite

import (
	"context"
	"time"

	"github.com/coursekit/buildqueue/job"
	"github.com/coursekit/buildqueue/store"
)

// AddJob inserts a new job in the Pending state and returns its id.
func (s *Store) AddJob(ctx context.Context, req store.AddJobRequest) (int64, error) {
	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	model := &jobModel{
		Type:        req.Type,
		Status:      job.Pending,
		Priority:    req.Priority,
		InputFile:   req.InputFile,
		OutputFile:  req.OutputFile,
		ContentHash: req.ContentHash,
		Payload:     req.Payload,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now(),
	}
	if _, err := s.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return 0, err
	}
	return model.ID, nil
}
