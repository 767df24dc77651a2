package sqlite

import (
	"context"
	"time"

	"github.com/coursekit/buildqueue/store"
)

// CheckCache looks up (outputFile, contentHash) and, on a hit, bumps the
// entry's access_count/last_accessed in the same UPDATE ... RETURNING
// statement as the read — the read-then-bump is therefore atomic by
// construction, which satisfies the spec's "best-effort" allowance
// without needing a separate transaction.
func (s *Store) CheckCache(ctx context.Context, outputFile, contentHash string) (*store.CacheEntry, error) {
	now := time.Now()
	var rows []cacheModel
	err := s.db.NewUpdate().
		Model((*cacheModel)(nil)).
		Set("access_count = access_count + 1").
		Set("last_accessed = ?", now).
		Where("output_file = ?", outputFile).
		Where("content_hash = ?", contentHash).
		Returning("*").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	return &store.CacheEntry{
		OutputFile:   row.OutputFile,
		ContentHash:  row.ContentHash,
		Metadata:     row.ResultMetadata,
		CreatedAt:    row.CreatedAt,
		LastAccessed: row.LastAccessed,
		AccessCount:  row.AccessCount,
	}, nil
}

// AddToCache records a successful result, idempotent on the
// (outputFile, contentHash) key.
func (s *Store) AddToCache(ctx context.Context, outputFile, contentHash string, metadata map[string]any) error {
	now := time.Now()
	model := &cacheModel{
		OutputFile:     outputFile,
		ContentHash:    contentHash,
		ResultMetadata: metadata,
		CreatedAt:      now,
		LastAccessed:   now,
		AccessCount:    0,
	}
	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (output_file, content_hash) DO NOTHING").
		Exec(ctx)
	return err
}
