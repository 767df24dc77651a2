package store

import (
	"context"
	"time"
)

// CacheEntry is a content-addressed memoization of a successful job
// result. Its presence asserts that the on-disk artifact at OutputFile
// is a valid product of ContentHash.
type CacheEntry struct {
	OutputFile   string
	ContentHash  string
	Metadata     map[string]any
	CreatedAt    time.Time
	LastAccessed time.Time
	AccessCount  int64
}

// CacheStore is the content-addressed lookup the backend consults before
// inserting a job; the worker runtime writes to it after a job completes
// successfully.
type CacheStore interface {
	// CheckCache returns the entry for (outputFile, contentHash), or
	// (nil, nil) on a miss. A hit bumps the entry's access counter in
	// the same statement that reads it, so a failed bump is returned as
	// an error.
	CheckCache(ctx context.Context, outputFile, contentHash string) (*CacheEntry, error)

	// AddToCache records a successful result. It is idempotent on the
	// (outputFile, contentHash) key.
	AddToCache(ctx context.Context, outputFile, contentHash string, metadata map[string]any) error
}
