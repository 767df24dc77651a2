package sqlite_test

import (
	"context"
	"testing"

	"github.com/coursekit/buildqueue/store/sqlite"
)

func TestCacheMissThenHit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	st := sqlite.NewStore(db)

	miss, err := st.CheckCache(ctx, "a.html", "h1")
	if err != nil {
		t.Fatal(err)
	}
	if miss != nil {
		t.Fatal("expected cache miss")
	}

	if err := st.AddToCache(ctx, "a.html", "h1", map[string]any{"rendered": true}); err != nil {
		t.Fatal(err)
	}

	hit, err := st.CheckCache(ctx, "a.html", "h1")
	if err != nil {
		t.Fatal(err)
	}
	if hit == nil {
		t.Fatal("expected cache hit")
	}
	if hit.AccessCount != 1 {
		t.Fatalf("expected access count 1 after first hit, got %d", hit.AccessCount)
	}

	hit2, err := st.CheckCache(ctx, "a.html", "h1")
	if err != nil {
		t.Fatal(err)
	}
	if hit2.AccessCount != 2 {
		t.Fatalf("expected access count 2 after second hit, got %d", hit2.AccessCount)
	}
}

func TestAddToCacheIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	st := sqlite.NewStore(db)

	if err := st.AddToCache(ctx, "a.html", "h1", map[string]any{"v": 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.AddToCache(ctx, "a.html", "h1", map[string]any{"v": 2}); err != nil {
		t.Fatal(err)
	}

	hit, err := st.CheckCache(ctx, "a.html", "h1")
	if err != nil {
		t.Fatal(err)
	}
	if hit == nil {
		t.Fatal("expected a cache entry")
	}
}
