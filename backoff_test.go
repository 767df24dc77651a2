package buildqueue_test

import (
	"testing"
	"time"

	"github.com/coursekit/buildqueue"
)

func TestBackoffRespectsMaxRetries(t *testing.T) {
	b := buildqueue.NewBackoff(buildqueue.BackoffConfig{
		MaxRetries:      3,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	})

	for attempt := uint32(1); attempt <= 3; attempt++ {
		if _, ok := b.Next(attempt); !ok {
			t.Fatalf("expected attempt %d to be allowed", attempt)
		}
	}
	if _, ok := b.Next(4); ok {
		t.Fatal("expected attempt 4 to exceed MaxRetries")
	}
}

func TestBackoffCapsAtMaxInterval(t *testing.T) {
	b := buildqueue.NewBackoff(buildqueue.BackoffConfig{
		InitialInterval: time.Second,
		MaxInterval:     2 * time.Second,
		Multiplier:      10,
	})

	d, ok := b.Next(5)
	if !ok {
		t.Fatal("expected unlimited retries with MaxRetries 0")
	}
	if d > 2*time.Second {
		t.Fatalf("expected delay capped at 2s, got %s", d)
	}
}
