package backend

import (
	"time"

	"github.com/coursekit/buildqueue/pool"
)

// Config configures a Backend.
type Config struct {
	// PollInterval is how often WaitForCompletion checks job status.
	// Defaults to 100ms if zero.
	PollInterval time.Duration

	// OverallTimeout bounds how long one WaitForCompletion call will
	// wait for its whole id set before returning ErrTimeout. Defaults to
	// 5 minutes if zero.
	OverallTimeout time.Duration

	// Staleness must match the pool manager's own StalenessConfig: only
	// DeadThreshold is consulted, by the reconciliation pass that runs
	// before each WaitForCompletion poll.
	Staleness pool.StalenessConfig

	// NotifyConcurrency bounds how many completion handlers may run
	// concurrently. Defaults to 4 if zero. Ignored if no handler is
	// configured.
	NotifyConcurrency int

	// NotifyQueue bounds how many completed jobs may be buffered
	// waiting for a free handler slot. Defaults to 64 if zero.
	NotifyQueue int
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval == 0 {
		return 100 * time.Millisecond
	}
	return c.PollInterval
}

func (c Config) overallTimeout() time.Duration {
	if c.OverallTimeout == 0 {
		return 5 * time.Minute
	}
	return c.OverallTimeout
}

func (c Config) notifyConcurrency() int {
	if c.NotifyConcurrency == 0 {
		return 4
	}
	return c.NotifyConcurrency
}

func (c Config) notifyQueue() int {
	if c.NotifyQueue == 0 {
		return 64
	}
	return c.NotifyQueue
}
