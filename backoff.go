package buildqueue

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffConfig parameterizes an exponential backoff schedule. It is
// used for worker registration against the store; executor process
// launches are not retried with it.
type BackoffConfig struct {
	MaxRetries          uint32
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// Backoff tracks attempt count against a BackoffConfig.
type Backoff struct {
	BackoffConfig
}

// NewBackoff wraps config for use.
func NewBackoff(config BackoffConfig) Backoff {
	return Backoff{config}
}

// Next returns the delay to wait before attempt (1-indexed), and false
// once MaxRetries has been exceeded. A zero MaxRetries means unlimited
// attempts.
func (b *Backoff) Next(attempt uint32) (time.Duration, bool) {
	if b.MaxRetries > 0 && attempt > b.MaxRetries {
		return 0, false
	}
	exp := float64(b.InitialInterval) * math.Pow(b.Multiplier, float64(attempt-1))
	if exp > float64(b.MaxInterval) {
		exp = float64(b.MaxInterval)
	}
	if b.RandomizationFactor > 0 {
		delta := b.RandomizationFactor * exp
		minExp := exp - delta
		maxExp := exp + delta
		exp = minExp + rand.Float64()*(maxExp-minExp)
	}
	return time.Duration(exp), true
}
