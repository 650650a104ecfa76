package poller

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// Backoff defines retry delays: delay(attempt) = min(Base * 2^attempt, Max).
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff starts at one second and never waits longer than 30s.
var DefaultBackoff = Backoff{
	Base: 1 * time.Second,
	Max:  30 * time.Second,
}

// Delay returns the wait before retry number attempt (zero based).
func (b Backoff) Delay(attempt int) time.Duration {
	base, maxDelay := b.normalized()
	if attempt < 0 {
		attempt = 0
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay || delay <= 0 {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Policy returns a go-retry backoff that allows maxRetries retries.
func (b Backoff) Policy(maxRetries int) retry.Backoff {
	base, maxDelay := b.normalized()
	if maxRetries < 0 {
		maxRetries = 0
	}
	return retry.WithMaxRetries(
		uint64(maxRetries),
		retry.WithCappedDuration(maxDelay, retry.NewExponential(base)),
	)
}

func (b Backoff) normalized() (time.Duration, time.Duration) {
	base, maxDelay := b.Base, b.Max
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	if maxDelay <= 0 {
		maxDelay = DefaultBackoff.Max
	}
	if base > maxDelay {
		base = maxDelay
	}
	return base, maxDelay
}
