// Package backoff provides retry delay strategies for re-enqueued
// jobs. Strategies are stateless functions, safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before retry attempt n (1-indexed).
// Attempt 1 is the first retry after the initial failure.
type Strategy func(attempt int) time.Duration

// Constant waits the same interval before every retry.
func Constant(interval time.Duration) Strategy {
	return func(int) time.Duration {
		return interval
	}
}

// Linear waits initial * attempt, capped at maxDelay (zero maxDelay
// means uncapped).
func Linear(initial, maxDelay time.Duration) Strategy {
	return func(attempt int) time.Duration {
		return clamp(initial*time.Duration(attempt), maxDelay)
	}
}

// Exponential doubles the delay each attempt: initial * 2^(attempt-1),
// capped at maxDelay.
func Exponential(initial, maxDelay time.Duration) Strategy {
	return func(attempt int) time.Duration {
		return clamp(expBase(initial, maxDelay, attempt), maxDelay)
	}
}

// FullJitter returns a uniformly random delay in [0, exponential
// base]. Spreads out the retry herd after a shared upstream outage.
func FullJitter(initial, maxDelay time.Duration) Strategy {
	return func(attempt int) time.Duration {
		base := expBase(initial, maxDelay, attempt)
		return time.Duration(rand.Float64() * float64(base)) //nolint:gosec // jitter intentionally uses non-crypto rand
	}
}

// Default is the strategy the engine uses when none is configured:
// full jitter over 1s..1m exponential.
func Default() Strategy {
	return FullJitter(time.Second, time.Minute)
}

func expBase(initial, maxDelay time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(initial) * math.Pow(2, float64(attempt-1))
	// Clamp in float space: float64(math.MaxInt64) is 2^63, which is
	// out of range for int64 and would convert to a negative duration.
	if maxDelay > 0 && base >= float64(maxDelay) {
		return maxDelay
	}
	if base >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(base)
}

func clamp(d, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && d > maxDelay {
		return maxDelay
	}
	return d
}
