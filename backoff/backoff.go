// Package backoff provides pluggable retry delay strategies for job execution.
// All strategies are safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a failed job becomes eligible again.
type Strategy interface {
	// Delay returns how long to wait given the job's attempt count at
	// failure time. The first retry is computed with attempts = 1.
	Delay(attempts int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt count.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential grows the delay as Base^attempts seconds, scaled by a jitter
// factor drawn uniformly from [0.8, 1.2] on every call. The jitter keeps
// retries that failed together from becoming eligible in lockstep.
type Exponential struct {
	Base float64
}

// NewExponential creates an exponential backoff strategy with the given base.
func NewExponential(base float64) *Exponential {
	return &Exponential{Base: base}
}

// Delay returns Base^attempts seconds multiplied by a random factor
// in [0.8, 1.2].
func (e *Exponential) Delay(attempts int) time.Duration {
	seconds := math.Pow(e.Base, float64(attempts))
	jitter := 0.8 + rand.Float64()*0.4 //nolint:gosec // jitter intentionally uses non-crypto rand
	return time.Duration(seconds * jitter * float64(time.Second))
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// Default returns the backoff used by the engine when none is configured:
// Exponential with base 2, so roughly 2s, 4s, 8s between retries.
func Default() Strategy {
	return NewExponential(2)
}
