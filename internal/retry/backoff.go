// Package retry provides exponential backoff for loops that must
// survive transient failures, such as a listener's accept loop.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Backoff implements exponential backoff with optional jitter. Unlike a
// retry-an-operation helper, it is a stepper: a long-lived loop calls
// Next after each consecutive failure and Reset after a success. Not
// safe for concurrent use; each loop owns its own Backoff.
type Backoff struct {
	// InitialDelay is the wait after the first failure (default 1s).
	InitialDelay time.Duration
	// MaxDelay caps the backoff duration (default 60s).
	MaxDelay time.Duration
	// Multiplier increases the delay each consecutive failure (default 2.0).
	Multiplier float64
	// Jitter adds ±25% randomisation to prevent thundering herd.
	Jitter bool

	current time.Duration
}

// DefaultBackoff returns a reasonable default configuration.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Next returns the wait before the next attempt and advances the
// schedule: InitialDelay on the first call, multiplied on each call
// after that, capped at MaxDelay.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.InitialDelay
		if b.current == 0 {
			b.current = time.Second
		}
	} else {
		multiplier := b.Multiplier
		if multiplier <= 0 {
			multiplier = 2.0
		}
		b.current = time.Duration(float64(b.current) * multiplier)
	}

	maxDelay := b.MaxDelay
	if maxDelay == 0 {
		maxDelay = 60 * time.Second
	}
	if b.current > maxDelay {
		b.current = maxDelay
	}

	if b.Jitter {
		return addJitter(b.current)
	}
	return b.current
}

// Reset clears the schedule after a success, so the next failure
// starts over from InitialDelay.
func (b *Backoff) Reset() {
	b.current = 0
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
