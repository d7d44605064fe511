// Package schedule holds the check-interval bounds and the pure timing
// functions the loops use to decide how long to sleep.
package schedule

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Bounds is the jittered check interval, in minutes.
type Bounds struct {
	MinMinutes float64 `json:"min_minutes" yaml:"min_minutes"`
	MaxMinutes float64 `json:"max_minutes" yaml:"max_minutes"`
}

// MaxIntervalMinutes caps either bound at one week.
const MaxIntervalMinutes = 7 * 24 * 60

var (
	ErrNonPositive = errors.New("schedule: interval bounds must be positive")
	ErrInverted    = errors.New("schedule: min interval must not exceed max interval")
	ErrTooLarge    = errors.New("schedule: interval bounds must not exceed one week")
)

// Validate enforces 0 < min <= max <= MaxIntervalMinutes.
func (b Bounds) Validate() error {
	if b.MinMinutes <= 0 || b.MaxMinutes <= 0 ||
		math.IsNaN(b.MinMinutes) || math.IsNaN(b.MaxMinutes) ||
		math.IsInf(b.MinMinutes, 0) || math.IsInf(b.MaxMinutes, 0) {
		return ErrNonPositive
	}
	if b.MinMinutes > MaxIntervalMinutes || b.MaxMinutes > MaxIntervalMinutes {
		return ErrTooLarge
	}
	if b.MinMinutes > b.MaxMinutes {
		return ErrInverted
	}
	return nil
}

// Min returns the lower bound as a duration.
func (b Bounds) Min() time.Duration { return minutes(b.MinMinutes) }

// Max returns the upper bound as a duration.
func (b Bounds) Max() time.Duration { return minutes(b.MaxMinutes) }

// Jitter maps u in [0,1) onto [min,max]. Out-of-range u is clamped.
// It does no IO and reads no global state.
func Jitter(b Bounds, u float64) time.Duration {
	if u < 0 || math.IsNaN(u) {
		u = 0
	}
	if u > 1 {
		u = 1
	}
	lo, hi := b.Min(), b.Max()
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + time.Duration(u*float64(hi-lo))
}

// Backoff returns base*2^(n-1) capped at max. n <= 1 yields base.
func Backoff(base time.Duration, n int, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}
	d := base
	for i := 1; i < n; i++ {
		if max > 0 && d >= max/2 {
			d = max
			break
		}
		d *= 2
	}
	if max > 0 && d > max {
		d = max
	}
	return d
}

// Source draws jittered intervals. The zero value is not usable; use
// NewSource.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns a Source seeded from seed. Equal seeds produce equal
// interval sequences.
func NewSource(seed uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next draws one interval within b.
func (s *Source) Next(b Bounds) time.Duration {
	s.mu.Lock()
	u := s.rng.Float64()
	s.mu.Unlock()
	return Jitter(b, u)
}

// minutes saturates into [0, MaxIntervalMinutes].
func minutes(m float64) time.Duration {
	switch {
	case m <= 0 || math.IsNaN(m):
		return 0
	case m > MaxIntervalMinutes:
		m = MaxIntervalMinutes
	}
	return time.Duration(m * float64(time.Minute))
}
