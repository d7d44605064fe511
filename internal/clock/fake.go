package clock

import (
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Every After call is recorded, moves
// the clock forward by the requested duration and fires immediately, so a
// loop under test runs as fast as it can while still observing the
// durations it asked for.
//
// FakeClock is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	sleeps  []time.Duration
	onAfter func(d time.Duration)
}

// Fake returns a FakeClock starting at initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After records d, advances the clock by d and returns a fired channel.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.current = c.current.Add(d)
	}
	now := c.current
	hook := c.onAfter
	c.mu.Unlock()

	if hook != nil {
		hook(d)
	}

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// Advance moves the clock forward without recording a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// OnAfter installs a hook invoked (outside the lock) on every After call.
// Tests use it to cancel a loop after a number of sleeps.
func (c *FakeClock) OnAfter(fn func(d time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAfter = fn
}

// Sleeps returns a copy of every duration passed to After, in order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}
