package session

import (
	"context"
	"sync/atomic"
	"time"
)

// Guard serializes every operation on one Handle.
//
// Do holds the guard for the whole callback, so a callback may chain
// several Handle calls (observe then dispatch) without interleaving.
type Guard struct {
	h   Handle
	sem chan struct{}

	closed   atomic.Bool
	inflight atomic.Int32
	peak     atomic.Int32

	// OnWait, if set, receives the time spent waiting for the guard.
	OnWait func(time.Duration)
}

// NewGuard wraps h.
func NewGuard(h Handle) *Guard {
	return &Guard{
		h:   h,
		sem: make(chan struct{}, 1),
	}
}

// Do runs fn with exclusive access to the Handle.
// It returns ctx.Err() if the guard cannot be acquired before ctx ends.
func (g *Guard) Do(ctx context.Context, fn func(Handle) error) error {
	start := time.Now()
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.sem }()

	if g.OnWait != nil {
		g.OnWait(time.Since(start))
	}
	if g.closed.Load() {
		return ErrSessionClosed
	}

	n := g.inflight.Add(1)
	defer g.inflight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	return fn(g.h)
}

// Peak is the highest number of concurrent callbacks ever observed.
func (g *Guard) Peak() int { return int(g.peak.Load()) }

// Close waits for the current holder and closes the Handle.
// Later Do calls return ErrSessionClosed.
func (g *Guard) Close(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.sem }()

	if g.closed.Swap(true) {
		return nil
	}
	return g.h.Close()
}
