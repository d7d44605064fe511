// Package store owns the single process-wide status snapshot.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/panel-keeper/internal/clock"
	"github.com/tamzrod/panel-keeper/internal/status"
)

// Change is what observers receive after every committed update.
type Change struct {
	Before status.Snapshot
	After  status.Snapshot
}

// StatusChanged reports whether the status value moved.
func (c Change) StatusChanged() bool { return c.Before.Status != c.After.Status }

// Observer is notified after every commit.
// Observers run under the store lock; they must not block or call
// back into the store.
type Observer interface {
	HandleSnapshot(Change)
}

// ObserverFunc turns a function into an Observer.
type ObserverFunc func(Change)

func (f ObserverFunc) HandleSnapshot(c Change) { f(c) }

// Store serializes every read-modify-persist of the snapshot.
type Store struct {
	mu      sync.Mutex
	snap    status.Snapshot
	p       Persister
	clk     clock.Clock
	started time.Time
	log     *slog.Logger

	observers []Observer
}

// Options configure Open.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
	// Restore copies auto-check and interval bounds from a previously
	// persisted record. Counters and status always start fresh.
	Restore bool
}

// Open builds the startup snapshot, optionally restoring settings from
// p, and persists it once.
func Open(ctx context.Context, p Persister, initial status.Snapshot, opts Options) (*Store, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		snap:    initial.Clone(),
		p:       p,
		clk:     opts.Clock,
		started: opts.Clock.Now(),
		log:     opts.Logger,
	}

	if opts.Restore {
		prev, found, err := p.Load(ctx)
		switch {
		case err != nil:
			s.log.Warn("previous snapshot unreadable; starting from defaults", "error", err)
		case found:
			s.snap.AutoCheckEnabled = prev.AutoCheckEnabled
			if prev.CheckInterval.Validate() == nil {
				s.snap.CheckInterval = prev.CheckInterval
			}
			s.log.Info("settings restored",
				"auto_check_enabled", s.snap.AutoCheckEnabled,
				"min_minutes", s.snap.CheckInterval.MinMinutes,
				"max_minutes", s.snap.CheckInterval.MaxMinutes)
		}
	}
	if !s.snap.AutoCheckEnabled {
		s.snap.NextCheck = nil
	}

	s.snap.SetUptime(0)
	if err := p.Save(ctx, s.snap); err != nil {
		return nil, fmt.Errorf("store: initial persist: %w", err)
	}
	return s, nil
}

// AddObserver registers o for later commits.
func (s *Store) AddObserver(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

// Update applies fn to a copy of the snapshot, commits it, persists it
// and notifies observers, all under one lock. The commit stands even if
// persisting fails; the persist error is returned.
func (s *Store) Update(ctx context.Context, fn func(*status.Snapshot)) (status.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.snap
	work := s.snap.Clone()
	fn(&work)

	if !work.AutoCheckEnabled {
		work.NextCheck = nil
	}
	work.ClickCount = work.SuccessfulClicks + work.FailedClicks
	work.SetUptime(s.clk.Now().Sub(s.started))

	s.snap = work
	err := s.p.Save(ctx, work)
	if err != nil {
		err = fmt.Errorf("store: persist: %w", err)
	}

	change := Change{Before: before, After: work.Clone()}
	for _, o := range s.observers {
		o.HandleSnapshot(change)
	}

	return work.Clone(), err
}

// Snapshot returns a copy of the current snapshot with fresh uptime.
func (s *Store) Snapshot() status.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.snap.Clone()
	out.SetUptime(s.clk.Now().Sub(s.started))
	return out
}

// Reset replaces the snapshot with a fresh one that keeps only the
// current settings.
func (s *Store) Reset(ctx context.Context) (status.Snapshot, error) {
	return s.Update(ctx, func(snap *status.Snapshot) {
		fresh := status.New(snap.CheckInterval, snap.AutoCheckEnabled)
		fresh.NextCheck = snap.NextCheck
		*snap = fresh
	})
}

// Close persists the snapshot one final time and releases the persister.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.SetUptime(s.clk.Now().Sub(s.started))
	saveErr := s.p.Save(ctx, s.snap)
	closeErr := s.p.Close()
	if saveErr != nil {
		return fmt.Errorf("store: final persist: %w", saveErr)
	}
	if closeErr != nil {
		return fmt.Errorf("store: close: %w", closeErr)
	}
	return nil
}
