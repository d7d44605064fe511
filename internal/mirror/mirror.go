// Package mirror copies every committed snapshot into a remote
// register block so plant-side tooling can read it.
package mirror

import (
	"context"
	"log/slog"

	"github.com/tamzrod/panel-keeper/internal/status"
	"github.com/tamzrod/panel-keeper/internal/store"
)

// Writer delivers one snapshot.
type Writer interface {
	Write(s status.Snapshot) error
}

// Mirror is a store.Observer. HandleSnapshot never blocks: only the
// latest pending snapshot is kept and older ones are dropped.
type Mirror struct {
	w       Writer
	log     *slog.Logger
	pending chan status.Snapshot

	// OnWrite, if set, receives the outcome of every write.
	OnWrite func(error)
}

// New wraps w.
func New(w Writer, log *slog.Logger) *Mirror {
	if log == nil {
		log = slog.Default()
	}
	return &Mirror{
		w:       w,
		log:     log,
		pending: make(chan status.Snapshot, 1),
	}
}

// HandleSnapshot implements store.Observer.
func (m *Mirror) HandleSnapshot(c store.Change) {
	for {
		select {
		case m.pending <- c.After:
			return
		default:
		}
		// drop the stale pending snapshot and retry
		select {
		case <-m.pending:
		default:
		}
	}
}

// Run writes pending snapshots until ctx ends.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-m.pending:
			err := m.w.Write(s)
			if err != nil {
				m.log.Warn("status mirror write failed", "error", err)
			}
			if m.OnWrite != nil {
				m.OnWrite(err)
			}
		}
	}
}
