package mirror

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/panel-keeper/internal/status"
	"github.com/tamzrod/panel-keeper/internal/store"
	"github.com/tamzrod/panel-keeper/internal/telemetry"
)

type recordingWriter struct {
	mu   sync.Mutex
	got  []status.Snapshot
	gate chan struct{}
}

func (r *recordingWriter) Write(s status.Snapshot) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, s)
	return nil
}

func (r *recordingWriter) snapshots() []status.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]status.Snapshot(nil), r.got...)
}

func TestHandleSnapshotNeverBlocks(t *testing.T) {
	m := New(&recordingWriter{}, telemetry.Discard())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.HandleSnapshot(store.Change{After: status.Snapshot{ClickCount: uint64(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleSnapshot blocked without a consumer")
	}

	// only the newest is pending
	s := <-m.pending
	assert.Equal(t, uint64(99), s.ClickCount)
}

func TestRunWritesLatest(t *testing.T) {
	w := &recordingWriter{}
	m := New(w, telemetry.Discard())

	writes := make(chan error, 4)
	m.OnWrite = func(err error) { writes <- err }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	m.HandleSnapshot(store.Change{After: status.Snapshot{Status: status.Running}})

	select {
	case err := <-writes:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("no write")
	}

	got := w.snapshots()
	require.Len(t, got, 1)
	assert.Equal(t, status.Running, got[0].Status)
}
