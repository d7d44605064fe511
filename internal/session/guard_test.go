package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/panel-keeper/internal/session"
	"github.com/tamzrod/panel-keeper/internal/session/sessiontest"
)

func TestGuardSerializesCallbacks(t *testing.T) {
	fake := sessiontest.New().SetDelay(5 * time.Millisecond)
	g := session.NewGuard(fake)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), func(h session.Handle) error {
				if err := h.Navigate(context.Background(), "https://panel.example/server"); err != nil {
					return err
				}
				_, err := h.Location(context.Background())
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, g.Peak())
	assert.Equal(t, 1, fake.Peak())
	assert.Len(t, fake.Calls(), 16)
}

func TestGuardHonoursContextWhileWaiting(t *testing.T) {
	g := session.NewGuard(sessiontest.New())

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = g.Do(context.Background(), func(session.Handle) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := g.Do(ctx, func(session.Handle) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(hold)
}

func TestGuardClose(t *testing.T) {
	fake := sessiontest.New()
	g := session.NewGuard(fake)

	require.NoError(t, g.Close(context.Background()))
	assert.True(t, fake.Closed())

	err := g.Do(context.Background(), func(session.Handle) error { return nil })
	assert.ErrorIs(t, err, session.ErrSessionClosed)
	assert.NoError(t, g.Close(context.Background()))
}

func TestGuardReportsWait(t *testing.T) {
	g := session.NewGuard(sessiontest.New())
	var waits int
	g.OnWait = func(time.Duration) { waits++ }

	require.NoError(t, g.Do(context.Background(), func(session.Handle) error { return nil }))
	assert.Equal(t, 1, waits)
}
