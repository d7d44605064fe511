package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/panel-keeper/internal/clock"
	"github.com/tamzrod/panel-keeper/internal/dispatch"
	"github.com/tamzrod/panel-keeper/internal/inference"
	"github.com/tamzrod/panel-keeper/internal/schedule"
	"github.com/tamzrod/panel-keeper/internal/session"
	"github.com/tamzrod/panel-keeper/internal/session/sessiontest"
	"github.com/tamzrod/panel-keeper/internal/status"
	"github.com/tamzrod/panel-keeper/internal/store"
	"github.com/tamzrod/panel-keeper/internal/telemetry"
)

const target = "https://panel.example/server?id=7"

var (
	startBtn = session.Attr(`button[data-action="start"]`)
	stopBtn  = session.Attr(`button[data-action="stop"]`)
	bounds   = schedule.Bounds{MinMinutes: 1, MaxMinutes: 3}
	t0       = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type countingDispatcher struct {
	inner *dispatch.Dispatcher
	calls atomic.Int32
}

func (c *countingDispatcher) Dispatch(ctx context.Context, h session.Handle, action status.ActionType) dispatch.Attempt {
	c.calls.Add(1)
	return c.inner.Dispatch(ctx, h, action)
}

type harness struct {
	fake *sessiontest.Fake
	p    *store.MemoryPersister
	st   *store.Store
	clk  *clock.FakeClock
	disp *countingDispatcher
	loop *Loop
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	log := telemetry.Discard()

	in, err := inference.New(inference.Config{
		TargetURL:    target,
		LoginMarker:  "/login",
		Containers:   []string{`span[data-server-status]`},
		StartVisible: []session.Locator{startBtn},
		StopVisible:  []session.Locator{stopBtn},
	}, log)
	require.NoError(t, err)

	d, err := dispatch.New(dispatch.Config{
		Start:       []session.Locator{startBtn},
		Stop:        []session.Locator{stopBtn},
		WaitTimeout: time.Second,
	}, log)
	require.NoError(t, err)

	h := &harness{
		fake: sessiontest.New().SetLocation(target),
		p:    store.NewMemoryPersister(),
		clk:  clock.Fake(t0),
		disp: &countingDispatcher{inner: d},
	}
	h.st, err = store.Open(context.Background(), h.p, status.New(bounds, true), store.Options{Clock: h.clk, Logger: log})
	require.NoError(t, err)

	if cfg.Cooldown == 0 {
		cfg = Config{
			Cooldown:            15 * time.Second,
			FailureBackoff:      10 * time.Second,
			ErrorBackoff:        30 * time.Second,
			MaxBackoff:          300 * time.Second,
			IdlePoll:            10 * time.Second,
			MaxSuccessfulClicks: cfg.MaxSuccessfulClicks,
		}
	}
	h.loop, err = New(cfg, session.NewGuard(h.fake), in, h.disp, h.st, h.clk, schedule.NewSource(42), log)
	require.NoError(t, err)
	return h
}

func (h *harness) offline() {
	h.fake.SetHTML(`<span data-server-status>Offline</span>`).
		SetVisible(startBtn, true).
		AddElement(startBtn, &sessiontest.Element{})
}

func TestRunningNeverDispatches(t *testing.T) {
	h := newHarness(t, Config{})
	h.fake.SetHTML(`<span data-server-status>Running</span>`).
		SetVisible(startBtn, true).
		AddElement(startBtn, &sessiontest.Element{})

	for i := 0; i < 5; i++ {
		d := h.loop.Step(context.Background())
		require.NoError(t, d.Err)
		assert.Equal(t, ReasonRunning, d.Reason)
		assert.Equal(t, status.Running, d.Status)
		assert.GreaterOrEqual(t, d.Sleep, bounds.Min())
		assert.LessOrEqual(t, d.Sleep, bounds.Max())
	}

	assert.Zero(t, h.disp.calls.Load())
	snap := h.st.Snapshot()
	assert.Zero(t, snap.ClickCount)
	assert.Equal(t, status.Running, snap.Status)
	require.NotNil(t, snap.NextCheck)
	assert.True(t, snap.NextCheck.After(t0))
}

func TestOfflineCycleClicksAndPersists(t *testing.T) {
	h := newHarness(t, Config{})
	h.offline()

	d := h.loop.Step(context.Background())

	require.NoError(t, d.Err)
	require.NotNil(t, d.Attempt)
	assert.True(t, d.Attempt.Succeeded)
	assert.Equal(t, ReasonCooldown, d.Reason)
	assert.Equal(t, 15*time.Second, d.Sleep)

	saved, found, err := h.p.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(1), saved.ClickCount)
	assert.Equal(t, uint64(1), saved.SuccessfulClicks)
	require.NotNil(t, saved.LastAction)
	assert.Equal(t, status.ActionStart, saved.LastAction.Type)
	assert.Equal(t, status.SourceAuto, saved.LastAction.Source)
	assert.Equal(t, status.Offline, saved.Status)
	require.NotNil(t, saved.NextCheck)
	assert.Equal(t, t0.Add(15*time.Second), *saved.NextCheck)
}

func TestLoginRedirectNeverDispatches(t *testing.T) {
	h := newHarness(t, Config{})
	h.fake.SetLocation("about:blank").
		Redirect(target, "https://panel.example/login").
		SetVisible(startBtn, true).
		AddElement(startBtn, &sessiontest.Element{})

	d := h.loop.Step(context.Background())

	assert.Equal(t, ReasonAuth, d.Reason)
	assert.ErrorIs(t, d.Err, session.ErrAuthRequired)
	assert.Equal(t, status.Unknown, d.Status)
	assert.Equal(t, 30*time.Second, d.Sleep)
	assert.Zero(t, h.disp.calls.Load())
	assert.Zero(t, h.st.Snapshot().ClickCount)
}

func TestDisabledIdlesWithoutTouchingSession(t *testing.T) {
	h := newHarness(t, Config{})
	h.offline()
	_, err := h.st.Update(context.Background(), func(s *status.Snapshot) { s.SetAutoCheck(false, t0) })
	require.NoError(t, err)

	d := h.loop.Step(context.Background())

	assert.Equal(t, ReasonDisabled, d.Reason)
	assert.Equal(t, 10*time.Second, d.Sleep)
	assert.Empty(t, h.fake.Calls())
	assert.Nil(t, h.st.Snapshot().NextCheck)
}

func TestFailureBackoffGrowsAndResets(t *testing.T) {
	h := newHarness(t, Config{})
	// start visible but never interactable
	h.fake.SetHTML(`<span data-server-status>Offline</span>`).SetVisible(startBtn, true)

	var sleeps []time.Duration
	for i := 0; i < 3; i++ {
		d := h.loop.Step(context.Background())
		assert.Equal(t, ReasonFailure, d.Reason)
		sleeps = append(sleeps, d.Sleep)
	}
	assert.Equal(t, []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second}, sleeps)

	snap := h.st.Snapshot()
	assert.Equal(t, uint64(3), snap.FailedClicks)
	assert.Equal(t, uint64(3), snap.ClickCount)
	assert.Nil(t, snap.LastAction)

	h.fake.AddElement(startBtn, &sessiontest.Element{})
	d := h.loop.Step(context.Background())
	assert.Equal(t, ReasonCooldown, d.Reason)

	h.fake.SetHTML(`<span data-server-status>Starting</span>`).
		AddElement(startBtn, &sessiontest.Element{NotInteractable: true})
	d = h.loop.Step(context.Background())
	assert.Equal(t, 10*time.Second, d.Sleep, "backoff restarts after a success")
}

func TestSessionErrorsBackOffAndContinue(t *testing.T) {
	h := newHarness(t, Config{})
	h.fake.SetLocation("about:blank").FailNavigate(errors.New("net::ERR_TIMED_OUT"))

	d1 := h.loop.Step(context.Background())
	d2 := h.loop.Step(context.Background())

	assert.Equal(t, ReasonError, d1.Reason)
	assert.Equal(t, 30*time.Second, d1.Sleep)
	assert.Equal(t, 60*time.Second, d2.Sleep)
	assert.Zero(t, h.disp.calls.Load())
}

func TestBackoffIsCapped(t *testing.T) {
	h := newHarness(t, Config{})
	h.fake.SetLocation("about:blank").FailNavigate(errors.New("boom"))

	var last Decision
	for i := 0; i < 10; i++ {
		last = h.loop.Step(context.Background())
	}
	assert.Equal(t, 300*time.Second, last.Sleep)
}

func TestRunStopsAtClickBudget(t *testing.T) {
	h := newHarness(t, Config{MaxSuccessfulClicks: 2})
	h.offline()

	done := make(chan error, 1)
	go func() { done <- h.loop.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop at the click budget")
	}
	assert.Equal(t, 2, h.loop.Successes())
	assert.Equal(t, []time.Duration{15 * time.Second}, h.clk.Sleeps())
}

func TestRunExitsOnCancel(t *testing.T) {
	h := newHarness(t, Config{})
	h.fake.SetHTML(`<span data-server-status>Running</span>`)

	ctx, cancel := context.WithCancel(context.Background())
	h.clk.OnAfter(func(time.Duration) { cancel() })

	require.NoError(t, h.loop.Run(ctx))
	require.Len(t, h.clk.Sleeps(), 1)
	assert.GreaterOrEqual(t, h.clk.Sleeps()[0], bounds.Min())
}

func TestWakeIsNonBlocking(t *testing.T) {
	h := newHarness(t, Config{})
	h.loop.Wake()
	h.loop.Wake()
	assert.Len(t, h.loop.wake, 1)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{
		Cooldown: time.Second, FailureBackoff: time.Minute, ErrorBackoff: time.Second,
		MaxBackoff: time.Second, IdlePoll: time.Second,
	}, nil, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err, "max backoff below failure backoff")
}
