package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/panel-keeper/internal/clock"
	"github.com/tamzrod/panel-keeper/internal/dispatch"
	"github.com/tamzrod/panel-keeper/internal/inference"
	"github.com/tamzrod/panel-keeper/internal/keeper"
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

type env struct {
	fake  *sessiontest.Fake
	guard *session.Guard
	st    *store.Store
	k     *keeper.Keeper
	srv   *httptest.Server
}

func newEnv(t *testing.T, cfg Config, ready bool) *env {
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

	e := &env{fake: sessiontest.New()}
	e.guard = session.NewGuard(e.fake)
	clk := clock.Fake(t0)
	e.st, err = store.Open(context.Background(), store.NewMemoryPersister(), status.New(bounds, true), store.Options{Clock: clk, Logger: log})
	require.NoError(t, err)

	e.k, err = keeper.New(keeper.Deps{
		Guard:      e.guard,
		Observer:   in,
		Dispatcher: d,
		Store:      e.st,
		Clock:      clk,
		Source:     schedule.NewSource(1),
		Logger:     log,
		TargetURL:  target,
		OpTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	if ready {
		require.NoError(t, e.k.Init(context.Background(), nil))
	}

	e.fake.SetHTML(`<span data-server-status>Offline</span>`).
		SetVisible(startBtn, true).
		AddElement(startBtn, &sessiontest.Element{})

	e.srv = httptest.NewServer(New(cfg, e.k, log).Handler())
	t.Cleanup(e.srv.Close)
	return e
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, Config{}, false)

	resp, err := http.Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, out["ready"])
}

func TestNotReady(t *testing.T) {
	e := newEnv(t, Config{}, false)

	for _, path := range []string{"/start", "/stop", "/api/force_check", "/reset"} {
		resp, out := post(t, e.srv.URL+path, "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		assert.Equal(t, false, out["success"], path)
		assert.Equal(t, "system not ready", out["message"], path)
	}

	resp, out := post(t, e.srv.URL+"/toggle_auto_check", `{"active":false}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "system not ready", out["message"])

	// status serves the stored snapshot without touching the session
	r, err := http.Get(e.srv.URL + "/status")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.Empty(t, e.fake.Calls())
}

func TestStatusRefreshes(t *testing.T) {
	e := newEnv(t, Config{}, true)

	for _, path := range []string{"/status", "/api/status"} {
		resp, err := http.Get(e.srv.URL + path)
		require.NoError(t, err)

		var snap map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
		resp.Body.Close()

		assert.Equal(t, "offline", snap["status"], path)
		assert.Equal(t, true, snap["start_button_visible"], path)
		assert.NotNil(t, snap["last_check"], path)
		assert.Contains(t, snap, "next_check", path)
	}
}

func TestStartAndStop(t *testing.T) {
	e := newEnv(t, Config{}, true)

	resp, out := post(t, e.srv.URL+"/start", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])

	// no stop control on the page: reported, not a server error
	resp, out = post(t, e.srv.URL+"/api/stop", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, out["success"])
	assert.NotEmpty(t, out["message"])

	snap := e.st.Snapshot()
	assert.Equal(t, uint64(1), snap.SuccessfulClicks)
	assert.Equal(t, uint64(1), snap.FailedClicks)
	assert.Equal(t, uint64(2), snap.ClickCount)
}

func TestStartWhileRunning(t *testing.T) {
	e := newEnv(t, Config{}, true)
	e.fake.SetHTML(`<span data-server-status>Running</span>`)

	_, out := post(t, e.srv.URL+"/start", "")
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "server is already running", out["message"])
	assert.Zero(t, e.st.Snapshot().ClickCount)
}

func TestToggleAutoCheck(t *testing.T) {
	e := newEnv(t, Config{}, true)

	resp, out := post(t, e.srv.URL+"/toggle_auto_check", `{"active":false}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	snap := e.st.Snapshot()
	assert.False(t, snap.AutoCheckEnabled)
	assert.Nil(t, snap.NextCheck)

	resp, _ = post(t, e.srv.URL+"/toggle_auto_check", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, e.srv.URL+"/toggle_auto_check", `{"active":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSetCheckInterval(t *testing.T) {
	e := newEnv(t, Config{}, true)

	cases := []struct {
		body string
		code int
	}{
		{`{"min":2,"max":5}`, http.StatusOK},
		{`{"min":5,"max":2}`, http.StatusBadRequest},
		{`{"min":0,"max":2}`, http.StatusBadRequest},
		{`{"min":-1,"max":2}`, http.StatusBadRequest},
		{`{"min":1}`, http.StatusBadRequest},
		{`{"min":1e12,"max":1e12}`, http.StatusBadRequest},
		{`{"min":1,"max":20000}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, out := post(t, e.srv.URL+"/set_check_interval", tc.body)
		assert.Equal(t, tc.code, resp.StatusCode, tc.body)
		assert.Equal(t, tc.code == http.StatusOK, out["success"], tc.body)
	}

	assert.Equal(t, schedule.Bounds{MinMinutes: 2, MaxMinutes: 5}, e.st.Snapshot().CheckInterval)
}

func TestReset(t *testing.T) {
	e := newEnv(t, Config{}, true)

	resp, out := post(t, e.srv.URL+"/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, out["success"])
	require.Equal(t, uint64(1), e.st.Snapshot().ClickCount)

	resp, out = post(t, e.srv.URL+"/api/reset", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Zero(t, e.st.Snapshot().ClickCount)
	assert.Nil(t, e.st.Snapshot().LastAction)
}

func TestBodyTooLarge(t *testing.T) {
	e := newEnv(t, Config{}, true)

	body := `{"active":true,"pad":"` + strings.Repeat("x", int(maxBodyBytes)) + `"}`
	resp, err := http.Post(e.srv.URL+"/toggle_auto_check", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestForceCheck(t *testing.T) {
	e := newEnv(t, Config{}, true)

	resp, out := post(t, e.srv.URL+"/force_check", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])

	snap, ok := out["status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "offline", snap["status"])
}

func TestManualRateLimit(t *testing.T) {
	e := newEnv(t, Config{ManualPerMinute: 1, ManualBurst: 1}, true)

	resp, _ := post(t, e.srv.URL+"/start", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out := post(t, e.srv.URL+"/stop", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "too many requests", out["message"])
}

func TestConcurrentStartsSerialized(t *testing.T) {
	e := newEnv(t, Config{}, true)
	e.fake.SetDelay(2 * time.Millisecond)

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Post(e.srv.URL+"/start", "application/json", nil)
			if err != nil {
				return
			}
			codes[i] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
	assert.Equal(t, 1, e.fake.Peak())
	assert.LessOrEqual(t, e.guard.Peak(), 1)
	assert.Equal(t, uint64(2), e.st.Snapshot().ClickCount)
}
