package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/panel-keeper/internal/session"
	"github.com/tamzrod/panel-keeper/internal/session/sessiontest"
	"github.com/tamzrod/panel-keeper/internal/status"
)

const target = "https://panel.example/server?id=7"

var (
	startBtn = session.Attr(`button[data-action="start"]`)
	stopBtn  = session.Attr(`button[data-action="stop"]`)
)

func newInferencer(t *testing.T) *Inferencer {
	t.Helper()
	in, err := New(Config{
		TargetURL:    target,
		LoginMarker:  "/login",
		Containers:   containers,
		StartVisible: []session.Locator{startBtn},
		StopVisible:  []session.Locator{stopBtn},
	}, nil)
	require.NoError(t, err)
	return in
}

func TestObserveNavigatesWhenOffTarget(t *testing.T) {
	fake := sessiontest.New().
		SetHTML(`<span data-server-status>Offline</span>`).
		SetVisible(startBtn, true)

	obs, err := newInferencer(t).Observe(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, status.Offline, obs.Status)
	assert.True(t, obs.StartVisible)
	assert.False(t, obs.StopVisible)
	assert.Equal(t, target, obs.Location)
	assert.Contains(t, fake.Calls(), "navigate:"+target)
}

func TestObserveStaysOnTarget(t *testing.T) {
	fake := sessiontest.New().
		SetLocation("https://panel.example/server?id=7&tab=console").
		SetVisible(stopBtn, true)

	obs, err := newInferencer(t).Observe(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, status.Running, obs.Status)
	for _, c := range fake.Calls() {
		assert.NotContains(t, c, "navigate:")
	}
}

func TestObserveLoginRedirectIsUnknown(t *testing.T) {
	fake := sessiontest.New().
		Redirect(target, "https://panel.example/login?next=%2Fserver").
		SetHTML(`<span data-server-status>Running</span>`).
		SetVisible(stopBtn, true)

	var results []string
	in := newInferencer(t)
	in.OnResult = func(r string) { results = append(results, r) }

	obs, err := in.Observe(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, status.Unknown, obs.Status)
	assert.True(t, obs.AuthRequired)
	assert.Equal(t, []string{"auth-redirect"}, results)
	assert.NotContains(t, fake.Calls(), "html", "page content must not be read behind a login redirect")
}

func TestObserveNavigationFailure(t *testing.T) {
	boom := errors.New("net::ERR_NAME_NOT_RESOLVED")
	fake := sessiontest.New().FailNavigate(boom)

	var results []string
	in := newInferencer(t)
	in.OnResult = func(r string) { results = append(results, r) }

	obs, err := in.Observe(context.Background(), fake)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, status.Unknown, obs.Status)
	assert.Equal(t, []string{"error"}, results)
}

func TestObserveNoSignalsDegradesToUnknown(t *testing.T) {
	fake := sessiontest.New().SetLocation(target).SetHTML(`<html></html>`)

	obs, err := newInferencer(t).Observe(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, status.Unknown, obs.Status)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	_, err = New(Config{TargetURL: target}, nil)
	assert.Error(t, err)
}
