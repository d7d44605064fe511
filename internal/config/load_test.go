// internal/config/load_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadWithEnv("", envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultTargetURL, cfg.Keeper.Target.URL)
	assert.Equal(t, 1.0, cfg.Keeper.Schedule.MinMinutes)
	assert.Equal(t, 3.0, cfg.Keeper.Schedule.MaxMinutes)
	assert.True(t, cfg.Keeper.Schedule.AutoCheckEnabled())
	assert.Equal(t, ":5000", cfg.Keeper.API.Listen)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keeper.yaml")
	doc := `
keeper:
  target:
    url: https://panel.example/server?id=9
  browser:
    headless: false
  schedule:
    min_minutes: 2
    max_minutes: 5
    auto_check: false
  state:
    backend: sqlite
    path: state.db
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadWithEnv(path, envMap(map[string]string{
		"CHECK_MAX_MINUTES":      "7.5",
		"PORT":                   "8088",
		"MAGMANODE_UA":           " test-agent ",
		"MAGMANODE_COOKIES_JSON": `[{"name":"sid","value":"x"}]`,
		"LOG_LEVEL":              "debug",
	}))
	require.NoError(t, err)

	k := cfg.Keeper
	assert.Equal(t, "https://panel.example/server?id=9", k.Target.URL)
	assert.False(t, k.Browser.HeadlessEnabled())
	assert.True(t, k.Browser.StealthEnabled(), "unrelated defaults must survive")
	assert.False(t, k.Schedule.AutoCheckEnabled())
	assert.True(t, k.State.RestoreEnabled())
	assert.Equal(t, 2.0, k.Schedule.MinMinutes)
	assert.Equal(t, 7.5, k.Schedule.MaxMinutes)
	assert.Equal(t, "sqlite", k.State.Backend)
	assert.Equal(t, ":8088", k.API.Listen)
	assert.Equal(t, "test-agent", k.Browser.UserAgent)
	assert.Equal(t, "debug", k.Telemetry.LogLevel)

	raw, err := k.Credentials.Cookies()
	require.NoError(t, err)
	assert.Contains(t, raw, "sid")
}

func TestLoadRejectsBadEnv(t *testing.T) {
	_, err := LoadWithEnv("", envMap(map[string]string{"CHECK_MIN_MINUTES": "soon"}))
	assert.Error(t, err)

	_, err = LoadWithEnv("", envMap(map[string]string{"PORT": "99999"}))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), envMap(nil))
	assert.Error(t, err)
}

func TestCookiesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"sid","value":"y"}`), 0o600))

	raw, err := CredentialsConfig{CookiesFile: path}.Cookies()
	require.NoError(t, err)
	assert.Contains(t, raw, `"y"`)
}
