package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/panel-keeper/internal/status"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewLoggerTo(&buf, "info", "json"), "reconcile")
	log.Info("status changed", "from", "offline", "to", "running")
	log.Debug("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "reconcile", rec["component"])
	assert.Equal(t, "keeper", rec["system"])
	assert.Equal(t, "running", rec["to"])
}

func TestMetricsExposition(t *testing.T) {
	SetStatus(status.Running)
	ObserveAction(status.ActionStart, status.SourceManual, true, "attribute:button")
	ObserveCycleError("monitor")

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `keeper_status{status="running"} 1`)
	assert.Contains(t, body, `keeper_status{status="offline"} 0`)
	assert.Contains(t, body, `keeper_actions_total{action="start",outcome="success",source="manual"}`)
	assert.Contains(t, body, `keeper_cycle_errors_total{loop="monitor"}`)
}

func TestTracerProviderDisabled(t *testing.T) {
	tp, err := NewTracerProvider("", "keeper")
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.NoError(t, tp.Shutdown(context.Background()))

	_, err = NewTracerProvider("jaeger", "keeper")
	assert.Error(t, err)
}
