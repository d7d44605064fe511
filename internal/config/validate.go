// internal/config/validate.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tamzrod/panel-keeper/internal/session"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	k := cfg.Keeper

	// ------------------------------------------------------------
	// TARGET
	// ------------------------------------------------------------

	if _, err := session.NormalizeURL(k.Target.URL, ""); err != nil {
		return fmt.Errorf("target.url: %w", err)
	}

	// ------------------------------------------------------------
	// BROWSER
	// ------------------------------------------------------------

	if k.Browser.ControlURL != "" {
		if u, err := url.Parse(k.Browser.ControlURL); err != nil || u.Host == "" {
			return fmt.Errorf("browser.control_url %q is not a valid url", k.Browser.ControlURL)
		}
	}
	if k.Browser.NavigateTimeoutMs <= 0 {
		return fmt.Errorf("browser.navigate_timeout_ms must be > 0")
	}
	if k.Browser.ProbeTimeoutMs <= 0 {
		return fmt.Errorf("browser.probe_timeout_ms must be > 0")
	}
	if k.Browser.WindowWidth < 0 || k.Browser.WindowHeight < 0 {
		return fmt.Errorf("browser window size must not be negative")
	}

	// ------------------------------------------------------------
	// SCHEDULE
	// ------------------------------------------------------------

	if err := k.Schedule.Bounds().Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	durations := []struct {
		name string
		v    int
	}{
		{"schedule.cooldown_ms", k.Schedule.CooldownMs},
		{"schedule.failure_backoff_ms", k.Schedule.FailureBackoffMs},
		{"schedule.error_backoff_ms", k.Schedule.ErrorBackoffMs},
		{"schedule.max_backoff_ms", k.Schedule.MaxBackoffMs},
		{"schedule.idle_poll_ms", k.Schedule.IdlePollMs},
		{"schedule.monitor_interval_ms", k.Schedule.MonitorMs},
		{"dispatch.wait_timeout_ms", k.Dispatch.WaitTimeoutMs},
	}
	for _, d := range durations {
		if d.v <= 0 {
			return fmt.Errorf("%s must be > 0", d.name)
		}
	}
	if k.Schedule.MaxBackoffMs < k.Schedule.ErrorBackoffMs || k.Schedule.MaxBackoffMs < k.Schedule.FailureBackoffMs {
		return fmt.Errorf("schedule.max_backoff_ms must be >= failure and error backoff")
	}
	if k.Schedule.MaxSuccessfulClicks < 0 {
		return fmt.Errorf("schedule.max_successful_clicks must not be negative")
	}

	// ------------------------------------------------------------
	// LOCATOR TABLES
	// ------------------------------------------------------------

	tables := []struct {
		name string
		locs []LocatorConfig
	}{
		{"dispatch.start", k.Dispatch.Start},
		{"dispatch.stop", k.Dispatch.Stop},
		{"inference.start_visible", k.Inference.StartVisible},
		{"inference.stop_visible", k.Inference.StopVisible},
	}
	for _, t := range tables {
		for i, l := range t.locs {
			if _, err := session.ParseLocatorKind(l.Kind); err != nil {
				return fmt.Errorf("%s[%d]: %w", t.name, i, err)
			}
			if err := l.Locator().Validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", t.name, i, err)
			}
		}
	}

	for i, m := range k.Dispatch.Methods {
		if _, err := session.ParseMethod(m); err != nil {
			return fmt.Errorf("dispatch.methods[%d]: %w", i, err)
		}
	}

	for i, c := range k.Inference.Containers {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("inference.containers[%d] is empty", i)
		}
	}

	// ------------------------------------------------------------
	// STATE
	// ------------------------------------------------------------

	switch k.State.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("state.backend %q must be file or sqlite", k.State.Backend)
	}
	if strings.TrimSpace(k.State.Path) == "" {
		return fmt.Errorf("state.path is required")
	}

	// ------------------------------------------------------------
	// API
	// ------------------------------------------------------------

	if k.API.Listen == "" {
		return fmt.Errorf("api.listen is required")
	}
	if k.API.ManualRatePerMinute <= 0 || k.API.ManualBurst <= 0 {
		return fmt.Errorf("api manual rate and burst must be > 0")
	}
	if k.API.RequestTimeoutMs <= 0 {
		return fmt.Errorf("api.request_timeout_ms must be > 0")
	}

	// ------------------------------------------------------------
	// STATUS MIRROR (OPT-IN)
	// ------------------------------------------------------------

	if k.Mirror.Enabled() {
		switch k.Mirror.Transport {
		case "modbus", "ingest":
		default:
			return fmt.Errorf("mirror.transport %q must be modbus or ingest", k.Mirror.Transport)
		}
		if k.Mirror.TimeoutMs <= 0 {
			return fmt.Errorf("mirror.timeout_ms must be > 0")
		}
		for i := 0; i < len(k.Mirror.Name); i++ {
			if k.Mirror.Name[i] > 0x7F {
				return fmt.Errorf("mirror.name must contain ASCII characters only")
			}
		}
	}

	// ------------------------------------------------------------
	// NOTIFY (OPT-IN)
	// ------------------------------------------------------------

	if k.Notify.Enabled() && strings.TrimSpace(k.Notify.Subject) == "" {
		return fmt.Errorf("notify.subject is required when notify.nats_url is set")
	}

	// ------------------------------------------------------------
	// TELEMETRY
	// ------------------------------------------------------------

	switch strings.ToLower(k.Telemetry.LogFormat) {
	case "", "json", "text":
	default:
		return fmt.Errorf("telemetry.log_format %q must be json or text", k.Telemetry.LogFormat)
	}
	switch k.Telemetry.Tracing {
	case "", "stdout":
	default:
		return fmt.Errorf("telemetry.tracing %q must be empty or stdout", k.Telemetry.Tracing)
	}

	return nil
}
