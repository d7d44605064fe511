// internal/config/accessors.go
package config

import (
	"time"

	"github.com/tamzrod/panel-keeper/internal/schedule"
	"github.com/tamzrod/panel-keeper/internal/session"
)

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Bounds returns the configured check interval.
func (s ScheduleConfig) Bounds() schedule.Bounds {
	return schedule.Bounds{MinMinutes: s.MinMinutes, MaxMinutes: s.MaxMinutes}
}

func (s ScheduleConfig) AutoCheckEnabled() bool  { return boolOr(s.AutoCheck, true) }
func (s ScheduleConfig) Cooldown() time.Duration { return ms(s.CooldownMs) }
func (s ScheduleConfig) FailureBackoff() time.Duration {
	return ms(s.FailureBackoffMs)
}
func (s ScheduleConfig) ErrorBackoff() time.Duration    { return ms(s.ErrorBackoffMs) }
func (s ScheduleConfig) MaxBackoff() time.Duration      { return ms(s.MaxBackoffMs) }
func (s ScheduleConfig) IdlePoll() time.Duration        { return ms(s.IdlePollMs) }
func (s ScheduleConfig) MonitorInterval() time.Duration { return ms(s.MonitorMs) }

func (b BrowserConfig) HeadlessEnabled() bool { return boolOr(b.Headless, true) }
func (b BrowserConfig) StealthEnabled() bool  { return boolOr(b.Stealth, true) }

// SessionOptions maps the browser section onto session.Options.
func (b BrowserConfig) SessionOptions() session.Options {
	return session.Options{
		ControlURL:      b.ControlURL,
		Bin:             b.Bin,
		Headless:        b.HeadlessEnabled(),
		UserAgent:       b.UserAgent,
		WindowWidth:     b.WindowWidth,
		WindowHeight:    b.WindowHeight,
		Stealth:         b.StealthEnabled(),
		NavigateTimeout: ms(b.NavigateTimeoutMs),
		ProbeTimeout:    ms(b.ProbeTimeoutMs),
	}
}

func (d DispatchConfig) WaitTimeout() time.Duration { return ms(d.WaitTimeoutMs) }

// ActivationMethods returns the parsed method order.
// Call only after Validate.
func (d DispatchConfig) ActivationMethods() []session.Method {
	if len(d.Methods) == 0 {
		return append([]session.Method(nil), session.DefaultMethods...)
	}
	out := make([]session.Method, 0, len(d.Methods))
	for _, m := range d.Methods {
		if pm, err := session.ParseMethod(m); err == nil {
			out = append(out, pm)
		}
	}
	return out
}

// Locator converts one configured entry. Call only after Validate.
func (l LocatorConfig) Locator() session.Locator {
	kind, _ := session.ParseLocatorKind(l.Kind)
	loc := session.Locator{Kind: kind, Selector: l.Selector, Text: l.Text}
	if kind == session.KindText && loc.Selector == "" {
		loc.Selector = "button"
	}
	return loc
}

// Locators converts a table.
func Locators(in []LocatorConfig) []session.Locator {
	out := make([]session.Locator, 0, len(in))
	for _, l := range in {
		out = append(out, l.Locator())
	}
	return out
}

func (s StateConfig) RestoreEnabled() bool { return boolOr(s.RestoreSettings, true) }

func (a APIConfig) RequestTimeout() time.Duration { return ms(a.RequestTimeoutMs) }

func (m MirrorConfig) Enabled() bool          { return m.Endpoint != "" }
func (m MirrorConfig) Timeout() time.Duration { return ms(m.TimeoutMs) }

func (n NotifyConfig) Enabled() bool { return n.NATSURL != "" }
