package status

import (
	"fmt"
	"time"

	"github.com/tamzrod/panel-keeper/internal/schedule"
)

// LastAction records the most recent successful dispatch.
type LastAction struct {
	Type   ActionType   `json:"type"`
	Source ActionSource `json:"source"`
	At     time.Time    `json:"at"`
}

// Snapshot is the single persisted record of inferred state and counters.
// It is owned by the store; other packages receive copies.
type Snapshot struct {
	Status           Status          `json:"status"`
	LastCheck        *time.Time      `json:"last_check"`
	NextCheck        *time.Time      `json:"next_check"`
	LastAction       *LastAction     `json:"last_action"`
	AutoCheckEnabled bool            `json:"auto_check_enabled"`
	CheckInterval    schedule.Bounds `json:"check_interval"`
	ClickCount       uint64          `json:"click_count"`
	SuccessfulClicks uint64          `json:"successful_clicks"`
	FailedClicks     uint64          `json:"failed_clicks"`
	Uptime           string          `json:"uptime"`
	UptimeSeconds    int64           `json:"uptime_seconds"`
	LastStatusChange *time.Time      `json:"last_status_change"`
	StartVisible     bool            `json:"start_button_visible"`
	StopVisible      bool            `json:"stop_button_visible"`
	CurrentLocation  string          `json:"current_location"`
}

// New returns the startup snapshot.
func New(bounds schedule.Bounds, autoCheck bool) Snapshot {
	return Snapshot{
		Status:           Unknown,
		AutoCheckEnabled: autoCheck,
		CheckInterval:    bounds,
		Uptime:           FormatUptime(0),
	}
}

// ApplyObservation folds one observation into the snapshot and reports
// whether the status value changed.
func (s *Snapshot) ApplyObservation(o Observation, now time.Time) (prev Status, changed bool) {
	prev = s.Status
	next := o.Status
	if next == "" {
		next = Unknown
	}

	s.Status = next
	s.StartVisible = o.StartVisible
	s.StopVisible = o.StopVisible
	if o.Location != "" {
		s.CurrentLocation = o.Location
	}
	s.LastCheck = timePtr(now)

	if prev != next {
		s.LastStatusChange = timePtr(now)
		return prev, true
	}
	return prev, false
}

// RecordOutcome counts one dispatch. click_count is always the sum of
// successful and failed clicks.
func (s *Snapshot) RecordOutcome(action ActionType, source ActionSource, ok bool, now time.Time) {
	if ok {
		s.SuccessfulClicks++
		s.LastAction = &LastAction{Type: action, Source: source, At: now}
	} else {
		s.FailedClicks++
	}
	s.ClickCount = s.SuccessfulClicks + s.FailedClicks
}

// SetAutoCheck flips auto-check. next_check is cleared when disabled and
// set to next when enabled.
func (s *Snapshot) SetAutoCheck(enabled bool, next time.Time) {
	s.AutoCheckEnabled = enabled
	if enabled {
		s.NextCheck = timePtr(next)
	} else {
		s.NextCheck = nil
	}
}

// ScheduleNext sets next_check while auto-check is enabled and keeps it
// nil otherwise.
func (s *Snapshot) ScheduleNext(at time.Time) {
	if !s.AutoCheckEnabled {
		s.NextCheck = nil
		return
	}
	s.NextCheck = timePtr(at)
}

// SetUptime stamps uptime in both renderings.
func (s *Snapshot) SetUptime(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.UptimeSeconds = int64(d / time.Second)
	s.Uptime = FormatUptime(d)
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.LastCheck = clonePtr(s.LastCheck)
	out.NextCheck = clonePtr(s.NextCheck)
	out.LastStatusChange = clonePtr(s.LastStatusChange)
	if s.LastAction != nil {
		la := *s.LastAction
		out.LastAction = &la
	}
	return out
}

// FormatUptime renders d as H:MM:SS.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

func timePtr(t time.Time) *time.Time { return &t }

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
