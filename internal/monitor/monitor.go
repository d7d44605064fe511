// internal/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/panel-keeper/internal/clock"
	"github.com/tamzrod/panel-keeper/internal/schedule"
	"github.com/tamzrod/panel-keeper/internal/session"
	"github.com/tamzrod/panel-keeper/internal/status"
	"github.com/tamzrod/panel-keeper/internal/store"
	"github.com/tamzrod/panel-keeper/internal/telemetry"
)

// Observer abstracts the status inference the monitor needs.
// The monitor never acts on the page.
type Observer interface {
	Observe(ctx context.Context, h session.Handle) (status.Observation, error)
}

// Config is the minimal runtime config the monitor needs.
type Config struct {
	Interval time.Duration

	// CheckTimeout bounds one check, including the guard wait.
	CheckTimeout time.Duration
}

// Result is what one check produced.
type Result struct {
	At          time.Time
	Observation status.Observation
	Err         error // non-nil means the check failed
}

// Monitor is a dumb, clock-driven observer.
type Monitor struct {
	cfg   Config
	guard *session.Guard
	obs   Observer
	st    *store.Store
	clk   clock.Clock
	src   *schedule.Source
	log   *slog.Logger
}

// New creates a monitor with immutable config.
func New(cfg Config, g *session.Guard, obs Observer, st *store.Store, clk clock.Clock, src *schedule.Source, log *slog.Logger) (*Monitor, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("monitor: interval must be > 0")
	}
	if g == nil || obs == nil || st == nil {
		return nil, errors.New("monitor: guard, observer and store are required")
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = time.Minute
	}
	if clk == nil {
		clk = clock.Real()
	}
	if src == nil {
		src = schedule.NewSource(uint64(clk.Now().UnixNano()))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{cfg: cfg, guard: g, obs: obs, st: st, clk: clk, src: src, log: log}, nil
}

// CheckOnce performs exactly one check cycle.
// A failed check leaves the snapshot untouched apart from uptime.
func (m *Monitor) CheckOnce(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
	defer cancel()

	res := Result{At: m.clk.Now()}

	err := m.guard.Do(ctx, func(h session.Handle) error {
		o, err := m.obs.Observe(ctx, h)
		res.Observation = o
		return err
	})
	if err != nil {
		res.Err = err
		telemetry.ObserveCycleError("monitor")
		if _, perr := m.st.Update(ctx, func(*status.Snapshot) {}); perr != nil {
			m.log.Error("persist failed", "error", perr)
		}
		return res
	}

	now := m.clk.Now()
	var (
		prev    status.Status
		changed bool
	)
	_, err = m.st.Update(ctx, func(s *status.Snapshot) {
		prev, changed = s.ApplyObservation(res.Observation, now)

		// Keep next_check meaningful while the reconcile loop sleeps.
		if s.AutoCheckEnabled && (s.NextCheck == nil || s.NextCheck.Before(now)) {
			s.ScheduleNext(now.Add(m.src.Next(s.CheckInterval)))
		}
	})
	if err != nil {
		m.log.Error("persist failed", "error", err)
	}
	if changed {
		m.log.Info("status changed", "from", prev, "to", res.Observation.Status)
	}
	telemetry.SetStatus(res.Observation.Status)

	return res
}

// Run checks on every tick until ctx ends and emits each Result on out
// when out is non-nil. No overlap. No retries.
func (m *Monitor) Run(ctx context.Context, out chan<- Result) {
	m.log.Info("monitor started", "interval", m.cfg.Interval.String())
	defer m.log.Info("monitor stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.clk.After(m.cfg.Interval):
		}
		if ctx.Err() != nil {
			return
		}

		res := m.CheckOnce(ctx)
		if res.Err != nil {
			m.log.Warn("check failed", "error", res.Err)
		}

		if out != nil {
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}
