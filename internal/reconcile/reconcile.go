// Package reconcile keeps the remote resource running: observe, decide,
// act, sleep.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/tamzrod/panel-keeper/internal/clock"
	"github.com/tamzrod/panel-keeper/internal/dispatch"
	"github.com/tamzrod/panel-keeper/internal/schedule"
	"github.com/tamzrod/panel-keeper/internal/session"
	"github.com/tamzrod/panel-keeper/internal/status"
	"github.com/tamzrod/panel-keeper/internal/store"
	"github.com/tamzrod/panel-keeper/internal/telemetry"
)

// Observer infers status from the page.
type Observer interface {
	Observe(ctx context.Context, h session.Handle) (status.Observation, error)
}

// Dispatcher activates a control.
type Dispatcher interface {
	Dispatch(ctx context.Context, h session.Handle, action status.ActionType) dispatch.Attempt
}

// Config is the retry policy.
type Config struct {
	Cooldown       time.Duration
	FailureBackoff time.Duration
	ErrorBackoff   time.Duration
	MaxBackoff     time.Duration
	IdlePoll       time.Duration

	// CycleTimeout bounds one observe+act cycle, including the wait for
	// the session guard.
	CycleTimeout time.Duration

	// MaxSuccessfulClicks ends Run after that many successful
	// dispatches. Zero means unbounded.
	MaxSuccessfulClicks int
}

// Sleep reasons.
const (
	ReasonRunning  = "running"
	ReasonCooldown = "cooldown"
	ReasonFailure  = "failure"
	ReasonError    = "error"
	ReasonAuth     = "auth"
	ReasonDisabled = "disabled"
	ReasonBudget   = "budget"
)

// Decision is the outcome of one Step.
type Decision struct {
	Reason  string
	Sleep   time.Duration
	Done    bool
	Status  status.Status
	Attempt *dispatch.Attempt
	Err     error
}

// Loop is the reconciliation loop.
type Loop struct {
	cfg   Config
	guard *session.Guard
	obs   Observer
	disp  Dispatcher
	st    *store.Store
	clk   clock.Clock
	src   *schedule.Source
	log   *slog.Logger

	wake chan struct{}

	failures  int
	successes int

	// OnAttempt, if set, receives every automatic dispatch.
	OnAttempt func(dispatch.Attempt, status.ActionSource)
}

// New validates cfg and wires the loop.
func New(cfg Config, g *session.Guard, obs Observer, disp Dispatcher, st *store.Store, clk clock.Clock, src *schedule.Source, log *slog.Logger) (*Loop, error) {
	if cfg.Cooldown <= 0 || cfg.FailureBackoff <= 0 || cfg.ErrorBackoff <= 0 || cfg.IdlePoll <= 0 {
		return nil, errors.New("reconcile: cooldown, backoffs and idle poll must be > 0")
	}
	if cfg.MaxBackoff < cfg.FailureBackoff || cfg.MaxBackoff < cfg.ErrorBackoff {
		return nil, errors.New("reconcile: max backoff must cover both backoff bases")
	}
	if cfg.MaxSuccessfulClicks < 0 {
		return nil, errors.New("reconcile: max successful clicks must not be negative")
	}
	if g == nil || obs == nil || disp == nil || st == nil {
		return nil, errors.New("reconcile: guard, observer, dispatcher and store are required")
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 2 * time.Minute
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

	return &Loop{
		cfg:   cfg,
		guard: g,
		obs:   obs,
		disp:  disp,
		st:    st,
		clk:   clk,
		src:   src,
		log:   log,
		wake:  make(chan struct{}, 1),
	}, nil
}

// Wake cuts the current sleep short. Non-blocking.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Successes is the number of successful automatic dispatches so far.
func (l *Loop) Successes() int { return l.successes }

// Run loops until ctx ends or the click budget is spent.
// No iteration error is fatal.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("reconcile loop started", "max_successful_clicks", l.cfg.MaxSuccessfulClicks)
	defer l.log.Info("reconcile loop stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		d := l.Step(ctx)
		if d.Done {
			l.log.Info("click budget reached", "successful_clicks", l.successes)
			return nil
		}

		telemetry.ObserveSleep(d.Reason, d.Sleep)
		l.log.Debug("sleeping", "reason", d.Reason, "duration", d.Sleep.String())

		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
		case <-l.clk.After(d.Sleep):
		}
	}
}

// Step runs one cycle and returns how long to sleep before the next.
func (l *Loop) Step(ctx context.Context) Decision {
	if !l.st.Snapshot().AutoCheckEnabled {
		return Decision{Reason: ReasonDisabled, Sleep: l.cfg.IdlePoll}
	}

	ctx, span := telemetry.StartSpan(ctx, "reconcile.cycle")
	defer span.End()

	d := l.cycle(ctx)
	if d.Err != nil {
		span.RecordError(d.Err)
		span.SetStatus(codes.Error, d.Err.Error())
	}
	span.SetAttributes(telemetry.AttrStatus.String(d.Status.String()))

	if !d.Done {
		next := l.clk.Now().Add(d.Sleep)
		if _, err := l.st.Update(ctx, func(s *status.Snapshot) { s.ScheduleNext(next) }); err != nil {
			l.log.Error("persist schedule failed", "error", err)
		}
	}
	return d
}

func (l *Loop) cycle(parent context.Context) Decision {
	ctx, cancel := context.WithTimeout(parent, l.cfg.CycleTimeout)
	defer cancel()

	var (
		obs     status.Observation
		attempt *dispatch.Attempt
		obsErr  error
	)

	err := l.guard.Do(ctx, func(h session.Handle) error {
		obs, obsErr = l.obs.Observe(ctx, h)
		if obsErr != nil {
			return obsErr
		}
		l.commitObservation(ctx, obs)

		if obs.AuthRequired || obs.Status == status.Running {
			return nil
		}
		// Auto-check may have been switched off while we observed.
		if !l.st.Snapshot().AutoCheckEnabled {
			return nil
		}

		a := l.disp.Dispatch(ctx, h, status.ActionStart)
		attempt = &a
		return nil
	})

	if err != nil {
		return l.onError(obs.Status, err)
	}

	if obs.AuthRequired {
		l.failures++
		telemetry.ObserveCycleError("reconcile")
		return Decision{
			Reason: ReasonAuth,
			Status: obs.Status,
			Sleep:  schedule.Backoff(l.cfg.ErrorBackoff, l.failures, l.cfg.MaxBackoff),
			Err:    session.ErrAuthRequired,
		}
	}

	if attempt == nil {
		l.failures = 0
		snap := l.st.Snapshot()
		if !snap.AutoCheckEnabled {
			return Decision{Reason: ReasonDisabled, Status: obs.Status, Sleep: l.cfg.IdlePoll}
		}
		return Decision{Reason: ReasonRunning, Status: obs.Status, Sleep: l.src.Next(snap.CheckInterval)}
	}

	return l.onAttempt(ctx, obs.Status, *attempt)
}

func (l *Loop) commitObservation(ctx context.Context, obs status.Observation) {
	now := l.clk.Now()
	var prev status.Status
	var changed bool
	_, err := l.st.Update(ctx, func(s *status.Snapshot) {
		prev, changed = s.ApplyObservation(obs, now)
	})
	if err != nil {
		l.log.Error("persist observation failed", "error", err)
	}
	if changed {
		l.log.Info("status changed", "from", prev, "to", obs.Status, "location", obs.Location)
	}
	telemetry.SetStatus(obs.Status)
}

func (l *Loop) onAttempt(ctx context.Context, observed status.Status, a dispatch.Attempt) Decision {
	now := l.clk.Now()
	if _, err := l.st.Update(ctx, func(s *status.Snapshot) {
		s.RecordOutcome(a.Action, status.SourceAuto, a.Succeeded, now)
	}); err != nil {
		l.log.Error("persist attempt failed", "attempt_id", a.ID, "error", err)
	}
	telemetry.ObserveAction(a.Action, status.SourceAuto, a.Succeeded, a.Strategy)
	if l.OnAttempt != nil {
		l.OnAttempt(a, status.SourceAuto)
	}

	d := Decision{Status: observed, Attempt: &a}

	if !a.Succeeded {
		l.failures++
		l.log.Warn("start attempt failed",
			"attempt_id", a.ID, "observed", observed, "tried", a.Tried, "error", a.Err)
		d.Reason = ReasonFailure
		d.Sleep = schedule.Backoff(l.cfg.FailureBackoff, l.failures, l.cfg.MaxBackoff)
		d.Err = a.Err
		return d
	}

	l.failures = 0
	l.successes++
	l.log.Info("start dispatched",
		"attempt_id", a.ID, "observed", observed, "strategy", a.Strategy, "method", a.Method)

	if l.cfg.MaxSuccessfulClicks > 0 && l.successes >= l.cfg.MaxSuccessfulClicks {
		d.Reason = ReasonBudget
		d.Done = true
		return d
	}

	d.Reason = ReasonCooldown
	d.Sleep = l.cfg.Cooldown
	return d
}

func (l *Loop) onError(observed status.Status, err error) Decision {
	l.failures++
	telemetry.ObserveCycleError("reconcile")

	if observed == "" {
		observed = status.Unknown
	}
	lvl := slog.LevelWarn
	if !session.IsRecoverable(err) {
		lvl = slog.LevelError
	}
	l.log.Log(context.Background(), lvl, "reconcile cycle aborted", "error", err, "consecutive_failures", l.failures)

	return Decision{
		Reason: ReasonError,
		Status: observed,
		Sleep:  schedule.Backoff(l.cfg.ErrorBackoff, l.failures, l.cfg.MaxBackoff),
		Err:    err,
	}
}
