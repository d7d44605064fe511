// Package keeper is the controller object built once at startup. It
// owns readiness and the manual operations exposed by the API.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
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

var (
	ErrNotReady        = errors.New("system not ready")
	ErrInvalidInterval = errors.New("invalid check interval")
)

// Observer infers status from the page.
type Observer interface {
	Observe(ctx context.Context, h session.Handle) (status.Observation, error)
}

// Dispatcher activates a control.
type Dispatcher interface {
	Dispatch(ctx context.Context, h session.Handle, action status.ActionType) dispatch.Attempt
}

// Result is the outcome of a manual operation.
type Result struct {
	Success bool
	Message string
	Attempt *dispatch.Attempt
}

// Deps are the collaborators the keeper drives.
type Deps struct {
	Guard      *session.Guard
	Observer   Observer
	Dispatcher Dispatcher
	Store      *store.Store
	Clock      clock.Clock
	Source     *schedule.Source
	Logger     *slog.Logger

	TargetURL string
	// OpTimeout bounds one manual operation, including the guard wait.
	OpTimeout time.Duration
}

// Keeper is safe for concurrent use.
type Keeper struct {
	d     Deps
	ready atomic.Bool

	// Wake is called after settings change so sleeping loops re-read them.
	Wake func()
	// OnAttempt, if set, receives every manual dispatch.
	OnAttempt func(dispatch.Attempt, status.ActionSource)
}

// New validates deps.
func New(d Deps) (*Keeper, error) {
	if d.Guard == nil || d.Observer == nil || d.Dispatcher == nil || d.Store == nil {
		return nil, errors.New("keeper: guard, observer, dispatcher and store are required")
	}
	if d.TargetURL == "" {
		return nil, errors.New("keeper: target url is required")
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Source == nil {
		d.Source = schedule.NewSource(uint64(d.Clock.Now().UnixNano()))
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.OpTimeout <= 0 {
		d.OpTimeout = time.Minute
	}
	return &Keeper{d: d}, nil
}

// Ready reports whether Init has completed.
func (k *Keeper) Ready() bool { return k.ready.Load() }

// Init installs credentials and opens the target page. The keeper
// becomes ready only when this succeeds.
func (k *Keeper) Init(ctx context.Context, cookies []session.Cookie) error {
	ctx, cancel := context.WithTimeout(ctx, k.d.OpTimeout)
	defer cancel()

	err := k.d.Guard.Do(ctx, func(h session.Handle) error {
		if len(cookies) == 0 {
			k.d.Logger.Warn("no credential cookies configured; expect a login redirect")
		} else {
			n, err := session.InjectCookies(ctx, h, cookies, k.d.TargetURL)
			if err != nil {
				return fmt.Errorf("keeper: inject cookies: %w", err)
			}
			k.d.Logger.Info("cookies injected", "count", n)
		}
		if err := h.Navigate(ctx, k.d.TargetURL); err != nil {
			return fmt.Errorf("keeper: open target: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	k.ready.Store(true)
	k.d.Logger.Info("session ready", "target", k.d.TargetURL)
	return nil
}

// Snapshot returns the stored snapshot without touching the session.
func (k *Keeper) Snapshot() status.Snapshot { return k.d.Store.Snapshot() }

// Refresh re-observes the page and commits the observation.
func (k *Keeper) Refresh(ctx context.Context) (status.Snapshot, error) {
	if !k.Ready() {
		return k.d.Store.Snapshot(), ErrNotReady
	}

	ctx, span := telemetry.StartSpan(ctx, "keeper.refresh")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, k.d.OpTimeout)
	defer cancel()

	var obs status.Observation
	err := k.d.Guard.Do(ctx, func(h session.Handle) error {
		var err error
		obs, err = k.d.Observer.Observe(ctx, h)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return k.d.Store.Snapshot(), err
	}
	return k.commit(ctx, obs), nil
}

// Status is the read side of GET /status: refresh when possible, fall
// back to the stored snapshot otherwise.
func (k *Keeper) Status(ctx context.Context) status.Snapshot {
	if !k.Ready() {
		return k.d.Store.Snapshot()
	}
	snap, err := k.Refresh(ctx)
	if err != nil {
		k.d.Logger.Warn("status refresh failed; serving stored snapshot", "error", err)
	}
	return snap
}

// Start dispatches start out of band. It re-observes first and refuses
// when the resource already runs.
func (k *Keeper) Start(ctx context.Context) (Result, error) {
	return k.manual(ctx, status.ActionStart, true)
}

// Stop dispatches stop out of band.
func (k *Keeper) Stop(ctx context.Context) (Result, error) {
	return k.manual(ctx, status.ActionStop, false)
}

func (k *Keeper) manual(ctx context.Context, action status.ActionType, precheck bool) (Result, error) {
	if !k.Ready() {
		return Result{Message: ErrNotReady.Error()}, ErrNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, k.d.OpTimeout)
	defer cancel()

	var (
		res     Result
		attempt *dispatch.Attempt
	)
	err := k.d.Guard.Do(ctx, func(h session.Handle) error {
		if precheck {
			obs, err := k.d.Observer.Observe(ctx, h)
			if err != nil {
				return err
			}
			k.commit(ctx, obs)
			switch {
			case obs.AuthRequired:
				res = Result{Message: "not authenticated: redirected to login"}
				return nil
			case obs.Status == status.Running:
				res = Result{Message: "server is already running"}
				return nil
			}
		}

		a := k.d.Dispatcher.Dispatch(ctx, h, action)
		attempt = &a
		return nil
	})
	if err != nil {
		k.d.Logger.Warn("manual action aborted", "action", action, "error", err)
		return Result{Message: fmt.Sprintf("%s failed: %v", action, err)}, nil
	}
	if attempt == nil {
		return res, nil
	}

	a := *attempt
	now := k.d.Clock.Now()
	if _, err := k.d.Store.Update(ctx, func(s *status.Snapshot) {
		s.RecordOutcome(a.Action, status.SourceManual, a.Succeeded, now)
	}); err != nil {
		k.d.Logger.Error("persist manual attempt failed", "attempt_id", a.ID, "error", err)
	}
	telemetry.ObserveAction(a.Action, status.SourceManual, a.Succeeded, a.Strategy)
	if k.OnAttempt != nil {
		k.OnAttempt(a, status.SourceManual)
	}

	if !a.Succeeded {
		k.d.Logger.Warn("manual action failed", "attempt_id", a.ID, "action", action, "tried", a.Tried, "error", a.Err)
		return Result{Message: fmt.Sprintf("%s control not activated", action), Attempt: &a}, nil
	}
	k.d.Logger.Info("manual action dispatched", "attempt_id", a.ID, "action", action, "strategy", a.Strategy)
	return Result{Success: true, Message: fmt.Sprintf("%s clicked", action), Attempt: &a}, nil
}

// SetAutoCheck enables or disables the reconcile loop.
func (k *Keeper) SetAutoCheck(ctx context.Context, active bool) (Result, error) {
	if !k.Ready() {
		return Result{Message: ErrNotReady.Error()}, ErrNotReady
	}

	now := k.d.Clock.Now()
	_, err := k.d.Store.Update(ctx, func(s *status.Snapshot) {
		s.SetAutoCheck(active, now.Add(k.d.Source.Next(s.CheckInterval)))
	})
	k.wake()
	if err != nil {
		return Result{Message: err.Error()}, err
	}

	if active {
		return Result{Success: true, Message: "auto check enabled"}, nil
	}
	return Result{Success: true, Message: "auto check disabled"}, nil
}

// SetInterval replaces the jitter bounds. Both must be positive and
// min must not exceed max.
func (k *Keeper) SetInterval(ctx context.Context, b schedule.Bounds) (Result, error) {
	if !k.Ready() {
		return Result{Message: ErrNotReady.Error()}, ErrNotReady
	}
	if err := b.Validate(); err != nil {
		return Result{Message: err.Error()}, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}

	now := k.d.Clock.Now()
	_, err := k.d.Store.Update(ctx, func(s *status.Snapshot) {
		s.CheckInterval = b
		s.ScheduleNext(now.Add(k.d.Source.Next(b)))
	})
	k.wake()
	if err != nil {
		return Result{Message: err.Error()}, err
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("check interval set to %g-%g minutes", b.MinMinutes, b.MaxMinutes),
	}, nil
}

// Reset zeroes the counters and the last action. Settings and the
// schedule survive.
func (k *Keeper) Reset(ctx context.Context) (Result, error) {
	if !k.Ready() {
		return Result{Message: ErrNotReady.Error()}, ErrNotReady
	}
	snap, err := k.d.Store.Reset(ctx)
	if err != nil {
		return Result{Message: err.Error()}, err
	}
	k.d.Logger.Info("counters reset", "auto_check_enabled", snap.AutoCheckEnabled)
	return Result{Success: true, Message: "counters reset"}, nil
}

// ForceCheck refreshes now.
func (k *Keeper) ForceCheck(ctx context.Context) (status.Snapshot, Result, error) {
	if !k.Ready() {
		return k.d.Store.Snapshot(), Result{Message: ErrNotReady.Error()}, ErrNotReady
	}
	snap, err := k.Refresh(ctx)
	if err != nil {
		return snap, Result{Message: fmt.Sprintf("check failed: %v", err)}, nil
	}
	return snap, Result{Success: true, Message: "status: " + snap.Status.String()}, nil
}

// CheckAuth opens the target and reports whether the session is logged
// in: no login redirect and some dashboard signal present.
func (k *Keeper) CheckAuth(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, k.d.OpTimeout)
	defer cancel()

	var obs status.Observation
	err := k.d.Guard.Do(ctx, func(h session.Handle) error {
		if err := h.Navigate(ctx, k.d.TargetURL); err != nil {
			return err
		}
		var err error
		obs, err = k.d.Observer.Observe(ctx, h)
		return err
	})
	if err != nil {
		return false, err
	}
	if obs.AuthRequired {
		return false, nil
	}
	return obs.StartVisible || obs.StopVisible || obs.Text != "", nil
}

func (k *Keeper) commit(ctx context.Context, obs status.Observation) status.Snapshot {
	now := k.d.Clock.Now()
	var (
		prev    status.Status
		changed bool
	)
	snap, err := k.d.Store.Update(ctx, func(s *status.Snapshot) {
		prev, changed = s.ApplyObservation(obs, now)
	})
	if err != nil {
		k.d.Logger.Error("persist observation failed", "error", err)
	}
	if changed {
		k.d.Logger.Info("status changed", "from", prev, "to", obs.Status)
	}
	telemetry.SetStatus(obs.Status)
	return snap
}

func (k *Keeper) wake() {
	if k.Wake != nil {
		k.Wake()
	}
}
