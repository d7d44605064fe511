// Package dispatch activates dashboard controls through an ordered,
// data-driven strategy table.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/codes"

	"github.com/tamzrod/panel-keeper/internal/session"
	"github.com/tamzrod/panel-keeper/internal/status"
	"github.com/tamzrod/panel-keeper/internal/telemetry"
)

// Config holds one locator table per action plus the activation order.
type Config struct {
	Start       []session.Locator
	Stop        []session.Locator
	Methods     []session.Method
	WaitTimeout time.Duration
}

// Attempt is the transient record of one Dispatch call.
type Attempt struct {
	ID     string
	Action status.ActionType

	// Tried lists every strategy waited on, in order.
	Tried     []string
	Succeeded bool
	Strategy  string
	Method    session.Method
	Err       error
}

// Dispatcher resolves and activates controls.
type Dispatcher struct {
	table   map[status.ActionType][]session.Locator
	methods []session.Method
	wait    time.Duration
	log     *slog.Logger
}

// New validates cfg and returns a Dispatcher.
func New(cfg Config, log *slog.Logger) (*Dispatcher, error) {
	if cfg.WaitTimeout <= 0 {
		return nil, errors.New("dispatch: wait timeout must be > 0")
	}
	if len(cfg.Start) == 0 || len(cfg.Stop) == 0 {
		return nil, errors.New("dispatch: start and stop tables must not be empty")
	}
	for _, l := range append(append([]session.Locator(nil), cfg.Start...), cfg.Stop...) {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("dispatch: %w", err)
		}
	}

	methods := cfg.Methods
	if len(methods) == 0 {
		methods = session.DefaultMethods
	}
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		table: map[status.ActionType][]session.Locator{
			status.ActionStart: cfg.Start,
			status.ActionStop:  cfg.Stop,
		},
		methods: methods,
		wait:    cfg.WaitTimeout,
		log:     log,
	}, nil
}

// Dispatch tries each strategy for action in order. The first element
// that becomes interactive is scrolled into view and activated with the
// first method that succeeds. Later strategies are never tried once an
// element resolved, whatever its activation outcome.
//
// Exactly one outcome is produced. There is no internal retry.
func (d *Dispatcher) Dispatch(ctx context.Context, h session.Handle, action status.ActionType) Attempt {
	a := Attempt{ID: ulid.Make().String(), Action: action}

	ctx, span := telemetry.StartSpan(ctx, "dispatch.attempt",
		telemetry.AttrAttemptID.String(a.ID),
		telemetry.AttrAction.String(string(action)),
	)
	defer span.End()

	table, ok := d.table[action]
	if !ok {
		a.Err = fmt.Errorf("dispatch: unknown action %q", action)
		span.SetStatus(codes.Error, a.Err.Error())
		return a
	}

	var el session.Element
	for _, loc := range table {
		a.Tried = append(a.Tried, loc.String())

		resolved, err := h.WaitInteractable(ctx, loc, d.wait)
		if err != nil {
			a.Err = err
			d.log.Debug("strategy did not resolve", "attempt_id", a.ID, "strategy", loc.String(), "error", err)
			if ctx.Err() != nil || errors.Is(err, session.ErrSessionClosed) {
				break
			}
			continue
		}
		el = resolved
		a.Strategy = loc.String()
		break
	}

	if el == nil {
		if a.Err == nil {
			a.Err = session.ErrNotFound
		}
		a.Err = fmt.Errorf("dispatch: no %s control resolved: %w", action, a.Err)
		span.SetStatus(codes.Error, a.Err.Error())
		return a
	}
	span.SetAttributes(telemetry.AttrStrategy.String(a.Strategy))

	if err := el.ScrollIntoView(ctx); err != nil {
		d.log.Debug("scroll into view failed", "attempt_id", a.ID, "error", err)
	}

	for _, m := range d.methods {
		if err := el.Activate(ctx, m); err != nil {
			a.Err = err
			d.log.Debug("activation method failed", "attempt_id", a.ID, "method", m, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		a.Succeeded = true
		a.Method = m
		a.Err = nil
		return a
	}

	a.Err = fmt.Errorf("dispatch: every activation method failed on %s: %w", a.Strategy, a.Err)
	span.SetStatus(codes.Error, a.Err.Error())
	return a
}
