package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tamzrod/panel-keeper/internal/api"
	"github.com/tamzrod/panel-keeper/internal/clock"
	"github.com/tamzrod/panel-keeper/internal/config"
	"github.com/tamzrod/panel-keeper/internal/dispatch"
	"github.com/tamzrod/panel-keeper/internal/inference"
	"github.com/tamzrod/panel-keeper/internal/keeper"
	"github.com/tamzrod/panel-keeper/internal/mirror"
	"github.com/tamzrod/panel-keeper/internal/monitor"
	"github.com/tamzrod/panel-keeper/internal/notify"
	"github.com/tamzrod/panel-keeper/internal/reconcile"
	"github.com/tamzrod/panel-keeper/internal/schedule"
	"github.com/tamzrod/panel-keeper/internal/session"
	"github.com/tamzrod/panel-keeper/internal/status"
	"github.com/tamzrod/panel-keeper/internal/store"
	"github.com/tamzrod/panel-keeper/internal/telemetry"
)

// app is everything run needs, built once from config.
type app struct {
	cfg *config.Config
	log *slog.Logger

	guard    *session.Guard
	store    *store.Store
	keeper   *keeper.Keeper
	loop     *reconcile.Loop
	monitor  *monitor.Monitor
	server   *api.Server
	mirror   *mirror.Mirror
	mirrorW  *mirror.BlockWriter
	notifier *notify.Notifier
	cookies  []session.Cookie
}

// core is the part shared by run and check-auth.
type core struct {
	guard  *session.Guard
	in     *inference.Inferencer
	disp   *dispatch.Dispatcher
	clk    clock.Clock
	src    *schedule.Source
	target string
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

// buildCore opens the browser session. Failure here is fatal.
func buildCore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*core, error) {
	k := cfg.Keeper

	rod, err := session.OpenRod(ctx, k.Browser.SessionOptions(), telemetry.Component(log, "session"))
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	guard := session.NewGuard(rod)
	guard.OnWait = telemetry.ObserveSessionWait

	in, err := inference.New(inference.Config{
		TargetURL:    k.Target.URL,
		LoginMarker:  k.Target.LoginMarker,
		Containers:   k.Inference.Containers,
		StartVisible: config.Locators(k.Inference.StartVisible),
		StopVisible:  config.Locators(k.Inference.StopVisible),
	}, telemetry.Component(log, "inference"))
	if err != nil {
		_ = guard.Close(ctx)
		return nil, err
	}
	in.OnResult = telemetry.ObserveInference

	disp, err := dispatch.New(dispatch.Config{
		Start:       config.Locators(k.Dispatch.Start),
		Stop:        config.Locators(k.Dispatch.Stop),
		Methods:     k.Dispatch.ActivationMethods(),
		WaitTimeout: k.Dispatch.WaitTimeout(),
	}, telemetry.Component(log, "dispatch"))
	if err != nil {
		_ = guard.Close(ctx)
		return nil, err
	}

	clk := clock.Real()
	return &core{
		guard:  guard,
		in:     in,
		disp:   disp,
		clk:    clk,
		src:    schedule.NewSource(uint64(clk.Now().UnixNano())),
		target: k.Target.URL,
	}, nil
}

func openPersister(cfg config.StateConfig) (store.Persister, error) {
	switch cfg.Backend {
	case "sqlite":
		return store.NewSQLitePersister(cfg.Path)
	case "file", "":
		return store.NewFilePersister(cfg.Path)
	default:
		return nil, fmt.Errorf("state: unknown backend %q", cfg.Backend)
	}
}

func buildApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	k := cfg.Keeper

	// --------------------
	// Credentials (a missing export is not fatal)
	// --------------------
	raw, err := k.Credentials.Cookies()
	if err != nil {
		return nil, err
	}
	cookies, err := session.ParseCookies(raw, k.Target.URL)
	if err != nil {
		return nil, err
	}

	// --------------------
	// Session + inference + dispatch
	// --------------------
	c, err := buildCore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := assemble(ctx, cfg, log, c)
	if err != nil {
		return nil, err
	}
	a.cookies = cookies
	return a, nil
}

// assemble wires everything on top of an open session. On failure it
// releases whatever it built, the session included.
func assemble(ctx context.Context, cfg *config.Config, log *slog.Logger, c *core) (_ *app, err error) {
	k := cfg.Keeper
	a := &app{cfg: cfg, log: log, guard: c.guard}
	defer func() {
		if err != nil {
			if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil {
				log.Warn("cleanup after failed startup", "error", cerr)
			}
		}
	}()

	// --------------------
	// State store
	// --------------------
	p, err := openPersister(k.State)
	if err != nil {
		return nil, err
	}
	a.store, err = store.Open(ctx, p,
		status.New(k.Schedule.Bounds(), k.Schedule.AutoCheckEnabled()),
		store.Options{Clock: c.clk, Logger: telemetry.Component(log, "store"), Restore: k.State.RestoreEnabled()},
	)
	if err != nil {
		_ = p.Close()
		return nil, err
	}

	// --------------------
	// Optional sinks
	// --------------------
	a.mirror, a.mirrorW, err = mirror.Build(k.Mirror, telemetry.Component(log, "mirror"))
	if err != nil {
		return nil, err
	}
	if a.mirror != nil {
		a.store.AddObserver(a.mirror)
	}

	if k.Notify.Enabled() {
		pub, err := notify.NewNATSPublisher(notify.NATSConfig{URL: k.Notify.NATSURL}, telemetry.Component(log, "notify"))
		if err != nil {
			return nil, err
		}
		a.notifier = notify.New(pub, k.Notify.Subject, c.clk, telemetry.Component(log, "notify"))
		a.store.AddObserver(a.notifier)
	}

	// --------------------
	// Loops
	// --------------------
	a.loop, err = reconcile.New(reconcile.Config{
		Cooldown:            k.Schedule.Cooldown(),
		FailureBackoff:      k.Schedule.FailureBackoff(),
		ErrorBackoff:        k.Schedule.ErrorBackoff(),
		MaxBackoff:          k.Schedule.MaxBackoff(),
		IdlePoll:            k.Schedule.IdlePoll(),
		MaxSuccessfulClicks: k.Schedule.MaxSuccessfulClicks,
	}, c.guard, c.in, c.disp, a.store, c.clk, c.src, telemetry.Component(log, "reconcile"))
	if err != nil {
		return nil, err
	}

	a.monitor, err = monitor.New(monitor.Config{Interval: k.Schedule.MonitorInterval()},
		c.guard, c.in, a.store, c.clk, c.src, telemetry.Component(log, "monitor"))
	if err != nil {
		return nil, err
	}

	// --------------------
	// Controller + API
	// --------------------
	a.keeper, err = keeper.New(keeper.Deps{
		Guard:      c.guard,
		Observer:   c.in,
		Dispatcher: c.disp,
		Store:      a.store,
		Clock:      c.clk,
		Source:     c.src,
		Logger:     telemetry.Component(log, "keeper"),
		TargetURL:  c.target,
		OpTimeout:  k.API.RequestTimeout(),
	})
	if err != nil {
		return nil, err
	}
	a.keeper.Wake = a.loop.Wake
	if a.notifier != nil {
		a.keeper.OnAttempt = a.notifier.Attempt
		a.loop.OnAttempt = a.notifier.Attempt
	}

	a.server = api.New(api.Config{
		Listen:          k.API.Listen,
		ManualPerMinute: float64(k.API.ManualRatePerMinute),
		ManualBurst:     k.API.ManualBurst,
		RequestTimeout:  k.API.RequestTimeout(),
	}, a.keeper, telemetry.Component(log, "api"))

	return a, nil
}

// close persists the final snapshot and releases every resource.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close(ctx))
	}
	if a.guard != nil {
		errs = append(errs, a.guard.Close(ctx))
	}
	if a.mirrorW != nil {
		errs = append(errs, a.mirrorW.Close())
	}
	if a.notifier != nil {
		errs = append(errs, a.notifier.Close())
	}
	return errors.Join(errs...)
}
