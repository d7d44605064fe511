package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/panel-keeper/internal/config"
	"github.com/tamzrod/panel-keeper/internal/telemetry"
)

func newRunCmd() *cobra.Command {
	var maxClicks int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reconcile loop, the monitor and the control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-clicks") {
				if maxClicks < 0 {
					return errors.New("--max-clicks must not be negative")
				}
				cfg.Keeper.Schedule.MaxSuccessfulClicks = maxClicks
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().IntVar(&maxClicks, "max-clicks", 0, "exit after this many successful automatic clicks (0 = run forever)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log := telemetry.NewLogger(cfg.Keeper.Telemetry.LogLevel, cfg.Keeper.Telemetry.LogFormat)

	tp, err := telemetry.NewTracerProvider(cfg.Keeper.Telemetry.Tracing, "panel-keeper")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	// --------------------
	// Build (session creation failure is fatal)
	// --------------------
	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.close(closeCtx); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
		log.Info("stopped")
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// --------------------
	// API first: /healthz reports not-ready during init
	// --------------------
	g.Go(func() error { return a.server.Serve(gctx) })

	if err := a.keeper.Init(gctx, a.cookies); err != nil {
		log.Error("session initialization failed", "error", err)
		cancel()
		_ = g.Wait()
		return err
	}

	// --------------------
	// Loops
	// --------------------
	g.Go(func() error {
		err := a.loop.Run(gctx)
		if err == nil && gctx.Err() == nil {
			// click budget spent: bounded run is complete
			log.Info("bounded run complete", "successful_clicks", a.loop.Successes())
			cancel()
		}
		return err
	})
	g.Go(func() error {
		a.monitor.Run(gctx, nil)
		return nil
	})
	if a.mirror != nil {
		g.Go(func() error { return a.mirror.Run(gctx) })
	}

	log.Info("keeper running",
		"target", cfg.Keeper.Target.URL,
		"listen", cfg.Keeper.API.Listen,
		"state", cfg.Keeper.State.Path,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
