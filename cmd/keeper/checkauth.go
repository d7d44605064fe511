package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tamzrod/panel-keeper/internal/keeper"
	"github.com/tamzrod/panel-keeper/internal/session"
	"github.com/tamzrod/panel-keeper/internal/status"
	"github.com/tamzrod/panel-keeper/internal/store"
	"github.com/tamzrod/panel-keeper/internal/telemetry"
)

func newCheckAuthCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check-auth",
		Short: "Print YES when the configured cookies reach the dashboard",
		Long: `check-auth opens the target page with the configured cookies.
It prints YES and exits 0 when logged in, NO and exits 1 when redirected to
login or no dashboard element is found, and NO with exit 2 on errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			ok, err := checkAuth(ctx, path)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "NO")
				return &exitError{code: 2, err: err}
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "NO")
				return &exitError{code: 1}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "YES")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "overall deadline")
	return cmd
}

func checkAuth(ctx context.Context, path string) (bool, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return false, err
	}
	k := cfg.Keeper
	log := telemetry.NewLogger(k.Telemetry.LogLevel, k.Telemetry.LogFormat)

	raw, err := k.Credentials.Cookies()
	if err != nil {
		return false, err
	}
	cookies, err := session.ParseCookies(raw, k.Target.URL)
	if err != nil {
		return false, err
	}

	c, err := buildCore(ctx, cfg, log)
	if err != nil {
		return false, err
	}
	defer c.guard.Close(context.WithoutCancel(ctx))

	// nothing here is persisted
	st, err := store.Open(ctx, store.NewMemoryPersister(), status.New(k.Schedule.Bounds(), false), store.Options{Clock: c.clk, Logger: log})
	if err != nil {
		return false, err
	}

	kp, err := keeper.New(keeper.Deps{
		Guard:      c.guard,
		Observer:   c.in,
		Dispatcher: c.disp,
		Store:      st,
		Clock:      c.clk,
		Source:     c.src,
		Logger:     telemetry.Component(log, "keeper"),
		TargetURL:  c.target,
	})
	if err != nil {
		return false, err
	}
	if err := kp.Init(ctx, cookies); err != nil {
		return false, err
	}
	return kp.CheckAuth(ctx)
}
