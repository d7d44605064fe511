package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tamzrod/panel-keeper/internal/session"
	"github.com/tamzrod/panel-keeper/internal/status"
)

// Config is the per-process inference setup.
type Config struct {
	TargetURL    string
	LoginMarker  string
	Containers   []string
	StartVisible []session.Locator
	StopVisible  []session.Locator
}

// Inferencer reads a Handle positioned on the resource page.
type Inferencer struct {
	cfg    Config
	target *url.URL
	log    *slog.Logger

	// OnResult, if set, receives every evaluation (rule name or "error").
	OnResult func(result string)
}

// New validates cfg and returns an Inferencer.
func New(cfg Config, log *slog.Logger) (*Inferencer, error) {
	if cfg.TargetURL == "" {
		return nil, errors.New("inference: target url is required")
	}
	u, err := url.Parse(cfg.TargetURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("inference: invalid target url %q", cfg.TargetURL)
	}
	if len(cfg.StartVisible) == 0 || len(cfg.StopVisible) == 0 {
		return nil, errors.New("inference: visibility locators are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Inferencer{cfg: cfg, target: u, log: log}, nil
}

// Observe infers the current status. It navigates to the target first
// when the page is elsewhere. It never mutates shared state.
//
// A login redirect is not an error: the observation comes back unknown
// with AuthRequired set.
func (in *Inferencer) Observe(ctx context.Context, h session.Handle) (status.Observation, error) {
	obs, err := in.observe(ctx, h)
	if err != nil {
		in.report("error")
	}
	return obs, err
}

func (in *Inferencer) observe(ctx context.Context, h session.Handle) (status.Observation, error) {
	loc, err := h.Location(ctx)
	if err != nil {
		return status.Observation{Status: status.Unknown}, err
	}

	if !in.onTarget(loc) && !session.IsLoginLocation(loc, in.cfg.LoginMarker) {
		if err := h.Navigate(ctx, in.cfg.TargetURL); err != nil {
			return status.Observation{Status: status.Unknown, Location: loc}, err
		}
		if loc, err = h.Location(ctx); err != nil {
			return status.Observation{Status: status.Unknown}, err
		}
	}

	sig := Signals{AuthRedirect: session.IsLoginLocation(loc, in.cfg.LoginMarker)}
	if sig.AuthRedirect {
		in.log.Warn("redirected to login; credentials are likely invalid", "location", loc)
		st, rule := Evaluate(sig)
		in.report(rule)
		return status.Observation{Status: st, Location: loc, AuthRequired: true}, nil
	}

	html, err := h.HTML(ctx)
	if err != nil {
		return status.Observation{Status: status.Unknown, Location: loc}, err
	}
	if sig.Text, err = ExtractText(html, in.cfg.Containers); err != nil {
		in.log.Debug("status text unavailable", "error", err)
	}

	if sig.StartVisible, err = anyVisible(ctx, h, in.cfg.StartVisible); err != nil {
		return status.Observation{Status: status.Unknown, Location: loc}, err
	}
	if sig.StopVisible, err = anyVisible(ctx, h, in.cfg.StopVisible); err != nil {
		return status.Observation{Status: status.Unknown, Location: loc}, err
	}

	st, rule := Evaluate(sig)
	in.report(rule)
	in.log.Debug("status inferred", "status", st, "rule", rule, "text", sig.Text,
		"start_visible", sig.StartVisible, "stop_visible", sig.StopVisible)

	return status.Observation{
		Status:       st,
		StartVisible: sig.StartVisible,
		StopVisible:  sig.StopVisible,
		Location:     loc,
		Text:         sig.Text,
	}, nil
}

func (in *Inferencer) report(rule string) {
	if in.OnResult != nil {
		in.OnResult(rule)
	}
}

// onTarget matches host and path; the query string is ignored.
func (in *Inferencer) onTarget(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Hostname(), in.target.Hostname()) {
		return false
	}
	return strings.TrimRight(u.Path, "/") == strings.TrimRight(in.target.Path, "/")
}

// anyVisible probes locators in order. Probe failures other than the
// caller's context ending count as not visible.
func anyVisible(ctx context.Context, h session.Handle, locs []session.Locator) (bool, error) {
	for _, l := range locs {
		ok, err := h.Visible(ctx, l)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			if errors.Is(err, session.ErrSessionClosed) {
				return false, err
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
