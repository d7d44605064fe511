package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// stealthScript hides the automation flag from page scripts.
const stealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// Options configure the go-rod backed Handle.
type Options struct {
	// ControlURL attaches to an existing DevTools endpoint. When empty a
	// browser is launched from Bin.
	ControlURL string
	Bin        string
	Headless   bool

	UserAgent    string
	WindowWidth  int
	WindowHeight int
	Stealth      bool

	NavigateTimeout time.Duration
	ProbeTimeout    time.Duration
}

// Rod is a Handle backed by one Chromium page.
type Rod struct {
	opts    Options
	log     *slog.Logger
	browser *rod.Browser
	page    *rod.Page
	l       *launcher.Launcher
}

// OpenRod launches (or attaches to) a browser and opens one page.
// Failure here is fatal for the caller.
func OpenRod(ctx context.Context, opts Options, log *slog.Logger) (*Rod, error) {
	if log == nil {
		log = slog.Default()
	}
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = 30 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 2 * time.Second
	}
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = 1366, 768
	}

	r := &Rod{opts: opts, log: log}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Headless(opts.Headless).
			Set(flags.Flag("no-sandbox")).
			Set(flags.Flag("disable-dev-shm-usage")).
			Set(flags.Flag("disable-gpu")).
			Set(flags.Flag("disable-extensions")).
			Set(flags.Flag("disable-blink-features"), "AutomationControlled").
			Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", opts.WindowWidth, opts.WindowHeight))
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("session: launch browser: %w", err)
		}
		controlURL = u
		r.l = l
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		r.cleanup()
		return nil, fmt.Errorf("session: connect browser: %w", err)
	}
	r.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		r.cleanup()
		return nil, fmt.Errorf("session: create page: %w", err)
	}
	r.page = page

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             opts.WindowWidth,
		Height:            opts.WindowHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		log.Warn("set viewport failed", "error", err)
	}

	if opts.UserAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}).Call(page); err != nil {
			log.Warn("user agent override failed", "error", err)
		}
	}

	if opts.Stealth {
		if _, err := page.EvalOnNewDocument(stealthScript); err != nil {
			log.Debug("stealth script failed", "error", err)
		}
	}

	return r, nil
}

func (r *Rod) cleanup() {
	if r.browser != nil {
		_ = r.browser.Close()
	}
	if r.l != nil {
		r.l.Kill()
	}
}

func (r *Rod) Navigate(ctx context.Context, url string) error {
	p := r.page.Context(ctx).Timeout(r.opts.NavigateTimeout)
	if err := p.Navigate(url); err != nil {
		return mapErr(ctx, fmt.Errorf("session: navigate %s: %w", url, err))
	}
	if err := p.WaitLoad(); err != nil {
		return mapErr(ctx, fmt.Errorf("session: wait load: %w", err))
	}
	return nil
}

func (r *Rod) Location(ctx context.Context) (string, error) {
	info, err := r.page.Context(ctx).Timeout(r.opts.ProbeTimeout).Info()
	if err != nil {
		return "", mapErr(ctx, fmt.Errorf("session: page info: %w", err))
	}
	return info.URL, nil
}

func (r *Rod) HTML(ctx context.Context) (string, error) {
	html, err := r.page.Context(ctx).Timeout(r.opts.ProbeTimeout).HTML()
	if err != nil {
		return "", mapErr(ctx, fmt.Errorf("session: read html: %w", err))
	}
	return html, nil
}

func (r *Rod) Visible(ctx context.Context, loc Locator) (bool, error) {
	p := r.page.Context(ctx).Timeout(r.opts.ProbeTimeout)

	var (
		has bool
		el  *rod.Element
		err error
	)
	if loc.Kind == KindText {
		has, el, err = p.HasR(textSelector(loc), textRegex(loc.Text))
	} else {
		has, el, err = p.Has(loc.Selector)
	}
	if err != nil {
		return false, mapErr(ctx, fmt.Errorf("session: probe %s: %w", loc, err))
	}
	if !has {
		return false, nil
	}

	visible, err := el.Visible()
	if err != nil || !visible {
		return false, nil
	}
	return enabled(el), nil
}

func (r *Rod) WaitInteractable(ctx context.Context, loc Locator, timeout time.Duration) (Element, error) {
	p := r.page.Context(ctx).Timeout(timeout)

	var (
		el  *rod.Element
		err error
	)
	if loc.Kind == KindText {
		el, err = p.ElementR(textSelector(loc), textRegex(loc.Text))
	} else {
		el, err = p.Element(loc.Selector)
	}
	if err != nil {
		if ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
		}
		return nil, ctx.Err()
	}

	if _, err := el.WaitInteractable(); err != nil {
		if ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotInteractable, loc)
		}
		return nil, ctx.Err()
	}
	if !enabled(el) {
		return nil, fmt.Errorf("%w: %s disabled", ErrNotInteractable, loc)
	}

	return &rodElement{el: el.CancelTimeout(), probe: r.opts.ProbeTimeout}, nil
}

func (r *Rod) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
			Expires:  proto.TimeSinceEpoch(c.Expires),
		})
	}
	if err := r.page.Context(ctx).Timeout(r.opts.ProbeTimeout).SetCookies(params); err != nil {
		return mapErr(ctx, fmt.Errorf("session: set cookies: %w", err))
	}
	return nil
}

func (r *Rod) Close() error {
	var err error
	if r.browser != nil {
		err = r.browser.Close()
	}
	if r.l != nil {
		r.l.Kill()
	}
	return err
}

// ---- ELEMENT ----

type rodElement struct {
	el    *rod.Element
	probe time.Duration
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	if err := e.el.Context(ctx).Timeout(e.probe).ScrollIntoView(); err != nil {
		return mapErr(ctx, fmt.Errorf("session: scroll: %w", err))
	}
	return nil
}

func (e *rodElement) Activate(ctx context.Context, m Method) error {
	el := e.el.Context(ctx).Timeout(e.probe)

	var err error
	switch m {
	case MethodDirect:
		err = el.Click(proto.InputMouseButtonLeft, 1)
	case MethodScript:
		_, err = el.Eval(`() => this.click()`)
	case MethodSynthetic:
		_, err = el.Eval(`() => this.dispatchEvent(new MouseEvent('click', {bubbles: true, cancelable: true}))`)
	default:
		return fmt.Errorf("session: unknown activation method %q", m)
	}
	if err != nil {
		return mapErr(ctx, fmt.Errorf("session: activate %s: %w", m, err))
	}
	return nil
}

// ---- HELPERS ----

func enabled(el *rod.Element) bool {
	res, err := el.Eval(`() => !this.disabled`)
	if err != nil || res == nil {
		return true
	}
	return res.Value.Bool()
}

func textSelector(loc Locator) string {
	if loc.Selector == "" {
		return "*"
	}
	return loc.Selector
}

func textRegex(text string) string {
	return "/" + regexp.QuoteMeta(text) + "/i"
}

// mapErr tags deadline errors that came from a per-operation timeout
// rather than from the caller's context.
func mapErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
