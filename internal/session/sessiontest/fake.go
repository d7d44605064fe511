// Package sessiontest provides a scriptable in-memory session.Handle.
package sessiontest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tamzrod/panel-keeper/internal/session"
)

// Fake is a session.Handle whose page is set up by the test.
// It records every call and tracks how many calls overlapped.
type Fake struct {
	mu sync.Mutex

	url      string
	html     string
	visible  map[string]bool
	elements map[string]*Element
	redirect map[string]string

	navigateErr error
	delay       time.Duration

	calls   []string
	tried   []string
	cookies []session.Cookie
	closed  bool

	inflight atomic.Int32
	peak     atomic.Int32
}

// New returns an empty page at about:blank.
func New() *Fake {
	return &Fake{
		url:      "about:blank",
		visible:  make(map[string]bool),
		elements: make(map[string]*Element),
		redirect: make(map[string]string),
	}
}

// ---- SETUP ----

// SetLocation places the page at url without recording a call.
func (f *Fake) SetLocation(url string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	return f
}

// SetHTML sets the rendered document.
func (f *Fake) SetHTML(html string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html = html
	return f
}

// SetVisible marks loc as rendered and enabled.
func (f *Fake) SetVisible(loc session.Locator, v bool) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[loc.String()] = v
	return f
}

// AddElement makes loc resolvable by WaitInteractable.
func (f *Fake) AddElement(loc session.Locator, el *Element) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	el.f = f
	el.loc = loc.String()
	f.elements[loc.String()] = el
	return f
}

// Redirect makes navigation to from land on to.
func (f *Fake) Redirect(from, to string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirect[from] = to
	return f
}

// FailNavigate makes every Navigate return err.
func (f *Fake) FailNavigate(err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigateErr = err
	return f
}

// SetDelay makes every call block for d, widening overlap windows.
func (f *Fake) SetDelay(d time.Duration) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// ---- INSPECTION ----

// Calls returns the recorded call log.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Tried returns the locators passed to WaitInteractable, in order.
func (f *Fake) Tried() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tried...)
}

// Cookies returns the cookies installed so far.
func (f *Fake) Cookies() []session.Cookie {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Cookie(nil), f.cookies...)
}

// Peak is the highest number of overlapping calls observed.
func (f *Fake) Peak() int { return int(f.peak.Load()) }

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// ---- session.Handle ----

func (f *Fake) enter(call string) func() {
	n := f.inflight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	d := f.delay
	f.mu.Unlock()

	if d > 0 {
		time.Sleep(d)
	}
	return func() { f.inflight.Add(-1) }
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	defer f.enter("navigate:" + url)()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return session.ErrSessionClosed
	}
	if f.navigateErr != nil {
		return f.navigateErr
	}
	if to, ok := f.redirect[url]; ok {
		f.url = to
		return nil
	}
	f.url = url
	return nil
}

func (f *Fake) Location(ctx context.Context) (string, error) {
	defer f.enter("location")()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", session.ErrSessionClosed
	}
	return f.url, nil
}

func (f *Fake) HTML(ctx context.Context) (string, error) {
	defer f.enter("html")()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", session.ErrSessionClosed
	}
	return f.html, nil
}

func (f *Fake) Visible(ctx context.Context, loc session.Locator) (bool, error) {
	defer f.enter("visible:" + loc.String())()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, session.ErrSessionClosed
	}
	return f.visible[loc.String()], nil
}

func (f *Fake) WaitInteractable(ctx context.Context, loc session.Locator, timeout time.Duration) (session.Element, error) {
	defer f.enter("wait:" + loc.String())()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, session.ErrSessionClosed
	}
	f.tried = append(f.tried, loc.String())

	el, ok := f.elements[loc.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, loc)
	}
	if el.NotInteractable {
		return nil, fmt.Errorf("%w: %s", session.ErrNotInteractable, loc)
	}
	return el, nil
}

func (f *Fake) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	defer f.enter("cookies")()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies = append(f.cookies, cookies...)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// ---- ELEMENT ----

// Element is a scripted control.
type Element struct {
	// Fail maps an activation method to the error it returns.
	Fail map[session.Method]error
	// NotInteractable makes WaitInteractable reject the element.
	NotInteractable bool

	f         *Fake
	loc       string
	mu        sync.Mutex
	activated []session.Method
	scrolled  int
}

// Activated lists the methods attempted on the element, in order.
func (e *Element) Activated() []session.Method {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]session.Method(nil), e.activated...)
}

// Scrolled is the number of ScrollIntoView calls.
func (e *Element) Scrolled() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrolled
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	if e.f != nil {
		defer e.f.enter("scroll:" + e.loc)()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scrolled++
	return nil
}

func (e *Element) Activate(ctx context.Context, m session.Method) error {
	if e.f != nil {
		defer e.f.enter("activate:" + e.loc + ":" + string(m))()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activated = append(e.activated, m)
	if err, ok := e.Fail[m]; ok {
		return err
	}
	return nil
}
