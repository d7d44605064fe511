package session

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Handle drives one rendered dashboard page.
//
// Implementations are NOT safe for concurrent use. Every caller goes
// through a Guard.
type Handle interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	// Visible reports whether an element matching loc is rendered and
	// enabled. A missing element is (false, nil).
	Visible(ctx context.Context, loc Locator) (bool, error)

	// WaitInteractable blocks until an element matching loc can be
	// activated, or returns ErrNotFound / ErrNotInteractable once
	// timeout elapses.
	WaitInteractable(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)

	SetCookies(ctx context.Context, cookies []Cookie) error
	Close() error
}

// Element is a resolved control on the page.
type Element interface {
	ScrollIntoView(ctx context.Context) error
	Activate(ctx context.Context, m Method) error
}

// ---- LOCATORS ----

// LocatorKind selects how a Locator pattern is matched.
type LocatorKind string

const (
	// KindAttribute matches a CSS selector keyed on a stable attribute.
	KindAttribute LocatorKind = "attribute"
	// KindClass matches a CSS selector keyed on styling classes.
	KindClass LocatorKind = "class"
	// KindText matches elements of Selector whose text contains Text,
	// case-insensitively.
	KindText LocatorKind = "text"
)

// ParseLocatorKind validates a kind name.
func ParseLocatorKind(s string) (LocatorKind, error) {
	switch k := LocatorKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAttribute, KindClass, KindText:
		return k, nil
	default:
		return "", fmt.Errorf("session: unknown locator kind %q", s)
	}
}

// Locator is one (kind, pattern) entry of a strategy table.
type Locator struct {
	Kind     LocatorKind
	Selector string
	Text     string
}

// Attr builds an attribute locator.
func Attr(selector string) Locator { return Locator{Kind: KindAttribute, Selector: selector} }

// Class builds a class locator.
func Class(selector string) Locator { return Locator{Kind: KindClass, Selector: selector} }

// Text builds a text locator over buttons.
func Text(text string) Locator { return Locator{Kind: KindText, Selector: "button", Text: text} }

// Validate checks the locator is usable.
func (l Locator) Validate() error {
	switch l.Kind {
	case KindAttribute, KindClass:
		if strings.TrimSpace(l.Selector) == "" {
			return fmt.Errorf("session: %s locator needs a selector", l.Kind)
		}
	case KindText:
		if strings.TrimSpace(l.Text) == "" {
			return fmt.Errorf("session: text locator needs text")
		}
	default:
		return fmt.Errorf("session: unknown locator kind %q", l.Kind)
	}
	return nil
}

func (l Locator) String() string {
	if l.Kind == KindText {
		sel := l.Selector
		if sel == "" {
			sel = "*"
		}
		return fmt.Sprintf("text:%s~%q", sel, l.Text)
	}
	return fmt.Sprintf("%s:%s", l.Kind, l.Selector)
}

// ---- ACTIVATION ----

// Method is a way to activate a resolved element.
type Method string

const (
	// MethodDirect is a native pointer click.
	MethodDirect Method = "direct"
	// MethodScript calls element.click() in page script.
	MethodScript Method = "script"
	// MethodSynthetic dispatches a bubbling MouseEvent.
	MethodSynthetic Method = "synthetic"
)

// DefaultMethods is the activation order used when none is configured.
var DefaultMethods = []Method{MethodDirect, MethodScript, MethodSynthetic}

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodDirect, MethodScript, MethodSynthetic:
		return m, nil
	default:
		return "", fmt.Errorf("session: unknown activation method %q", s)
	}
}
