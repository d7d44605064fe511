package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Cookie is one credential cookie to install before first use.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Secure   bool
	HTTPOnly bool
	// SameSite is "Lax", "Strict", "None" or empty.
	SameSite string
	// Expires is unix seconds; zero means a session cookie.
	Expires float64
}

type rawCookie struct {
	Name     string   `json:"name"`
	Value    *string  `json:"value"`
	Domain   string   `json:"domain"`
	Path     string   `json:"path"`
	Secure   *bool    `json:"secure"`
	HTTPOnly bool     `json:"httpOnly"`
	SameSite string   `json:"sameSite"`
	Expires  *float64 `json:"expires"`
	Expiry   *float64 `json:"expiry"`
}

// ParseCookies decodes a browser cookie export. raw may be a JSON array
// or a single object. Entries without a name or value are skipped.
// Missing path defaults to "/" and missing domain to the host of
// targetURL. Secure defaults to true.
func ParseCookies(raw, targetURL string) ([]Cookie, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var items []rawCookie
	if strings.HasPrefix(raw, "{") {
		var one rawCookie
		if err := json.Unmarshal([]byte(raw), &one); err != nil {
			return nil, fmt.Errorf("session: cookies: %w", err)
		}
		items = []rawCookie{one}
	} else if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("session: cookies: %w", err)
	}

	host := ""
	if p, err := url.Parse(targetURL); err == nil {
		host = p.Hostname()
	}

	out := make([]Cookie, 0, len(items))
	for _, c := range items {
		if c.Name == "" || c.Value == nil {
			continue
		}
		ck := Cookie{
			Name:     c.Name,
			Value:    *c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   true,
			HTTPOnly: c.HTTPOnly,
			SameSite: normalizeSameSite(c.SameSite),
		}
		if ck.Path == "" {
			ck.Path = "/"
		}
		if ck.Domain == "" {
			ck.Domain = host
		}
		if c.Secure != nil {
			ck.Secure = *c.Secure
		}
		switch {
		case c.Expires != nil && *c.Expires > 0:
			ck.Expires = *c.Expires
		case c.Expiry != nil && *c.Expiry > 0:
			ck.Expires = *c.Expiry
		}
		out = append(out, ck)
	}
	return out, nil
}

func normalizeSameSite(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lax":
		return "Lax"
	case "strict":
		return "Strict"
	case "none", "no_restriction":
		return "None"
	default:
		return ""
	}
}

// InjectCookies opens the domain root of targetURL and installs cookies.
// It returns the number of cookies installed.
func InjectCookies(ctx context.Context, h Handle, cookies []Cookie, targetURL string) (int, error) {
	if len(cookies) == 0 {
		return 0, nil
	}
	root, err := DomainRoot(targetURL)
	if err != nil {
		return 0, err
	}
	if err := h.Navigate(ctx, root); err != nil {
		return 0, fmt.Errorf("session: open %s: %w", root, err)
	}
	if err := h.SetCookies(ctx, cookies); err != nil {
		return 0, fmt.Errorf("session: set cookies: %w", err)
	}
	return len(cookies), nil
}
