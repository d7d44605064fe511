package session

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL trims whitespace and stray quotes, adds https:// when no
// scheme is present and requires a host. On failure it returns fallback
// together with the reason.
func NormalizeURL(raw, fallback string) (string, error) {
	u := strings.TrimSpace(raw)
	u = strings.Trim(u, `"'`)
	u = strings.TrimSpace(u)
	if u == "" {
		return fallback, fmt.Errorf("session: empty url")
	}

	if !strings.Contains(u, "://") {
		u = "https://" + strings.TrimLeft(u, "/")
	}

	p, err := url.Parse(u)
	if err != nil {
		return fallback, fmt.Errorf("session: parse url %q: %w", raw, err)
	}
	if p.Scheme != "http" && p.Scheme != "https" {
		return fallback, fmt.Errorf("session: unsupported scheme %q", p.Scheme)
	}
	if p.Hostname() == "" {
		return fallback, fmt.Errorf("session: url %q has no host", raw)
	}
	return p.String(), nil
}

// DomainRoot returns scheme://host for u.
func DomainRoot(u string) (string, error) {
	p, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("session: parse url: %w", err)
	}
	if p.Hostname() == "" {
		return "", fmt.Errorf("session: url %q has no host", u)
	}
	return p.Scheme + "://" + p.Host, nil
}

// IsLoginLocation reports whether loc looks like an authentication
// redirect. marker is matched case-insensitively against the path.
func IsLoginLocation(loc, marker string) bool {
	if marker == "" {
		marker = "/login"
	}
	return strings.Contains(strings.ToLower(loc), strings.ToLower(marker))
}
