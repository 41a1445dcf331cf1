package content

import (
	"errors"
	"net/url"
	"strings"
)

// NormalizeURL validates a caller-supplied URL and returns its canonical form.
// A missing scheme defaults to https; only http and https are accepted, the
// host is lowercased, and the fragment is dropped.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", InvalidURL(raw, errors.New("empty url"))
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", InvalidURL(raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", InvalidURL(raw, errors.New("unsupported scheme"))
	}
	if u.Hostname() == "" {
		return "", InvalidURL(raw, errors.New("missing host"))
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}

// ResolveReference resolves ref against base, returning "" when either fails
// to parse.
func ResolveReference(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

// LastPathSegment returns the final non-empty path segment of rawURL.
func LastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return parts[len(parts)-1]
}

// SameOrigin reports whether a and b share scheme and host.
func SameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
