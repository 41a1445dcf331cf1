package content

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Kind classifies a failure so callers can map it to a transport status.
type Kind string

// Error kinds produced by the core.
const (
	KindValidation   Kind = "validation"
	KindInvalidURL   Kind = "invalid_url"
	KindTimeout      Kind = "timeout"
	KindRateLimited  Kind = "rate_limited"
	KindUpstreamHTTP Kind = "upstream_http"
	KindParse        Kind = "parse"
	KindConfig       Kind = "config"
	KindInternal     Kind = "internal"
)

// Error is a classified, human-readable failure.
type Error struct {
	Kind    Kind
	Message string
	// Status is the upstream HTTP status for KindUpstreamHTTP (and 429s).
	Status int
	// RetryAfter is set on KindRateLimited errors when the wait is known.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare kind sentinel matching e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks by kind.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrInvalidURL   = &Error{Kind: KindInvalidURL}
	ErrTimeout      = &Error{Kind: KindTimeout}
	ErrRateLimited  = &Error{Kind: KindRateLimited}
	ErrUpstreamHTTP = &Error{Kind: KindUpstreamHTTP}
	ErrParse        = &Error{Kind: KindParse}
	ErrConfig       = &Error{Kind: KindConfig}
)

// Validation reports a missing or malformed parameter.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// InvalidURL reports an unparseable or unsupported URL.
func InvalidURL(raw string, err error) *Error {
	return &Error{Kind: KindInvalidURL, Message: fmt.Sprintf("Invalid URL: %s", raw), Err: err}
}

// Timeout reports a network call that exceeded its deadline.
func Timeout(rawURL string, after time.Duration, err error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("Request timed out after %s: %s", after, rawURL),
		Err:     err,
	}
}

// RateLimited reports local or upstream throttling.
func RateLimited(format string, args ...any) *Error {
	return &Error{Kind: KindRateLimited, Message: fmt.Sprintf(format, args...), Status: http.StatusTooManyRequests}
}

// UpstreamStatus reports a non-2xx response from a fetched resource.
func UpstreamStatus(status int, rawURL string) *Error {
	return &Error{
		Kind:    KindUpstreamHTTP,
		Message: fmt.Sprintf("HTTP %d %s: %s", status, http.StatusText(status), rawURL),
		Status:  status,
	}
}

// Parse reports a document that could not be parsed.
func Parse(what string, err error) *Error {
	return &Error{Kind: KindParse, Message: fmt.Sprintf("Failed to parse %s: %v", what, err), Err: err}
}

// WithRetryAfter records how long a throttled caller should wait.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// Config reports a misconfigured component.
func Config(format string, args ...any) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or KindInternal when it is unclassified.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// Classify converts any error raised while acquiring rawURL into an *Error.
// Already classified errors pass through unchanged.
func Classify(err error, rawURL string, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(rawURL, timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(rawURL, timeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindInternal, Message: fmt.Sprintf("Request canceled: %s", rawURL), Err: err}
	}
	return &Error{Kind: KindInternal, Message: fmt.Sprintf("Failed to fetch %s: %v", rawURL, err), Err: err}
}
