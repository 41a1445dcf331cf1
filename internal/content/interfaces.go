package content

import (
	"context"
	"net/http"
	"time"
)

// Rate-limit classes shared by the services.
const (
	ClassFetch  = "fetch"
	ClassSearch = "search"
)

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Limiter is the admission control shared by all outbound calls.
type Limiter interface {
	// Acquire suspends until a token of class is available and consumes it.
	Acquire(ctx context.Context, class string) error
	// TryAcquire consumes a token or fails immediately with KindRateLimited.
	TryAcquire(class string) error
	// Remaining reports whole tokens available without consuming one.
	Remaining(class string) (int, error)
	// ConfigureFromHeader retunes class from an upstream rate-limit header.
	ConfigureFromHeader(class, value string) bool
	// Status snapshots every configured class.
	Status() []ClassStatus
}

// FetchRequest describes a single outbound HTTP call.
type FetchRequest struct {
	URL     string
	Method  string
	Headers http.Header
	// Timeout bounds the whole call; zero selects the fetcher default.
	Timeout time.Duration
	// MaxBodyBytes caps the body read; zero selects the fetcher default.
	MaxBodyBytes int
	// BeforeFollow, when set, runs before the follow-up request of an
	// HTTP 300 with the resolved target. An error aborts the follow-up.
	BeforeFollow func(ctx context.Context, target string) error
}

// FetchResponse is the raw result of a FetchRequest.
type FetchResponse struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response Content-Type header.
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// Fetcher performs outbound HTTP requests.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
	// FetchFollowing300 behaves like Fetch but follows a single HTTP 300
	// Multiple Choices response through its Location header.
	FetchFollowing300(ctx context.Context, req FetchRequest) (FetchResponse, error)
}
