// Package ratelimit implements per-class token buckets shared by every
// outbound call. Each class refills continuously at maxRequests per window
// and holds at most maxRequests tokens.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/webtools/internal/content"
	"github.com/JakeFAU/webtools/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SleepFunc suspends the caller for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a Limiter.
type Option func(*Limiter)

// WithSleep replaces the suspension primitive (tests pair it with a fake clock).
func WithSleep(fn SleepFunc) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.sleep = fn
		}
	}
}

// Limiter manages one token bucket per class.
type Limiter struct {
	clock  content.Clock
	logger *zap.Logger
	sleep  SleepFunc

	mu      sync.RWMutex
	buckets map[string]*bucket
}

type bucket struct {
	mu       sync.Mutex
	lim      *rate.Limiter
	capacity int
	window   time.Duration
}

var _ content.Limiter = (*Limiter)(nil)

// New creates an empty Limiter; classes are added with Configure.
func New(clock content.Clock, logger *zap.Logger, opts ...Option) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Limiter{
		clock:   clock,
		logger:  logger.Named("ratelimit"),
		sleep:   sleepContext,
		buckets: make(map[string]*bucket),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Configure (re)creates the bucket for class with capacity maxRequests and a
// refill rate of maxRequests per window. The bucket starts full.
func (l *Limiter) Configure(class string, maxRequests int, window time.Duration) error {
	if maxRequests <= 0 {
		return content.Validation("maxRequests must be positive for class %q", class)
	}
	if window <= 0 {
		return content.Validation("window must be positive for class %q", class)
	}
	perSecond := float64(maxRequests) / window.Seconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[class]
	if !ok {
		b = &bucket{}
		l.buckets[class] = b
	}
	b.mu.Lock()
	b.lim = rate.NewLimiter(rate.Limit(perSecond), maxRequests)
	b.capacity = maxRequests
	b.window = window
	b.mu.Unlock()
	return nil
}

// Acquire consumes one token of class, suspending only this caller until a
// token has refilled when the bucket is empty.
func (l *Limiter) Acquire(ctx context.Context, class string) error {
	b, err := l.bucket(class)
	if err != nil {
		return err
	}
	now := l.clock.Now()

	b.mu.Lock()
	if b.lim.AllowN(now, 1) {
		b.mu.Unlock()
		return nil
	}
	res := b.lim.ReserveN(now, 1)
	b.mu.Unlock()
	if !res.OK() {
		return content.RateLimited("rate limit for %q cannot admit a request", class)
	}

	delay := roundUpMillis(res.DelayFrom(now))
	l.logger.Debug("rate limited, waiting",
		zap.String("class", class),
		zap.Duration("duration", delay),
	)
	if err := l.sleep(ctx, delay); err != nil {
		res.CancelAt(l.clock.Now())
		return fmt.Errorf("rate limit wait for %q: %w", class, err)
	}
	metrics.ObserveRateLimitWait(class, delay)
	return nil
}

// TryAcquire consumes a token of class or fails immediately with a
// rate_limited error when none is available.
func (l *Limiter) TryAcquire(class string) error {
	b, err := l.bucket(class)
	if err != nil {
		return err
	}
	now := l.clock.Now()

	b.mu.Lock()
	allowed := b.lim.AllowN(now, 1)
	tokens := b.lim.TokensAt(now)
	limit := b.lim.Limit()
	b.mu.Unlock()
	if allowed {
		return nil
	}

	metrics.ObserveRateLimitRejection(class)
	wait := time.Duration(0)
	if limit > 0 {
		wait = roundUpMillis(time.Duration((1 - clamp(tokens, 0, 1)) / float64(limit) * float64(time.Second)))
	}
	return content.RateLimited("Rate limit exceeded for %s. Try again in %d seconds.",
		class, int(math.Ceil(wait.Seconds()))).WithRetryAfter(wait)
}

// Remaining reports whole tokens currently available for class.
func (l *Limiter) Remaining(class string) (int, error) {
	b, err := l.bucket(class)
	if err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return wholeTokens(b.lim.TokensAt(l.clock.Now()), b.capacity), nil
}

// ConfigureFromHeader retunes class from an "X-RateLimit-Limit" style value
// of the form "<perSecond>, <perPeriod>". The bucket is reset to perSecond
// tokens refilling over one second. Malformed values are ignored.
func (l *Limiter) ConfigureFromHeader(class, value string) bool {
	perSecond, ok := parseLimitHeader(value)
	if !ok {
		if strings.TrimSpace(value) != "" {
			l.logger.Debug("ignoring malformed rate limit header",
				zap.String("class", class),
				zap.String("value", value),
			)
		}
		return false
	}
	if err := l.Configure(class, perSecond, time.Second); err != nil {
		return false
	}
	l.logger.Info("reconfigured rate limit from upstream header",
		zap.String("class", class),
		zap.Int("per_second", perSecond),
	)
	return true
}

// Status snapshots every configured class, sorted by name.
func (l *Limiter) Status() []content.ClassStatus {
	l.mu.RLock()
	classes := make([]string, 0, len(l.buckets))
	for class := range l.buckets {
		classes = append(classes, class)
	}
	l.mu.RUnlock()
	sort.Strings(classes)

	now := l.clock.Now()
	out := make([]content.ClassStatus, 0, len(classes))
	for _, class := range classes {
		b, err := l.bucket(class)
		if err != nil {
			continue
		}
		b.mu.Lock()
		out = append(out, content.ClassStatus{
			Class:           class,
			Capacity:        b.capacity,
			Remaining:       wholeTokens(b.lim.TokensAt(now), b.capacity),
			WindowMs:        b.window.Milliseconds(),
			RefillPerSecond: float64(b.lim.Limit()),
		})
		b.mu.Unlock()
	}
	return out
}

func (l *Limiter) bucket(class string) (*bucket, error) {
	l.mu.RLock()
	b, ok := l.buckets[class]
	l.mu.RUnlock()
	if !ok {
		return nil, content.Config("Unknown rate limit class: %s", class)
	}
	return b, nil
}

// parseLimitHeader accepts "<perSecond>, <perPeriod>" and returns perSecond.
func parseLimitHeader(value string) (int, bool) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, false
	}
	perSecond, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || perSecond <= 0 {
		return 0, false
	}
	if _, err := strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
		return 0, false
	}
	return perSecond, true
}

func wholeTokens(tokens float64, capacity int) int {
	return int(math.Floor(clamp(tokens, 0, float64(capacity))))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundUpMillis(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return ((d + time.Millisecond - 1) / time.Millisecond) * time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
