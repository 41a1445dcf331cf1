// Package collyfetcher implements content.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/webtools/internal/content"
	"github.com/JakeFAU/webtools/internal/metrics"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 10 * 1024 * 1024
	maxRedirects        = 10

	// DefaultUserAgent is a browser-like agent string sent with every request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultAcceptLanguage = "en-US,en;q=0.9"
)

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	MaxBodyBytes   int
}

// Fetcher implements content.Fetcher using the Colly collector.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	logger    *zap.Logger
}

var _ content.Fetcher = (*Fetcher)(nil)

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher sharing one pooled transport across requests.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = defaultAcceptLanguage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
		logger:    logger.Named("fetcher"),
	}
}

// Fetch executes a single HTTP request using Colly. Non-2xx responses are
// returned, not treated as errors; transport failures come back classified.
func (f *Fetcher) Fetch(ctx context.Context, request content.FetchRequest) (content.FetchResponse, error) {
	timeout := f.timeout(request)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		result   content.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx, request, timeout)
	f.configureCollectorHooks(collector, request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request, &fetchErr); err != nil {
		metrics.ObserveFetch(request.URL, "error", 0)
		f.logger.Debug("fetch failed",
			zap.String("url", request.URL),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return content.FetchResponse{}, content.Classify(err, request.URL, timeout)
	}
	metrics.ObserveFetch(request.URL, outcome(result.StatusCode), len(result.Body))
	f.logger.Debug("fetched",
		zap.String("url", result.URL),
		zap.Int("status", result.StatusCode),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// FetchFollowing300 fetches request and, when the response is exactly
// HTTP 300, fetches the Location target once more. Location resolves against
// request.URL, not the URL reached through earlier redirects. A 300 without a
// Location header is an upstream_http error.
func (f *Fetcher) FetchFollowing300(ctx context.Context, request content.FetchRequest) (content.FetchResponse, error) {
	resp, err := f.Fetch(ctx, request)
	if err != nil {
		return resp, err
	}
	if resp.StatusCode != http.StatusMultipleChoices {
		return resp, nil
	}
	location := ""
	if resp.Headers != nil {
		location = strings.TrimSpace(resp.Headers.Get("Location"))
	}
	if location == "" {
		return content.FetchResponse{}, &content.Error{
			Kind:    content.KindUpstreamHTTP,
			Message: fmt.Sprintf("HTTP 300 Multiple Choices without Location header: %s", request.URL),
			Status:  http.StatusMultipleChoices,
		}
	}
	next := request
	next.URL = content.ResolveReference(request.URL, location)
	if request.BeforeFollow != nil {
		if err := request.BeforeFollow(ctx, next.URL); err != nil {
			return content.FetchResponse{}, err
		}
	}
	f.logger.Debug("following multiple choices response",
		zap.String("url", request.URL),
		zap.String("location", next.URL),
	)
	return f.Fetch(ctx, next)
}

func (f *Fetcher) timeout(request content.FetchRequest) time.Duration {
	if request.Timeout > 0 {
		return request.Timeout
	}
	return f.cfg.Timeout
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	request content.FetchRequest,
	timeout time.Duration,
) *colly.Collector {
	maxBody := f.cfg.MaxBodyBytes
	if request.MaxBodyBytes > 0 {
		maxBody = request.MaxBodyBytes
	}
	collector := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(maxBody),
		colly.StdlibContext(ctx),
	)
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)
	collector.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request content.FetchRequest,
	start time.Time,
	result *content.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		finalURL := request.URL
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = content.FetchResponse{
			URL:        finalURL,
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	request content.FetchRequest,
	fetchErr *error,
) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("colly fetch canceled: %w", err)
	}
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, request.URL, nil, nil, nil)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// copyHeaders applies the default browser headers, then the caller's.
func (f *Fetcher) copyHeaders(request content.FetchRequest, r *colly.Request) {
	if r.Headers == nil {
		r.Headers = &http.Header{}
	}
	r.Headers.Set("User-Agent", f.cfg.UserAgent)
	r.Headers.Set("Accept", defaultAccept)
	r.Headers.Set("Accept-Language", f.cfg.AcceptLanguage)
	for key, values := range request.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func outcome(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "success"
	case status >= 300 && status < 400:
		return "redirect"
	default:
		return "http_error"
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
