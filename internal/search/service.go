// Package search proxies queries to a SearXNG-compatible endpoint and
// normalizes the results.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/webtools/internal/content"
	"github.com/JakeFAU/webtools/internal/extract"
)

const (
	// DefaultMaxResults applies when Params.MaxResults is zero.
	DefaultMaxResults = 10
	// MaxMaxResults is the largest accepted Params.MaxResults.
	MaxMaxResults = 50
	// DefaultFetchCount applies when SearchThenFetch receives zero.
	DefaultFetchCount = 3
	// MaxFetchCount is the largest accepted fetch count.
	MaxFetchCount = 5

	// RateLimitHeader carries the upstream "<perSecond>, <perPeriod>" limit.
	RateLimitHeader = "X-RateLimit-Limit"

	formatJSON = "json"
	formatRSS  = "rss"
)

// Params are the inputs of a search.
type Params struct {
	BaseURL    string `json:"searxng_base_url,omitempty"`
	Query      string `json:"query"`
	Format     string `json:"format,omitempty"`
	Categories string `json:"categories,omitempty"`
	Language   string `json:"language,omitempty"`
	PageNo     int    `json:"pageno,omitempty"`
	TimeRange  string `json:"time_range,omitempty"`
	SafeSearch *int   `json:"safesearch,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// PageFetcher fetches and normalizes a result page.
type PageFetcher interface {
	FetchURL(ctx context.Context, rawURL string) (content.FetchResult, error)
}

// Config holds search service settings.
type Config struct {
	// DefaultBaseURL is used when a call does not name an endpoint.
	DefaultBaseURL   string
	Timeout          time.Duration
	FetchConcurrency int
}

// Service runs searches under the search rate-limit class. Unlike page
// fetches it never waits for a token: an empty bucket fails immediately.
type Service struct {
	fetcher content.Fetcher
	limiter content.Limiter
	pages   PageFetcher
	cfg     Config
	logger  *zap.Logger
}

// New creates a Service.
func New(fetcher content.Fetcher, limiter content.Limiter, pages PageFetcher, cfg Config, logger *zap.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = MaxFetchCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fetcher: fetcher,
		limiter: limiter,
		pages:   pages,
		cfg:     cfg,
		logger:  logger.Named("search"),
	}
}

type searxResponse struct {
	Results []searxResult `json:"results"`
}

type searxResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Engine  string `json:"engine"`
}

// Search runs one query and returns at most MaxResults normalized results.
func (s *Service) Search(ctx context.Context, params Params) (content.SearchResponse, error) {
	params, err := s.validate(params)
	if err != nil {
		return content.SearchResponse{}, err
	}
	endpoint, err := BuildURL(params)
	if err != nil {
		return content.SearchResponse{}, err
	}
	if err := s.limiter.TryAcquire(content.ClassSearch); err != nil {
		return content.SearchResponse{}, err
	}
	accept := "application/json"
	if params.Format == formatRSS {
		accept = extract.FeedAccept
	}
	resp, err := s.fetcher.Fetch(ctx, content.FetchRequest{
		URL:     endpoint,
		Timeout: s.cfg.Timeout,
		Headers: http.Header{"Accept": {accept}},
	})
	if err != nil {
		return content.SearchResponse{}, content.Classify(err, endpoint, s.cfg.Timeout)
	}
	if limit := resp.Headers.Get(RateLimitHeader); limit != "" {
		s.limiter.ConfigureFromHeader(content.ClassSearch, limit)
	}
	if err := statusError(resp.StatusCode, params.BaseURL); err != nil {
		s.logger.Debug("search endpoint returned error",
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return content.SearchResponse{}, err
	}

	raw, err := decode(resp.Body, params.Format)
	if err != nil {
		return content.SearchResponse{}, err
	}
	return content.SearchResponse{
		Query:   params.Query,
		Results: normalizeResults(raw, params.MaxResults),
	}, nil
}

// SearchFormatted renders Search results as numbered plain text.
func (s *Service) SearchFormatted(ctx context.Context, params Params) (string, error) {
	res, err := s.Search(ctx, params)
	if err != nil {
		return "", err
	}
	return FormatResults(res), nil
}

// SearchThenFetch searches and then fetches the top fetchCount results
// concurrently. A failed page is reported on its item, not as an error.
func (s *Service) SearchThenFetch(ctx context.Context, params Params, fetchCount int) (content.SearchFetchResponse, error) {
	if fetchCount == 0 {
		fetchCount = DefaultFetchCount
	}
	if fetchCount < 1 || fetchCount > MaxFetchCount {
		return content.SearchFetchResponse{}, content.Validation("fetch_count must be between 1 and %d", MaxFetchCount)
	}
	params.MaxResults = fetchCount
	res, err := s.Search(ctx, params)
	if err != nil {
		return content.SearchFetchResponse{}, err
	}

	items := make([]content.SearchFetchItem, len(res.Results))
	var g errgroup.Group
	g.SetLimit(s.cfg.FetchConcurrency)
	for i, hit := range res.Results {
		g.Go(func() error {
			items[i].Search = hit
			page, err := s.pages.FetchURL(ctx, hit.URL)
			if err != nil {
				s.logger.Debug("search result fetch failed", zap.String("url", hit.URL), zap.Error(err))
				items[i].Error = err.Error()
				return nil
			}
			items[i].Page = &page
			return nil
		})
	}
	_ = g.Wait()
	return content.SearchFetchResponse{Query: res.Query, Items: items}, nil
}

// SearchThenFetchFormatted renders SearchThenFetch output as plain text.
func (s *Service) SearchThenFetchFormatted(ctx context.Context, params Params, fetchCount int) (string, error) {
	res, err := s.SearchThenFetch(ctx, params, fetchCount)
	if err != nil {
		return "", err
	}
	return FormatFetched(res), nil
}

func (s *Service) validate(params Params) (Params, error) {
	params.BaseURL = strings.TrimSpace(params.BaseURL)
	if params.BaseURL == "" {
		params.BaseURL = s.cfg.DefaultBaseURL
	}
	if params.BaseURL == "" {
		return params, content.Validation("searxng_base_url is required")
	}
	params.Query = strings.TrimSpace(params.Query)
	if params.Query == "" {
		return params, content.Validation("query is required")
	}
	switch params.MaxResults {
	case 0:
		params.MaxResults = DefaultMaxResults
	default:
		if params.MaxResults < 1 || params.MaxResults > MaxMaxResults {
			return params, content.Validation("max_results must be between 1 and %d", MaxMaxResults)
		}
	}
	params.Format = strings.ToLower(strings.TrimSpace(params.Format))
	if params.Format == "" {
		params.Format = formatJSON
	}
	if params.Format != formatJSON && params.Format != formatRSS {
		return params, content.Validation("format must be %q or %q", formatJSON, formatRSS)
	}
	if params.PageNo < 0 {
		return params, content.Validation("pageno must be positive")
	}
	if params.SafeSearch != nil && (*params.SafeSearch < 0 || *params.SafeSearch > 2) {
		return params, content.Validation("safesearch must be 0, 1, or 2")
	}
	return params, nil
}

// BuildURL normalizes the endpoint base (trailing slashes removed, /search
// appended when absent) and attaches the query parameters.
func BuildURL(params Params) (string, error) {
	base, err := content.NormalizeURL(params.BaseURL)
	if err != nil {
		return "", err
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/search") {
		base += "/search"
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", content.InvalidURL(params.BaseURL, err)
	}

	q := u.Query()
	q.Set("q", params.Query)
	format := params.Format
	if format == "" {
		format = formatJSON
	}
	q.Set("format", format)
	if params.Categories != "" {
		q.Set("categories", params.Categories)
	}
	if params.Language != "" {
		q.Set("language", params.Language)
	}
	if params.PageNo > 0 {
		q.Set("pageno", strconv.Itoa(params.PageNo))
	}
	if params.TimeRange != "" {
		q.Set("time_range", params.TimeRange)
	}
	if params.SafeSearch != nil {
		q.Set("safesearch", strconv.Itoa(*params.SafeSearch))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func statusError(status int, baseURL string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusForbidden:
		return &content.Error{
			Kind: content.KindUpstreamHTTP,
			Message: fmt.Sprintf("SearXNG at %s returned 403 Forbidden. "+
				"Check that the instance allows the json output format (search.formats in settings.yml).", baseURL),
			Status: status,
		}
	case status == http.StatusTooManyRequests:
		return content.RateLimited("SearXNG at %s is rate limiting requests (HTTP 429). Try again later.", baseURL)
	default:
		return &content.Error{
			Kind:    content.KindUpstreamHTTP,
			Message: fmt.Sprintf("SearXNG request failed with HTTP %d %s", status, http.StatusText(status)),
			Status:  status,
		}
	}
}

func decode(body []byte, format string) ([]searxResult, error) {
	if format == formatRSS {
		feed, err := extract.Feed(body)
		if err != nil {
			return nil, err
		}
		out := make([]searxResult, 0, len(feed.Entries))
		for _, e := range feed.Entries {
			out = append(out, searxResult{Title: e.Title, URL: e.Link, Content: e.Summary})
		}
		return out, nil
	}
	var payload searxResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, content.Parse("search response", err)
	}
	return payload.Results, nil
}

func normalizeResults(raw []searxResult, maxResults int) []content.SearchResult {
	out := make([]content.SearchResult, 0, min(len(raw), maxResults))
	for _, r := range raw {
		if len(out) == maxResults {
			break
		}
		link := strings.TrimSpace(r.URL)
		if link == "" {
			continue
		}
		out = append(out, content.SearchResult{
			Title:   content.Truncate(strings.Join(strings.Fields(r.Title), " "), content.MaxSearchTitleChars),
			URL:     link,
			Snippet: content.Truncate(strings.Join(strings.Fields(r.Content), " "), content.MaxSearchSnippetChars),
			Engine:  strings.TrimSpace(r.Engine),
		})
	}
	return out
}
