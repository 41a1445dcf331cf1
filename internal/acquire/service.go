// Package acquire implements the content acquisition tools: fetching pages,
// metadata, links, feeds, and sitemaps through the shared rate limiter.
package acquire

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/webtools/internal/content"
	"github.com/JakeFAU/webtools/internal/extract"
)

const (
	// MaxBatchURLs bounds a single BatchFetch call.
	MaxBatchURLs = 10
	// MaxSitemapChildren bounds sitemap index expansion.
	MaxSitemapChildren = 10
	// MetadataBodyBytes is how much of a page FetchMetadata reads.
	MetadataBodyBytes = 150000

	sitemapAccept = "application/xml, text/xml;q=0.9, */*;q=0.8"
)

// Config holds per-operation timeouts and fan-out bounds.
type Config struct {
	FetchTimeout     time.Duration
	MetadataTimeout  time.Duration
	FeedTimeout      time.Duration
	SitemapTimeout   time.Duration
	BatchConcurrency int
}

// DefaultConfig returns the stock timeouts.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:     15 * time.Second,
		MetadataTimeout:  10 * time.Second,
		FeedTimeout:      15 * time.Second,
		SitemapTimeout:   20 * time.Second,
		BatchConcurrency: 4,
	}
}

// Service acquires and normalizes web content. Every network round-trip
// first takes one token of the fetch class.
type Service struct {
	fetcher content.Fetcher
	limiter content.Limiter
	cfg     Config
	logger  *zap.Logger
}

// New creates a Service. Zero-valued Config fields take DefaultConfig values.
func New(fetcher content.Fetcher, limiter content.Limiter, cfg Config, logger *zap.Logger) *Service {
	def := DefaultConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = def.MetadataTimeout
	}
	if cfg.FeedTimeout <= 0 {
		cfg.FeedTimeout = def.FeedTimeout
	}
	if cfg.SitemapTimeout <= 0 {
		cfg.SitemapTimeout = def.SitemapTimeout
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = def.BatchConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fetcher: fetcher,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger.Named("acquire"),
	}
}

// FetchURL fetches a page and returns its readable form. Content types other
// than HTML and plain text produce an explanatory result instead of an error.
func (s *Service) FetchURL(ctx context.Context, rawURL string) (content.FetchResult, error) {
	resp, err := s.fetchOK(ctx, rawURL, content.FetchRequest{Timeout: s.cfg.FetchTimeout})
	if err != nil {
		return content.FetchResult{}, err
	}
	result, _ := s.normalize(resp)
	return result, nil
}

// FetchContent returns only the readable text of a page.
func (s *Service) FetchContent(ctx context.Context, rawURL string) (string, error) {
	result, err := s.FetchURL(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return result.TextContent, nil
}

// FetchURLAsMarkdown is FetchURL with the main content rendered as Markdown.
// It falls back to plain text when conversion fails or yields nothing.
func (s *Service) FetchURLAsMarkdown(ctx context.Context, rawURL string) (content.FetchResult, error) {
	resp, err := s.fetchOK(ctx, rawURL, content.FetchRequest{Timeout: s.cfg.FetchTimeout})
	if err != nil {
		return content.FetchResult{}, err
	}
	result, extraction := s.normalize(resp)
	if extraction == nil {
		return result, nil
	}
	md, err := extract.Markdown(extraction.ContentHTML, resp.URL)
	switch {
	case err != nil:
		s.logger.Debug("markdown conversion failed, using text",
			zap.String("url", resp.URL),
			zap.Error(err),
		)
	case md == "":
		s.logger.Debug("markdown conversion empty, using text", zap.String("url", resp.URL))
	default:
		result.TextContent = md
	}
	return result, nil
}

// FetchMetadata reads the head of a page and returns its status, content
// type, and, for successful HTML, its descriptive metadata.
func (s *Service) FetchMetadata(ctx context.Context, rawURL string) (content.MetadataResult, error) {
	resp, err := s.fetch(ctx, rawURL, content.FetchRequest{
		Timeout:      s.cfg.MetadataTimeout,
		MaxBodyBytes: MetadataBodyBytes,
	})
	if err != nil {
		return content.MetadataResult{}, err
	}
	result := content.MetadataResult{
		FinalURL:    resp.URL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType(),
	}
	if !isSuccess(resp.StatusCode) || !extract.IsHTML(result.ContentType) {
		return result, nil
	}
	meta, err := extract.Metadata(resp.Body, resp.URL)
	if err != nil {
		s.logger.Debug("metadata parse failed", zap.String("url", resp.URL), zap.Error(err))
		return result, nil
	}
	result.Title = meta.Title
	result.Description = meta.Description
	result.ImageURL = meta.ImageURL
	result.SiteName = meta.SiteName
	return result, nil
}

// ExtractLinks returns the distinct absolute links of a page.
func (s *Service) ExtractLinks(ctx context.Context, rawURL string, sameDomainOnly bool) (content.LinksResult, error) {
	resp, err := s.fetchOK(ctx, rawURL, content.FetchRequest{Timeout: s.cfg.FetchTimeout})
	if err != nil {
		return content.LinksResult{}, err
	}
	links, err := extract.Links(resp.Body, resp.URL, sameDomainOnly)
	if err != nil {
		return content.LinksResult{}, err
	}
	return content.LinksResult{URL: resp.URL, Links: links}, nil
}

// FetchFeed fetches and parses an RSS, Atom, or JSON feed.
func (s *Service) FetchFeed(ctx context.Context, rawURL string) (content.FeedResult, error) {
	resp, err := s.fetchOK(ctx, rawURL, content.FetchRequest{
		Timeout: s.cfg.FeedTimeout,
		Headers: http.Header{"Accept": {extract.FeedAccept}},
	})
	if err != nil {
		return content.FeedResult{}, err
	}
	return extract.Feed(resp.Body)
}

// FetchSitemap fetches a sitemap. When it is an index and expandIndex is set,
// up to MaxSitemapChildren children are fetched one after another and their
// URLs are returned as a single urlset. Failed children are recorded in
// Skipped rather than failing the call.
func (s *Service) FetchSitemap(ctx context.Context, rawURL string, expandIndex bool) (content.SitemapResult, error) {
	parent, err := s.fetchSitemap(ctx, rawURL)
	if err != nil {
		return content.SitemapResult{}, err
	}
	if parent.Kind != content.SitemapIndex || !expandIndex {
		return parent, nil
	}

	children := parent.Sitemaps
	if len(children) > MaxSitemapChildren {
		children = children[:MaxSitemapChildren]
	}
	flat := content.SitemapResult{Kind: content.SitemapURLSet, URLs: []content.SitemapURL{}}
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return content.SitemapResult{}, content.Classify(err, rawURL, s.cfg.SitemapTimeout)
		}
		res, err := s.fetchSitemap(ctx, child.Loc)
		if err == nil && res.Kind != content.SitemapURLSet {
			err = fmt.Errorf("nested sitemap index not expanded")
		}
		if err != nil {
			s.logger.Warn("skipping child sitemap",
				zap.String("url", child.Loc),
				zap.String("parent", rawURL),
				zap.Error(err),
			)
			flat.Skipped = append(flat.Skipped, content.SkippedSitemap{Loc: child.Loc, Error: err.Error()})
			continue
		}
		flat.URLs = append(flat.URLs, res.URLs...)
	}
	return flat, nil
}

// BatchFetch runs FetchURL for each URL with bounded concurrency. Failures
// are reported per item; results keep input order.
func (s *Service) BatchFetch(ctx context.Context, urls []string) ([]content.BatchItem, error) {
	if len(urls) == 0 || len(urls) > MaxBatchURLs {
		return nil, content.Validation("urls must contain between 1 and %d entries", MaxBatchURLs)
	}
	items := make([]content.BatchItem, len(urls))
	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			items[i].URL = u
			res, err := s.FetchURL(ctx, u)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Result = &res
			return nil
		})
	}
	_ = g.Wait()
	return items, nil
}

func (s *Service) fetchSitemap(ctx context.Context, rawURL string) (content.SitemapResult, error) {
	resp, err := s.fetchOK(ctx, rawURL, content.FetchRequest{
		Timeout: s.cfg.SitemapTimeout,
		Headers: http.Header{"Accept": {sitemapAccept}},
	})
	if err != nil {
		return content.SitemapResult{}, err
	}
	return extract.Sitemap(resp.Body)
}

// fetch validates rawURL, takes a fetch token, and performs the request
// following a single HTTP 300. The follow-up request takes its own token.
func (s *Service) fetch(ctx context.Context, rawURL string, req content.FetchRequest) (content.FetchResponse, error) {
	normalized, err := content.NormalizeURL(rawURL)
	if err != nil {
		return content.FetchResponse{}, err
	}
	if err := s.limiter.Acquire(ctx, content.ClassFetch); err != nil {
		return content.FetchResponse{}, content.Classify(err, normalized, req.Timeout)
	}
	req.URL = normalized
	req.BeforeFollow = func(ctx context.Context, _ string) error {
		return s.limiter.Acquire(ctx, content.ClassFetch)
	}
	resp, err := s.fetcher.FetchFollowing300(ctx, req)
	if err != nil {
		return content.FetchResponse{}, content.Classify(err, normalized, req.Timeout)
	}
	if resp.URL == "" {
		resp.URL = normalized
	}
	return resp, nil
}

// fetchOK is fetch with non-2xx statuses turned into upstream errors.
func (s *Service) fetchOK(ctx context.Context, rawURL string, req content.FetchRequest) (content.FetchResponse, error) {
	resp, err := s.fetch(ctx, rawURL, req)
	if err != nil {
		return content.FetchResponse{}, err
	}
	if !isSuccess(resp.StatusCode) {
		return content.FetchResponse{}, content.UpstreamStatus(resp.StatusCode, resp.URL)
	}
	return resp, nil
}

// normalize dispatches on content type. The extraction is returned for HTML
// responses only.
func (s *Service) normalize(resp content.FetchResponse) (content.FetchResult, *extract.TextExtraction) {
	mediaType := mediaTypeOf(resp.ContentType())
	fallbackTitle := content.LastPathSegment(resp.URL)
	if fallbackTitle == "" {
		fallbackTitle = resp.URL
	}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		extraction, err := extract.Text(resp.Body, resp.URL)
		if err != nil {
			s.logger.Debug("html extraction failed", zap.String("url", resp.URL), zap.Error(err))
			return content.FetchResult{
				URL:         resp.URL,
				Title:       content.Truncate(fallbackTitle, content.MaxTitleChars),
				TextContent: fmt.Sprintf("Could not extract text from %s: %v", resp.URL, err),
			}, nil
		}
		return content.FetchResult{
			URL:         resp.URL,
			Title:       extraction.Title,
			Content:     content.Truncate(extraction.ContentHTML, content.MaxTextChars),
			TextContent: extraction.Text,
		}, &extraction
	case mediaType == "text/plain":
		text := content.Truncate(string(resp.Body), content.MaxTextChars)
		return content.FetchResult{
			URL:         resp.URL,
			Title:       content.Truncate(fallbackTitle, content.MaxTitleChars),
			Content:     text,
			TextContent: text,
		}, nil
	default:
		label := mediaType
		if label == "" {
			label = "unknown"
		}
		return content.FetchResult{
			URL:   resp.URL,
			Title: content.Truncate(fallbackTitle, content.MaxTitleChars),
			TextContent: fmt.Sprintf(
				"Unsupported content type: %s. Only HTML and plain text pages can be converted to text (%d bytes received from %s).",
				label, len(resp.Body), resp.URL),
		}, nil
	}
}

func mediaTypeOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
