package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webtools/internal/content"
	"github.com/JakeFAU/webtools/internal/search"
)

type stubAcquirer struct {
	lastURL    string
	sameDomain bool
	expand     bool
	batch      []string
	err        error
}

func (s *stubAcquirer) FetchContent(_ context.Context, rawURL string) (string, error) {
	s.lastURL = rawURL
	return "text of " + rawURL, s.err
}

func (s *stubAcquirer) FetchURL(_ context.Context, rawURL string) (content.FetchResult, error) {
	s.lastURL = rawURL
	return content.FetchResult{URL: rawURL, Title: "T"}, s.err
}

func (s *stubAcquirer) FetchURLAsMarkdown(_ context.Context, rawURL string) (content.FetchResult, error) {
	s.lastURL = rawURL
	return content.FetchResult{URL: rawURL, TextContent: "# T"}, s.err
}

func (s *stubAcquirer) FetchMetadata(_ context.Context, rawURL string) (content.MetadataResult, error) {
	s.lastURL = rawURL
	return content.MetadataResult{FinalURL: rawURL}, s.err
}

func (s *stubAcquirer) FetchFeed(_ context.Context, rawURL string) (content.FeedResult, error) {
	s.lastURL = rawURL
	return content.FeedResult{}, s.err
}

func (s *stubAcquirer) ExtractLinks(_ context.Context, rawURL string, sameDomainOnly bool) (content.LinksResult, error) {
	s.lastURL = rawURL
	s.sameDomain = sameDomainOnly
	return content.LinksResult{}, s.err
}

func (s *stubAcquirer) FetchSitemap(_ context.Context, rawURL string, expandIndex bool) (content.SitemapResult, error) {
	s.lastURL = rawURL
	s.expand = expandIndex
	return content.SitemapResult{}, s.err
}

func (s *stubAcquirer) BatchFetch(_ context.Context, urls []string) ([]content.BatchItem, error) {
	s.batch = urls
	if len(urls) == 0 {
		return nil, content.Validation("urls must contain between 1 and 10 entries")
	}
	return []content.BatchItem{{URL: urls[0]}}, s.err
}

type stubSearcher struct {
	params     search.Params
	fetchCount int
}

func (s *stubSearcher) Search(_ context.Context, params search.Params) (content.SearchResponse, error) {
	s.params = params
	return content.SearchResponse{Query: params.Query}, nil
}

func (s *stubSearcher) SearchFormatted(_ context.Context, params search.Params) (string, error) {
	s.params = params
	return "1. result", nil
}

func (s *stubSearcher) SearchThenFetch(_ context.Context, params search.Params, fetchCount int) (content.SearchFetchResponse, error) {
	s.params = params
	s.fetchCount = fetchCount
	return content.SearchFetchResponse{Query: params.Query}, nil
}

func (s *stubSearcher) SearchThenFetchFormatted(_ context.Context, params search.Params, fetchCount int) (string, error) {
	s.params = params
	s.fetchCount = fetchCount
	return "fetched", nil
}

type stubLimiter struct{ content.Limiter }

func (stubLimiter) Status() []content.ClassStatus {
	return []content.ClassStatus{{Class: "fetch", Capacity: 10, Remaining: 10}}
}

func newTestRegistry() (*Registry, *stubAcquirer, *stubSearcher) {
	acq := &stubAcquirer{}
	srch := &stubSearcher{}
	return New(acq, srch, stubLimiter{}, nil), acq, srch
}

func TestRegistryListsEveryTool(t *testing.T) {
	r, _, _ := newTestRegistry()
	var names []string
	for _, info := range r.List() {
		names = append(names, info.Name)
		assert.NotEmpty(t, info.Description, info.Name)
		assert.Equal(t, "object", info.InputSchema["type"], info.Name)
	}
	assert.Equal(t, []string{
		"batch_fetch",
		"extract_links",
		"fetch_content",
		"fetch_content_as_markdown",
		"fetch_feed",
		"fetch_metadata",
		"fetch_sitemap",
		"fetch_url",
		"get_rate_limit_status",
		"search",
		"search_formatted",
		"search_then_fetch",
		"search_then_fetch_formatted",
	}, names)
}

func TestCallUnknownTool(t *testing.T) {
	r, _, _ := newTestRegistry()
	_, err := r.Call(context.Background(), "nope", nil)
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestCallURLTools(t *testing.T) {
	r, acq, _ := newTestRegistry()
	for _, name := range []string{"fetch_content", "fetch_url", "fetch_content_as_markdown", "fetch_metadata", "fetch_feed"} {
		t.Run(name, func(t *testing.T) {
			acq.lastURL = ""
			_, err := r.Call(context.Background(), name, json.RawMessage(`{"url":"example.com/a"}`))
			require.NoError(t, err)
			assert.Equal(t, "example.com/a", acq.lastURL)
		})
	}
}

func TestCallRequiresURL(t *testing.T) {
	r, acq, _ := newTestRegistry()
	for _, args := range []string{``, `null`, `{}`, `{"url":"  "}`} {
		_, err := r.Call(context.Background(), "fetch_url", json.RawMessage(args))
		require.Error(t, err, args)
		assert.Equal(t, content.KindValidation, content.KindOf(err), args)
	}
	assert.Empty(t, acq.lastURL)
}

func TestCallRejectsMalformedArguments(t *testing.T) {
	r, _, _ := newTestRegistry()
	_, err := r.Call(context.Background(), "fetch_url", json.RawMessage(`{"url":`))
	require.Error(t, err)
	assert.Equal(t, content.KindValidation, content.KindOf(err))
}

func TestCallPassesFlags(t *testing.T) {
	r, acq, _ := newTestRegistry()
	_, err := r.Call(context.Background(), "extract_links", json.RawMessage(`{"url":"https://a.test","same_domain_only":true}`))
	require.NoError(t, err)
	assert.True(t, acq.sameDomain)

	_, err = r.Call(context.Background(), "fetch_sitemap", json.RawMessage(`{"url":"https://a.test/sitemap.xml","expand_index":true}`))
	require.NoError(t, err)
	assert.True(t, acq.expand)
}

func TestCallBatchFetch(t *testing.T) {
	r, acq, _ := newTestRegistry()
	out, err := r.Call(context.Background(), "batch_fetch", json.RawMessage(`{"urls":["https://a.test","https://b.test"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, acq.batch)
	res, ok := out.(BatchResult)
	require.True(t, ok)
	assert.Len(t, res.Results, 1)

	_, err = r.Call(context.Background(), "batch_fetch", json.RawMessage(`{"urls":[]}`))
	assert.Equal(t, content.KindValidation, content.KindOf(err))
}

func TestCallPropagatesServiceErrors(t *testing.T) {
	r, acq, _ := newTestRegistry()
	acq.err = content.UpstreamStatus(404, "https://a.test")
	_, err := r.Call(context.Background(), "fetch_url", json.RawMessage(`{"url":"https://a.test"}`))
	require.Error(t, err)
	assert.Equal(t, content.KindUpstreamHTTP, content.KindOf(err))
}

func TestCallSearchTools(t *testing.T) {
	r, _, srch := newTestRegistry()

	out, err := r.Call(context.Background(), "search", json.RawMessage(`{"query":"go","max_results":5,"safesearch":1,"searxng_base_url":"http://sx"}`))
	require.NoError(t, err)
	assert.Equal(t, "go", out.(content.SearchResponse).Query)
	assert.Equal(t, 5, srch.params.MaxResults)
	require.NotNil(t, srch.params.SafeSearch)
	assert.Equal(t, 1, *srch.params.SafeSearch)
	assert.Equal(t, "http://sx", srch.params.BaseURL)

	out, err = r.Call(context.Background(), "search_formatted", json.RawMessage(`{"query":"go"}`))
	require.NoError(t, err)
	assert.Equal(t, "1. result", out)

	_, err = r.Call(context.Background(), "search_then_fetch", json.RawMessage(`{"query":"rust","fetch_count":2}`))
	require.NoError(t, err)
	assert.Equal(t, "rust", srch.params.Query)
	assert.Equal(t, 2, srch.fetchCount)

	out, err = r.Call(context.Background(), "search_then_fetch_formatted", json.RawMessage(`{"query":"zig"}`))
	require.NoError(t, err)
	assert.Equal(t, "fetched", out)
	assert.Equal(t, 0, srch.fetchCount)
}

func TestRateLimitStatusTool(t *testing.T) {
	r, _, _ := newTestRegistry()
	out, err := r.Call(context.Background(), "get_rate_limit_status", nil)
	require.NoError(t, err)
	status, ok := out.(RateLimitStatus)
	require.True(t, ok)
	require.Len(t, status.Classes, 1)
	assert.Equal(t, "fetch", status.Classes[0].Class)
}
