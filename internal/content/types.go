package content

import "time"

// Truncation limits applied to every string handed back to callers.
const (
	MaxTitleChars         = 500
	MaxTextChars          = 50000
	MaxLinkTextChars      = 200
	MaxFeedSummaryChars   = 2000
	MaxFeedDescChars      = 2000
	MaxDescriptionChars   = 2000
	MaxSearchTitleChars   = 500
	MaxSearchSnippetChars = 500
	TruncationMarker      = "\n\n[Content truncated...]"
)

// FetchResult is the normalized form of a fetched page.
type FetchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	TextContent string `json:"text_content"`
}

// MetadataResult carries response metadata plus optional page metadata.
// Title, Description, ImageURL, and SiteName are only set for successful HTML.
type MetadataResult struct {
	FinalURL    string `json:"final_url"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// FeedEntry is one item of an RSS or Atom feed, in document order.
type FeedEntry struct {
	Title   string     `json:"title"`
	Link    string     `json:"link"`
	Summary string     `json:"summary"`
	Date    *time.Time `json:"date,omitempty"`
}

// FeedResult is a normalized RSS/Atom feed.
type FeedResult struct {
	Title       string      `json:"title"`
	Link        string      `json:"link"`
	Description string      `json:"description,omitempty"`
	Entries     []FeedEntry `json:"entries"`
}

// SitemapKind discriminates the SitemapResult variants.
type SitemapKind string

// Sitemap variants.
const (
	SitemapURLSet SitemapKind = "urlset"
	SitemapIndex  SitemapKind = "sitemapindex"
)

// SitemapURL is a page entry of a urlset.
type SitemapURL struct {
	Loc        string `json:"loc"`
	LastMod    string `json:"lastmod,omitempty"`
	ChangeFreq string `json:"changefreq,omitempty"`
	Priority   string `json:"priority,omitempty"`
}

// SitemapRef points at a child sitemap of a sitemap index.
type SitemapRef struct {
	Loc     string `json:"loc"`
	LastMod string `json:"lastmod,omitempty"`
}

// SkippedSitemap records a child sitemap that could not be expanded.
type SkippedSitemap struct {
	Loc   string `json:"loc"`
	Error string `json:"error"`
}

// SitemapResult is a tagged union: URLs is populated for SitemapURLSet and
// Sitemaps for SitemapIndex, never both.
type SitemapResult struct {
	Kind     SitemapKind      `json:"type"`
	URLs     []SitemapURL     `json:"urls,omitempty"`
	Sitemaps []SitemapRef     `json:"sitemaps,omitempty"`
	Skipped  []SkippedSitemap `json:"skipped,omitempty"`
}

// ExtractedLink is an absolute, page-unique anchor target.
type ExtractedLink struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// LinksResult is the output of link extraction for one page.
type LinksResult struct {
	URL   string          `json:"url"`
	Links []ExtractedLink `json:"links"`
}

// BatchItem is the per-URL outcome of a batch fetch.
type BatchItem struct {
	URL    string       `json:"url"`
	Result *FetchResult `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// SearchResult is one normalized search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Engine  string `json:"engine,omitempty"`
}

// SearchResponse wraps the normalized results of one query.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// SearchFetchItem pairs a search hit with the fetched page or a failure marker.
type SearchFetchItem struct {
	Search SearchResult `json:"search"`
	Page   *FetchResult `json:"page,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// SearchFetchResponse is the output of a search-then-fetch run.
type SearchFetchResponse struct {
	Query string            `json:"query"`
	Items []SearchFetchItem `json:"items"`
}

// ClassStatus is a read-only snapshot of one rate-limit class.
type ClassStatus struct {
	Class           string  `json:"class"`
	Capacity        int     `json:"capacity"`
	Remaining       int     `json:"remaining"`
	WindowMs        int64   `json:"window_ms"`
	RefillPerSecond float64 `json:"refill_per_second"`
}
