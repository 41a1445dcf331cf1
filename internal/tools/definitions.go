package tools

import (
	"context"
	"encoding/json"

	"github.com/JakeFAU/webtools/internal/content"
	"github.com/JakeFAU/webtools/internal/search"
)

type urlArgs struct {
	URL string `json:"url"`
}

type linksArgs struct {
	URL            string `json:"url"`
	SameDomainOnly bool   `json:"same_domain_only"`
}

type sitemapArgs struct {
	URL         string `json:"url"`
	ExpandIndex bool   `json:"expand_index"`
}

type batchArgs struct {
	URLs []string `json:"urls"`
}

type searchFetchArgs struct {
	search.Params
	FetchCount int `json:"fetch_count,omitempty"`
}

var urlProperty = map[string]any{
	"type":        "string",
	"description": "Page URL. A missing scheme defaults to https.",
}

func registerAcquire(r *Registry, acq Acquirer) {
	urlTool := func(name, description string, run func(context.Context, string) (any, error)) Tool {
		return Tool{
			Name:        name,
			Description: description,
			InputSchema: objectSchema(map[string]any{"url": urlProperty}, "url"),
			Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
				args, err := decode[urlArgs](raw)
				if err != nil {
					return nil, err
				}
				if err := requireString("url", args.URL); err != nil {
					return nil, err
				}
				return run(ctx, args.URL)
			},
		}
	}

	r.Register(urlTool("fetch_content",
		"Fetch a web page and return its main readable text.",
		func(ctx context.Context, u string) (any, error) { return acq.FetchContent(ctx, u) }))
	r.Register(urlTool("fetch_url",
		"Fetch a web page and return its final URL, title, main content HTML, and readable text.",
		func(ctx context.Context, u string) (any, error) { return acq.FetchURL(ctx, u) }))
	r.Register(urlTool("fetch_content_as_markdown",
		"Fetch a web page and return its main content as Markdown.",
		func(ctx context.Context, u string) (any, error) { return acq.FetchURLAsMarkdown(ctx, u) }))
	r.Register(urlTool("fetch_metadata",
		"Fetch the status, content type, and Open Graph or meta tags of a page.",
		func(ctx context.Context, u string) (any, error) { return acq.FetchMetadata(ctx, u) }))
	r.Register(urlTool("fetch_feed",
		"Fetch and parse an RSS, Atom, or JSON feed.",
		func(ctx context.Context, u string) (any, error) { return acq.FetchFeed(ctx, u) }))

	r.Register(Tool{
		Name:        "extract_links",
		Description: "List the distinct absolute links of a page, optionally restricted to its own origin.",
		InputSchema: objectSchema(map[string]any{
			"url": urlProperty,
			"same_domain_only": map[string]any{
				"type":        "boolean",
				"description": "Only return links on the page's own scheme and host.",
			},
		}, "url"),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := decode[linksArgs](raw)
			if err != nil {
				return nil, err
			}
			if err := requireString("url", args.URL); err != nil {
				return nil, err
			}
			return acq.ExtractLinks(ctx, args.URL, args.SameDomainOnly)
		},
	})

	r.Register(Tool{
		Name:        "fetch_sitemap",
		Description: "Parse a sitemap or sitemap index. With expand_index, up to 10 child sitemaps are fetched and flattened.",
		InputSchema: objectSchema(map[string]any{
			"url": urlProperty,
			"expand_index": map[string]any{
				"type":        "boolean",
				"description": "Expand a sitemap index into a single list of page URLs.",
			},
		}, "url"),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := decode[sitemapArgs](raw)
			if err != nil {
				return nil, err
			}
			if err := requireString("url", args.URL); err != nil {
				return nil, err
			}
			return acq.FetchSitemap(ctx, args.URL, args.ExpandIndex)
		},
	})

	r.Register(Tool{
		Name:        "batch_fetch",
		Description: "Fetch 1 to 10 pages concurrently. Each URL reports its own result or error.",
		InputSchema: objectSchema(map[string]any{
			"urls": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
				"maxItems": 10,
			},
		}, "urls"),
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := decode[batchArgs](raw)
			if err != nil {
				return nil, err
			}
			items, err := acq.BatchFetch(ctx, args.URLs)
			if err != nil {
				return nil, err
			}
			return BatchResult{Results: items}, nil
		},
	})
}

// BatchResult is the batch_fetch result.
type BatchResult struct {
	Results []content.BatchItem `json:"results"`
}

func registerSearch(r *Registry, srch Searcher) {
	searchSchema := objectSchema(searchProperties(false), "query")
	fetchSchema := objectSchema(searchProperties(true), "query")

	r.Register(Tool{
		Name:        "search",
		Description: "Search the web through a SearXNG instance and return normalized results.",
		InputSchema: searchSchema,
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			params, err := decode[search.Params](raw)
			if err != nil {
				return nil, err
			}
			return srch.Search(ctx, params)
		},
	})
	r.Register(Tool{
		Name:        "search_formatted",
		Description: "Search the web through a SearXNG instance and return a numbered plain-text list.",
		InputSchema: searchSchema,
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			params, err := decode[search.Params](raw)
			if err != nil {
				return nil, err
			}
			return srch.SearchFormatted(ctx, params)
		},
	})
	r.Register(Tool{
		Name:        "search_then_fetch",
		Description: "Search, then fetch the readable text of the top results (default 3, at most 5).",
		InputSchema: fetchSchema,
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := decode[searchFetchArgs](raw)
			if err != nil {
				return nil, err
			}
			return srch.SearchThenFetch(ctx, args.Params, args.FetchCount)
		},
	})
	r.Register(Tool{
		Name:        "search_then_fetch_formatted",
		Description: "Search, then fetch the top results and render them as plain text.",
		InputSchema: fetchSchema,
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			args, err := decode[searchFetchArgs](raw)
			if err != nil {
				return nil, err
			}
			return srch.SearchThenFetchFormatted(ctx, args.Params, args.FetchCount)
		},
	})
}

func searchProperties(withFetchCount bool) map[string]any {
	props := map[string]any{
		"searxng_base_url": map[string]any{
			"type":        "string",
			"description": "Base URL of the SearXNG instance. Falls back to the configured default.",
		},
		"query":      map[string]any{"type": "string", "description": "Search query."},
		"format":     map[string]any{"type": "string", "enum": []string{"json", "rss"}},
		"categories": map[string]any{"type": "string", "description": "Comma-separated SearXNG categories."},
		"language":   map[string]any{"type": "string"},
		"pageno":     map[string]any{"type": "integer", "minimum": 1},
		"time_range": map[string]any{"type": "string", "enum": []string{"day", "week", "month", "year"}},
		"safesearch": map[string]any{"type": "integer", "minimum": 0, "maximum": 2},
		"max_results": map[string]any{
			"type":    "integer",
			"minimum": 1,
			"maximum": search.MaxMaxResults,
			"default": search.DefaultMaxResults,
		},
	}
	if withFetchCount {
		delete(props, "max_results")
		props["fetch_count"] = map[string]any{
			"type":    "integer",
			"minimum": 1,
			"maximum": search.MaxFetchCount,
			"default": search.DefaultFetchCount,
		}
	}
	return props
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
