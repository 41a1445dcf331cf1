// Package tools is the dispatcher core: a registry of named operations with
// typed parameters, shared by the HTTP and MCP surfaces.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/webtools/internal/content"
	"github.com/JakeFAU/webtools/internal/metrics"
	"github.com/JakeFAU/webtools/internal/search"
)

// ErrUnknownTool is returned by Call for names that are not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Acquirer is the content acquisition surface the registry exposes.
type Acquirer interface {
	FetchContent(ctx context.Context, rawURL string) (string, error)
	FetchURL(ctx context.Context, rawURL string) (content.FetchResult, error)
	FetchURLAsMarkdown(ctx context.Context, rawURL string) (content.FetchResult, error)
	FetchMetadata(ctx context.Context, rawURL string) (content.MetadataResult, error)
	FetchFeed(ctx context.Context, rawURL string) (content.FeedResult, error)
	ExtractLinks(ctx context.Context, rawURL string, sameDomainOnly bool) (content.LinksResult, error)
	FetchSitemap(ctx context.Context, rawURL string, expandIndex bool) (content.SitemapResult, error)
	BatchFetch(ctx context.Context, urls []string) ([]content.BatchItem, error)
}

// Searcher is the search surface the registry exposes.
type Searcher interface {
	Search(ctx context.Context, params search.Params) (content.SearchResponse, error)
	SearchFormatted(ctx context.Context, params search.Params) (string, error)
	SearchThenFetch(ctx context.Context, params search.Params, fetchCount int) (content.SearchFetchResponse, error)
	SearchThenFetchFormatted(ctx context.Context, params search.Params, fetchCount int) (string, error)
}

// Handler runs a tool against raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is one registered operation.
type Tool struct {
	Name        string
	Description string
	// InputSchema is a JSON Schema object describing the arguments.
	InputSchema map[string]any
	Handler     Handler
}

// Info is the public listing of a tool.
type Info struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Registry holds the tools by name.
type Registry struct {
	tools  map[string]Tool
	logger *zap.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{tools: make(map[string]Tool), logger: logger.Named("tools")}
}

// New returns a registry with every webtools operation registered.
func New(acq Acquirer, srch Searcher, limiter content.Limiter, logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	registerAcquire(r, acq)
	registerSearch(r, srch)
	r.Register(Tool{
		Name:        "get_rate_limit_status",
		Description: "Report capacity and remaining tokens for every rate-limit class without consuming any.",
		InputSchema: objectSchema(nil),
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return RateLimitStatus{Classes: limiter.Status()}, nil
		},
	})
	return r
}

// RateLimitStatus is the get_rate_limit_status result.
type RateLimitStatus struct {
	Classes []content.ClassStatus `json:"classes"`
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name] = t
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// List returns the public description of every tool, sorted by name.
func (r *Registry) List() []Info {
	tools := r.Tools()
	out := make([]Info, 0, len(tools))
	for _, t := range tools {
		out = append(out, Info{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	return out
}

// Call decodes args for the named tool and runs it. Errors are classified
// (see content.KindOf) or ErrUnknownTool.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		metrics.ObserveToolCall("unknown", "not_found")
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	start := time.Now()
	result, err := t.Handler(ctx, args)
	outcome := "ok"
	if err != nil {
		outcome = string(content.KindOf(err))
	}
	metrics.ObserveToolCall(name, outcome)
	r.logger.Debug("tool call",
		zap.String("tool", name),
		zap.String("outcome", outcome),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// decode unmarshals args into T. Empty args decode as an empty object.
func decode[T any](args json.RawMessage) (T, error) {
	var v T
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return v, content.Validation("invalid arguments: %v", err)
	}
	return v, nil
}

func requireString(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return content.Validation("%s is required", field)
	}
	return nil
}
