package search

import (
	"fmt"
	"strings"

	"github.com/JakeFAU/webtools/internal/content"
)

// FormatResults renders a search response as a numbered list.
func FormatResults(res content.SearchResponse) string {
	if len(res.Results) == 0 {
		return fmt.Sprintf("No results found for %q.", res.Query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q (%d):\n", res.Query, len(res.Results))
	for i, r := range res.Results {
		writeHit(&b, i+1, r)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatFetched renders search-then-fetch output, one section per result.
func FormatFetched(res content.SearchFetchResponse) string {
	if len(res.Items) == 0 {
		return fmt.Sprintf("No results found for %q.", res.Query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results with page content for %q (%d):\n", res.Query, len(res.Items))
	for i, item := range res.Items {
		writeHit(&b, i+1, item.Search)
		switch {
		case item.Error != "":
			fmt.Fprintf(&b, "   [Fetch failed: %s]\n", item.Error)
		case item.Page != nil:
			b.WriteString("   Content:\n")
			b.WriteString(item.Page.TextContent)
			b.WriteString("\n")
		}
		b.WriteString("\n---\n")
	}
	return strings.TrimRight(strings.TrimSuffix(strings.TrimRight(b.String(), "\n"), "---"), "\n")
}

func writeHit(b *strings.Builder, n int, r content.SearchResult) {
	fmt.Fprintf(b, "\n%d. %s\n   URL: %s\n", n, r.Title, r.URL)
	if r.Snippet != "" {
		fmt.Fprintf(b, "   %s\n", r.Snippet)
	}
	if r.Engine != "" {
		fmt.Fprintf(b, "   Engine: %s\n", r.Engine)
	}
}
