package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/JakeFAU/webtools/internal/content"
)

// FeedAccept is the Accept header sent when requesting feeds.
const FeedAccept = "application/rss+xml, application/atom+xml, application/feed+json, " +
	"application/xml;q=0.9, text/xml;q=0.9, */*;q=0.8"

// Feed parses an RSS, Atom, or JSON feed into ordered entries. Entry
// summaries are flattened to text and fall back to the entry content.
func Feed(body []byte) (content.FeedResult, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return content.FeedResult{}, content.Parse("feed", err)
	}

	link := feed.Link
	if link == "" {
		link = feed.FeedLink
	}
	result := content.FeedResult{
		Title:       content.Truncate(collapseSpaces(feed.Title), content.MaxTitleChars),
		Link:        strings.TrimSpace(link),
		Description: content.Truncate(flattenHTML(feed.Description), content.MaxFeedDescChars),
		Entries:     make([]content.FeedEntry, 0, len(feed.Items)),
	}
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		result.Entries = append(result.Entries, normalizeItem(item))
	}
	return result, nil
}

func normalizeItem(item *gofeed.Item) content.FeedEntry {
	summary := flattenHTML(item.Description)
	if summary == "" {
		summary = flattenHTML(item.Content)
	}
	entry := content.FeedEntry{
		Title:   content.Truncate(collapseSpaces(item.Title), content.MaxTitleChars),
		Link:    strings.TrimSpace(item.Link),
		Summary: content.Truncate(summary, content.MaxFeedSummaryChars),
	}
	switch {
	case item.PublishedParsed != nil:
		entry.Date = item.PublishedParsed
	case item.UpdatedParsed != nil:
		entry.Date = item.UpdatedParsed
	}
	return entry
}

// flattenHTML reduces an HTML snippet to single-spaced text.
func flattenHTML(snippet string) string {
	snippet = strings.TrimSpace(snippet)
	if snippet == "" {
		return ""
	}
	if !strings.Contains(snippet, "<") {
		return collapseSpaces(snippet)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snippet))
	if err != nil {
		return collapseSpaces(snippet)
	}
	doc.Find("script, style").Remove()
	return collapseSpaces(doc.Text())
}
