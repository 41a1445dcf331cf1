// Package extract turns raw response bodies into normalized content shapes:
// readable text, Markdown, page metadata, links, feeds, and sitemaps.
//
// Every function here is pure. Callers own fetching and rate limiting.
package extract
