// Package main hosts the webtools service entrypoint.
//
// Architecture overview:
//   - Tools: internal/tools registers the named operations (fetch_url, fetch_feed, search, ...) with typed,
//     validated arguments. Both surfaces below dispatch through the same registry.
//   - HTTP API: internal/api.Server exposes health, metrics, GET /v1/tools, and POST /v1/tools/{name}. Classified
//     errors map to HTTP statuses (400, 429 with Retry-After, 502, 504).
//   - MCP: internal/mcpserver exposes the registry over streamable HTTP at /mcp, or over stdio with
//     --transport stdio. In stdio mode all logs go to stderr.
//   - Fetch pipeline: every outbound call takes a token from the shared limiter (fetch class waits, search class
//     fails fast), then runs through the Colly-based fetcher with a per-operation timeout and body cap. An HTTP 300
//     is followed once through its Location header; there are no retries.
//   - Parsing: internal/extract turns bodies into readable text, Markdown, page metadata, links, feed entries, or
//     sitemap entries. All returned strings are length-bounded.
//
// Quick checklist:
//   - Configure env vars: WEBTOOLS_SERVER_PORT, WEBTOOLS_SEARCH_DEFAULT_BASE_URL, WEBTOOLS_RATELIMIT_FETCH_MAX_REQUESTS,
//     WEBTOOLS_HTTP_USER_AGENT, WEBTOOLS_LOGGING_FILE, ... (a .env file in the working directory is loaded first).
//   - Run locally: go run ./cmd/webtools --config config.yaml (or rely solely on env overrides).
//   - MCP clients that spawn processes: webtools --transport stdio.
package main
