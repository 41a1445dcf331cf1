// Package api hosts the HTTP server, middleware, and REST handlers for the
// tool registry. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/tools lists the registered tools and their argument schemas.
//   - POST /v1/tools/{name} runs a tool with the JSON request body as arguments.
//   - /mcp serves the same tools over the MCP streamable HTTP transport.
package api
