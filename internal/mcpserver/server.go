// Package mcpserver exposes the tool registry over the Model Context Protocol.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/JakeFAU/webtools/internal/content"
	"github.com/JakeFAU/webtools/internal/tools"
)

// Implementation identifies this server during the MCP handshake.
var Implementation = &mcp.Implementation{
	Name:    "webtools",
	Version: "1.0.0",
}

// New returns an MCP server with every registry tool added.
func New(registry *tools.Registry, logger *zap.Logger) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mcp")
	server := mcp.NewServer(Implementation, nil)
	for _, t := range registry.Tools() {
		server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, handler(registry, t.Name, logger))
	}
	logger.Debug("mcp tools registered", zap.Int("count", len(registry.Tools())))
	return server
}

// HTTPHandler serves server over the streamable HTTP transport.
func HTTPHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

// RunStdio serves server on stdin/stdout until ctx is canceled or the
// client disconnects.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

func handler(registry *tools.Registry, name string, logger *zap.Logger) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		out, err := registry.Call(ctx, name, args)
		if err != nil {
			logger.Debug("tool error", zap.String("tool", name), zap.Error(err))
			return ErrorResult(err), nil
		}
		text, err := render(out)
		if err != nil {
			return ErrorResult(err), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, nil
	}
}

// ErrorResult converts err into a tool-level failure the client can read.
func ErrorResult(err error) *mcp.CallToolResult {
	text := fmt.Sprintf("[%s] %s", content.KindOf(err), err.Error())
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

// render returns strings verbatim and everything else as indented JSON.
func render(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}
