package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webtools/internal/content"
	"github.com/JakeFAU/webtools/internal/tools"
)

func newTestRegistry() *tools.Registry {
	r := tools.NewRegistry(nil)
	r.Register(tools.Tool{
		Name:        "echo",
		Description: "Echo the url argument.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"url": map[string]any{"type": "string"}},
			"required":   []string{"url"},
		},
		Handler: func(_ context.Context, raw json.RawMessage) (any, error) {
			var args struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, content.Validation("invalid arguments: %v", err)
			}
			if args.URL == "" {
				return nil, content.Validation("url is required")
			}
			return map[string]string{"url": args.URL}, nil
		},
	})
	r.Register(tools.Tool{
		Name:        "text",
		Description: "Return plain text.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return "hello", nil
		},
	})
	return r
}

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := New(newTestRegistry(), nil)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListTools(t *testing.T) {
	session := connect(t)
	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"echo", "text"}, names)
}

func TestCallToolReturnsJSON(t *testing.T) {
	session := connect(t)
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"url": "https://example.com"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"url":"https://example.com"}`, textOf(t, res))
}

func TestCallToolReturnsPlainText(t *testing.T) {
	session := connect(t)
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "text", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "hello", textOf(t, res))
}

func TestCallToolClassifiedErrorIsToolResult(t *testing.T) {
	session := connect(t)
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"url": ""},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "[validation]")
}

func TestErrorResult(t *testing.T) {
	res := ErrorResult(errors.New("boom"))
	assert.True(t, res.IsError)
	assert.Equal(t, "[internal] boom", res.Content[0].(*mcp.TextContent).Text)

	res = ErrorResult(content.RateLimited("Rate limit exceeded for search. Try again in 3 seconds."))
	assert.Equal(t, "[rate_limited] Rate limit exceeded for search. Try again in 3 seconds.", res.Content[0].(*mcp.TextContent).Text)
}
