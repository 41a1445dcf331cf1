package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkdownUsesATXHeadingsAndAbsoluteLinks(t *testing.T) {
	t.Parallel()

	md, err := Markdown(`<h1>Title</h1><h2>Section</h2><p>See <a href="/docs">the docs</a>.</p>`, "https://example.com/page")
	require.NoError(t, err)
	require.Contains(t, md, "# Title")
	require.Contains(t, md, "## Section")
	require.Contains(t, md, "[the docs](https://example.com/docs)")
}

func TestMarkdownEmptyFragment(t *testing.T) {
	t.Parallel()

	md, err := Markdown("   ", "https://example.com")
	require.NoError(t, err)
	require.Empty(t, md)
}
