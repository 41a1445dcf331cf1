package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webtools/internal/content"
)

func TestTextStripsScriptsAndStyles(t *testing.T) {
	t.Parallel()

	body := []byte(`<script>malicious()</script><style>p{color:red}</style><p>Hello world is long enough</p>`)
	got, err := Text(body, "https://example.com/page")
	require.NoError(t, err)
	require.Contains(t, got.Text, "Hello world is long enough")
	require.NotContains(t, got.Text, "malicious()")
	require.NotContains(t, got.Text, "color:red")
}

func TestTextStripsNoiseAndComments(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head><title>Page</title></head><body>
		<nav>Home About</nav>
		<div class="sidebar-ad">Buy things now</div>
		<div id="sponsored">Sponsored content here</div>
		<!-- hidden comment text -->
		<div class="header-wrap"><p>Header wrap is kept</p></div>
		<p>Body paragraph stays</p>
		<footer>Copyright notice</footer>
	</body></html>`)
	got, err := Text(body, "https://example.com")
	require.NoError(t, err)
	require.Contains(t, got.Text, "Body paragraph stays")
	require.Contains(t, got.Text, "Header wrap is kept")
	for _, gone := range []string{"Home About", "Buy things now", "Sponsored content", "hidden comment", "Copyright"} {
		require.NotContains(t, got.Text, gone)
	}
}

func TestTextTitleCascade(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		html string
		url  string
		want string
	}{
		{"title tag", `<title> Doc  Title </title><h1>Heading</h1>`, "https://e.com/x", "Doc Title"},
		{"h1", `<body><h1>Heading</h1></body>`, "https://e.com/x", "Heading"},
		{"og", `<head><meta property="og:title" content="OG Title"></head>`, "https://e.com/x", "OG Title"},
		{"twitter", `<head><meta name="twitter:title" content="TW Title"></head>`, "https://e.com/x", "TW Title"},
		{"path segment", `<p>nothing</p>`, "https://e.com/blog/my-post/", "my-post"},
		{"url", `<p>nothing</p>`, "https://e.com", "https://e.com"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Text([]byte(tc.html), tc.url)
			require.NoError(t, err)
			require.Equal(t, tc.want, got.Title)
		})
	}
}

func TestTextTitleIsTruncated(t *testing.T) {
	t.Parallel()

	got, err := Text([]byte("<title>"+strings.Repeat("t", 900)+"</title>"), "https://e.com")
	require.NoError(t, err)
	require.Equal(t, content.MaxTitleChars, utf8.RuneCountInString(got.Title))
}

func TestTextContentRootCascade(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		html    string
		want    string
		notWant string
	}{
		{
			name:    "main element",
			html:    `<body><div>Outside main text</div><main><p>Inside main text</p></main></body>`,
			want:    "Inside main text",
			notWant: "Outside main text",
		},
		{
			name:    "role main",
			html:    `<body><div>Outside role text</div><div role="main"><p>Inside role text</p></div></body>`,
			want:    "Inside role text",
			notWant: "Outside role text",
		},
		{
			name:    "content class",
			html:    `<body><div>Outside class text</div><div class="post-content"><p>Inside class text</p></div></body>`,
			want:    "Inside class text",
			notWant: "Outside class text",
		},
		{
			name: "body fallback",
			html: `<body><div>Whole body text</div></body>`,
			want: "Whole body text",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Text([]byte(tc.html), "https://e.com")
			require.NoError(t, err)
			require.Contains(t, got.Text, tc.want)
			require.Contains(t, got.ContentHTML, tc.want)
			if tc.notWant != "" {
				require.NotContains(t, got.Text, tc.notWant)
			}
		})
	}
}

func TestTextSeparatesBlocks(t *testing.T) {
	t.Parallel()

	got, err := Text([]byte(`<main><h2>First heading</h2><p>First para</p><p>Second para<br>next line</p></main>`), "https://e.com")
	require.NoError(t, err)
	require.Equal(t, "First heading\nFirst para\nSecond para\nnext line", got.Text)
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	in := "  Real first line  \nab\nMenu\nPRIVACY\n\n\n\n\nSecond paragraph\nsearch results are here\n"
	require.Equal(t, "Real first line\nSecond paragraph\nsearch results are here", CleanText(in))
	require.Equal(t, "First paragraph line\nSecond paragraph line", CleanText("First paragraph line\n\nSecond paragraph line"))
	require.NotContains(t, CleanText("one line here\n\n\n\ntwo line here\r\n\r\nthree"), "\n\n")
}

func TestCleanTextIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Already clean text.\n\nWith two paragraphs.",
		"x\n\n\n\nmenu\n  spaced line  \n\n\n\nend line",
		"",
	}
	for _, in := range inputs {
		once := CleanText(in)
		require.Equal(t, once, CleanText(once))
	}
}

func TestTruncateTextPrefersSentenceBoundary(t *testing.T) {
	t.Parallel()

	sentence := "This is a sentence. "
	text := strings.Repeat(sentence, 3000)
	got := TruncateText(text, content.MaxTextChars)

	require.True(t, strings.HasSuffix(got, content.TruncationMarker))
	head := strings.TrimSuffix(got, content.TruncationMarker)
	require.True(t, strings.HasSuffix(head, "."))
	require.Greater(t, utf8.RuneCountInString(head), 40000)
	require.LessOrEqual(t, utf8.RuneCountInString(got), content.MaxTextChars+utf8.RuneCountInString(content.TruncationMarker))
}

func TestTruncateTextCutsAtLineBreak(t *testing.T) {
	t.Parallel()

	line := strings.Repeat("w", 99) + "\n"
	text := strings.Repeat(line, 600)
	got := TruncateText(text, content.MaxTextChars)

	head := strings.TrimSuffix(got, content.TruncationMarker)
	require.NotEqual(t, got, head)
	require.Equal(t, 99, utf8.RuneCountInString(head)%100)
	require.Greater(t, utf8.RuneCountInString(head), 40000)
}

func TestTruncateTextHardCutWithoutBoundary(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a", 60000)
	got := TruncateText(text, content.MaxTextChars)
	require.Equal(t, strings.Repeat("a", content.MaxTextChars)+content.TruncationMarker, got)
}

func TestTruncateTextLeavesShortText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short. text", TruncateText("short. text", content.MaxTextChars))
}

func TestTextLongDocumentEndsWithMarker(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("<main>")
	for range 2000 {
		b.WriteString("<p>Paragraph with enough words to count as content</p>")
	}
	b.WriteString("</main>")
	got, err := Text([]byte(b.String()), "https://e.com")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(got.Text, content.TruncationMarker))
	require.LessOrEqual(t, utf8.RuneCountInString(got.Text), content.MaxTextChars+utf8.RuneCountInString(content.TruncationMarker))
}
