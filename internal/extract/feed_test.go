package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webtools/internal/content"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://example.com</link>
    <description>News from example</description>
    <item>
      <title>First post</title>
      <link>https://example.com/1</link>
      <description><![CDATA[<p>Hello <b>world</b></p>]]></description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>Second post</title>
      <link>https://example.com/2</link>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <link href="https://atom.example.com/"/>
  <entry>
    <title>Atom entry</title>
    <link href="https://atom.example.com/e1"/>
    <updated>2024-05-01T10:00:00Z</updated>
    <content type="html">&lt;p&gt;Body only in content&lt;/p&gt;</content>
  </entry>
</feed>`

func TestFeedRSS(t *testing.T) {
	t.Parallel()

	feed, err := Feed([]byte(rssFixture))
	require.NoError(t, err)
	require.Equal(t, "Example Feed", feed.Title)
	require.Equal(t, "https://example.com", feed.Link)
	require.Equal(t, "News from example", feed.Description)
	require.Len(t, feed.Entries, 2)

	first := feed.Entries[0]
	require.Equal(t, "First post", first.Title)
	require.Equal(t, "https://example.com/1", first.Link)
	require.Equal(t, "Hello world", first.Summary)
	require.NotNil(t, first.Date)
	require.Equal(t, 2006, first.Date.Year())

	second := feed.Entries[1]
	require.Equal(t, "Second post", second.Title)
	require.Empty(t, second.Summary)
	require.Nil(t, second.Date)
}

func TestFeedAtomUsesContentAndUpdated(t *testing.T) {
	t.Parallel()

	feed, err := Feed([]byte(atomFixture))
	require.NoError(t, err)
	require.Equal(t, "Atom Feed", feed.Title)
	require.Len(t, feed.Entries, 1)
	require.Equal(t, "Body only in content", feed.Entries[0].Summary)
	require.NotNil(t, feed.Entries[0].Date)
	require.Equal(t, 2024, feed.Entries[0].Date.Year())
}

func TestFeedTruncatesFields(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("s", 5000)
	body := `<rss version="2.0"><channel><title>T</title><item><title>` + strings.Repeat("t", 800) +
		`</title><description>` + long + `</description></item></channel></rss>`
	feed, err := Feed([]byte(body))
	require.NoError(t, err)
	require.Equal(t, content.MaxTitleChars, utf8.RuneCountInString(feed.Entries[0].Title))
	require.Equal(t, content.MaxFeedSummaryChars, utf8.RuneCountInString(feed.Entries[0].Summary))
}

func TestFeedRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Feed([]byte("definitely not a feed"))
	require.ErrorIs(t, err, content.ErrParse)
}
