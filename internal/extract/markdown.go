package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/JakeFAU/webtools/internal/content"
)

var markdownConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(
			commonmark.WithHeadingStyle(commonmark.HeadingStyleATX),
		),
	),
)

// Markdown converts an HTML fragment to Markdown with ATX headings. Relative
// links and images are resolved against pageURL. An empty fragment yields "".
func Markdown(fragmentHTML, pageURL string) (string, error) {
	if strings.TrimSpace(fragmentHTML) == "" {
		return "", nil
	}
	opts := []converter.ConvertOptionFunc{}
	if pageURL != "" {
		opts = append(opts, converter.WithDomain(pageURL))
	}
	md, err := markdownConverter.ConvertString(fragmentHTML, opts...)
	if err != nil {
		return "", content.Parse("HTML fragment as Markdown", err)
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return "", nil
	}
	return TruncateText(md, content.MaxTextChars), nil
}

