package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"

	"github.com/JakeFAU/webtools/internal/content"
)

// PageMetadata is the descriptive metadata of an HTML page.
type PageMetadata struct {
	Title       string
	Description string
	ImageURL    string
	SiteName    string
}

// Metadata reads Open Graph tags first, then Twitter card tags, then the
// standard <title> and description meta. The image URL is made absolute
// against pageURL. Missing metadata is not an error.
func Metadata(body []byte, pageURL string) (PageMetadata, error) {
	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(body)); err != nil {
		return PageMetadata{}, content.Parse("HTML metadata", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageMetadata{}, content.Parse("HTML metadata", err)
	}

	ogImage := ""
	if len(og.Images) > 0 && og.Images[0] != nil {
		ogImage = og.Images[0].URL
	}
	meta := PageMetadata{
		Title: firstNonEmpty(
			og.Title,
			metaContent(doc, "meta[name='twitter:title']"),
			doc.Find("title").First().Text(),
		),
		Description: firstNonEmpty(
			og.Description,
			metaContent(doc, "meta[name='twitter:description']"),
			metaContent(doc, "meta[name='description']"),
		),
		ImageURL: firstNonEmpty(
			ogImage,
			metaContent(doc, "meta[name='twitter:image']"),
			metaContent(doc, "meta[name='twitter:image:src']"),
		),
		SiteName: firstNonEmpty(
			og.SiteName,
			metaContent(doc, "meta[name='application-name']"),
		),
	}
	meta.Title = content.Truncate(meta.Title, content.MaxTitleChars)
	meta.Description = content.Truncate(meta.Description, content.MaxDescriptionChars)
	if meta.ImageURL != "" && pageURL != "" {
		if abs := content.ResolveReference(pageURL, meta.ImageURL); abs != "" {
			meta.ImageURL = abs
		}
	}
	return meta, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = collapseSpaces(v); v != "" {
			return v
		}
	}
	return ""
}

// IsHTML reports whether a Content-Type header names an HTML document.
func IsHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}
