package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/webtools/internal/content"
)

var skippedSchemes = []string{"javascript:", "mailto:", "tel:"}

// Links returns every distinct absolute http(s) anchor target of an HTML
// document in document order, resolved against baseURL. With sameOriginOnly
// set, links to other origins are dropped.
func Links(body []byte, baseURL string, sameOriginOnly bool) ([]content.ExtractedLink, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, content.InvalidURL(baseURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, content.Parse("HTML links", err)
	}

	seen := make(map[string]struct{})
	links := make([]content.ExtractedLink, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if skipHref(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if sameOriginOnly && !content.SameOrigin(base, abs) {
			return
		}
		key := abs.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, content.ExtractedLink{
			Href: key,
			Text: content.Truncate(anchorText(s), content.MaxLinkTextChars),
		})
	})
	return links, nil
}

func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func anchorText(s *goquery.Selection) string {
	if text := collapseSpaces(s.Text()); text != "" {
		return text
	}
	for _, attr := range []string{"title", "aria-label"} {
		if v, ok := s.Attr(attr); ok {
			if text := collapseSpaces(v); text != "" {
				return text
			}
		}
	}
	return ""
}
