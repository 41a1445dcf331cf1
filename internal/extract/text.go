package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/webtools/internal/content"
)

// TextExtraction is the readable form of an HTML page.
type TextExtraction struct {
	Title string
	// ContentHTML is the retained main-content fragment, used for Markdown.
	ContentHTML string
	Text        string
}

const (
	strippedSelector = "script, style, noscript, nav, header, footer, aside"
	mainSelector     = "main, article, [role='main']"
	contentSelector  = ".content, .main-content, .post-content, .entry-content, " +
		".article-content, .article-body, .post-body, #content, #main-content, #main"
)

var (
	adPattern       = regexp.MustCompile(`(?i)(^|[\s_-])(ad|ads|advert|advertisement|advertising|banner|sponsor|sponsored|promo)([\s_-]|$)`)
	inlineSpaces    = regexp.MustCompile(`[ \t\r\f\v]+`)
	navigationWords = map[string]struct{}{
		"cookie": {}, "cookies": {}, "privacy": {}, "terms": {}, "skip": {},
		"menu": {}, "search": {}, "login": {}, "register": {},
	}
)

// Text extracts the title and main readable text of an HTML document.
func Text(body []byte, pageURL string) (TextExtraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return TextExtraction{}, content.Parse("HTML", err)
	}
	stripNoise(doc)

	root := contentRoot(doc)
	fragment, _ := root.Html()
	return TextExtraction{
		Title:       resolveTitle(doc, pageURL),
		ContentHTML: strings.TrimSpace(fragment),
		Text:        TruncateText(CleanText(nodeText(root)), content.MaxTextChars),
	}, nil
}

// stripNoise removes non-content elements, advertisement blocks, and comments.
func stripNoise(doc *goquery.Document) {
	doc.Find(strippedSelector).Remove()
	doc.Find("[class], [id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		return adPattern.MatchString(class) || adPattern.MatchString(id)
	}).Remove()
	for _, n := range doc.Nodes {
		removeComments(n)
	}
}

func removeComments(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else {
			removeComments(c)
		}
		c = next
	}
}

func resolveTitle(doc *goquery.Document, pageURL string) string {
	candidates := []string{
		doc.Find("title").First().Text(),
		doc.Find("h1").First().Text(),
		metaContent(doc, "meta[property='og:title']"),
		metaContent(doc, "meta[name='twitter:title']"),
		content.LastPathSegment(pageURL),
		pageURL,
	}
	for _, c := range candidates {
		if title := collapseSpaces(c); title != "" {
			return content.Truncate(title, content.MaxTitleChars)
		}
	}
	return ""
}

func contentRoot(doc *goquery.Document) *goquery.Selection {
	if main := doc.Find(mainSelector).First(); main.Length() > 0 {
		return main
	}
	if block := doc.Find(contentSelector).First(); block.Length() > 0 {
		return block
	}
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return doc.Selection
	}
	body.Find("nav, header, footer").Remove()
	return body
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var blockElements = map[string]struct{}{
	"address": {}, "article": {}, "blockquote": {}, "dd": {}, "div": {}, "dl": {},
	"dt": {}, "figcaption": {}, "figure": {}, "form": {}, "h1": {}, "h2": {},
	"h3": {}, "h4": {}, "h5": {}, "h6": {}, "hr": {}, "li": {}, "main": {},
	"ol": {}, "p": {}, "pre": {}, "section": {}, "table": {}, "tr": {}, "ul": {},
}

// nodeText renders a selection as text with block elements on their own
// paragraphs and <br> as a line break.
func nodeText(sel *goquery.Selection) string {
	var buf strings.Builder
	for _, n := range sel.Nodes {
		writeText(&buf, n, false)
	}
	return buf.String()
}

func writeText(buf *strings.Builder, n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			buf.WriteString(n.Data)
			return
		}
		buf.WriteString(inlineSpaces.ReplaceAllString(strings.ReplaceAll(n.Data, "\n", " "), " "))
		return
	case html.ElementNode:
		if n.Data == "br" {
			buf.WriteString("\n")
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	_, block := blockElements[n.Data]
	if n.Type == html.ElementNode && block {
		buf.WriteString("\n\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(buf, c, pre || n.Data == "pre")
	}
	if n.Type == html.ElementNode && block {
		buf.WriteString("\n\n")
	}
}

// CleanText trims every line, drops lines of two characters or fewer
// (blank lines included) and lone navigation words, then rejoins the rest
// with single newlines. CleanText(CleanText(s)) equals CleanText(s).
func CleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len([]rune(line)) <= 2 {
			continue
		}
		if _, nav := navigationWords[strings.ToLower(line)]; nav {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// TruncateText caps text at limit characters. When it must cut, it prefers
// the last sentence end or line break past four fifths of the limit and
// appends content.TruncationMarker; otherwise it cuts at exactly limit.
func TruncateText(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	head := runes[:limit]
	if cut := boundary(head); cut > limit*4/5 {
		return strings.TrimRight(string(head[:cut]), " \n") + content.TruncationMarker
	}
	return string(head) + content.TruncationMarker
}

// boundary returns the rune offset of the last line break in runes, or just
// past the last sentence terminator followed by a space, whichever is later.
// Cleaned text keeps one paragraph per line, so a line break is a paragraph
// break. It returns 0 when neither occurs.
func boundary(runes []rune) int {
	for i := len(runes) - 1; i > 0; i-- {
		switch r := runes[i]; {
		case r == '\n':
			return i
		case r == ' ' && (runes[i-1] == '.' || runes[i-1] == '!' || runes[i-1] == '?'):
			return i
		}
	}
	return 0
}
