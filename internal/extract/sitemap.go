package extract

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/JakeFAU/webtools/internal/content"
)

// maxSitemapBytes bounds decompressed sitemap size (the protocol limit is 50MB).
const maxSitemapBytes = 50 << 20

var gzipMagic = []byte{0x1f, 0x8b}

type sitemapDocument struct {
	XMLName  xml.Name
	URLs     []sitemapURLEntry `xml:"url"`
	Sitemaps []sitemapRefEntry `xml:"sitemap"`
}

type sitemapURLEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type sitemapRefEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// Sitemap parses a urlset or sitemapindex document, transparently
// decompressing gzip bodies and transcoding declared non-UTF-8 encodings.
// Entries keep document order; entries without a loc are dropped.
func Sitemap(body []byte) (content.SitemapResult, error) {
	data, err := maybeGunzip(body)
	if err != nil {
		return content.SitemapResult{}, content.Parse("sitemap", err)
	}
	var doc sitemapDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return content.SitemapResult{}, content.Parse("sitemap", err)
	}

	switch strings.ToLower(doc.XMLName.Local) {
	case string(content.SitemapURLSet):
		urls := make([]content.SitemapURL, 0, len(doc.URLs))
		for _, u := range doc.URLs {
			loc := strings.TrimSpace(u.Loc)
			if loc == "" {
				continue
			}
			urls = append(urls, content.SitemapURL{
				Loc:        loc,
				LastMod:    strings.TrimSpace(u.LastMod),
				ChangeFreq: strings.TrimSpace(u.ChangeFreq),
				Priority:   strings.TrimSpace(u.Priority),
			})
		}
		return content.SitemapResult{Kind: content.SitemapURLSet, URLs: urls}, nil
	case string(content.SitemapIndex):
		refs := make([]content.SitemapRef, 0, len(doc.Sitemaps))
		for _, s := range doc.Sitemaps {
			loc := strings.TrimSpace(s.Loc)
			if loc == "" {
				continue
			}
			refs = append(refs, content.SitemapRef{Loc: loc, LastMod: strings.TrimSpace(s.LastMod)})
		}
		return content.SitemapResult{Kind: content.SitemapIndex, Sitemaps: refs}, nil
	default:
		return content.SitemapResult{}, content.Parse("sitemap",
			fmt.Errorf("unexpected root element <%s>", doc.XMLName.Local))
	}
}

func maybeGunzip(body []byte) ([]byte, error) {
	if !bytes.HasPrefix(body, gzipMagic) {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open gzip: %w", err)
	}
	defer func() { _ = zr.Close() }()
	data, err := io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	return data, nil
}
