package generic

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/mangamirror/internal/detect"
	"github.com/brogergvhs/mangamirror/internal/providers"
)

var (
	// lazy-load priority for reader images
	imageAttrs = []string{"src", "data-src", "data-lazy-src", "data-original"}

	loadingMarkers = []string{"loader", "placeholder", "loading", "spinner"}

	reExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|gif|avif)(?:$|\?)`)
)

const minImageURLLen = 10

type imageCollector struct {
	base    *url.URL
	blocked []string
	minLen  int
	items   []string
}

func newImageCollector(base *url.URL, blocked []string, minLen int) *imageCollector {
	return &imageCollector{
		base:    base,
		blocked: blocked,
		minLen:  minLen,
		items:   make([]string, 0, 64),
	}
}

func (c *imageCollector) accept(raw string) bool {
	if len(raw) <= c.minLen || strings.HasPrefix(raw, "data:") {
		return false
	}
	for _, b := range c.blocked {
		if b != "" && strings.Contains(raw, b) {
			return false
		}
	}

	return true
}

// add keeps repeats: a reader that shows the same image twice has two pages.
func (c *imageCollector) add(raw string) {
	c.items = append(c.items, resolve(c.base, raw))
}

// ScanSelection takes, per element, the first attribute value that passes
// the filters, so a lazy-load placeholder in src falls through to data-src.
func (c *imageCollector) ScanSelection(sel *goquery.Selection, attrs []string) int {
	before := len(c.items)

	sel.Each(func(_ int, img *goquery.Selection) {
		for _, a := range attrs {
			v, ok := img.Attr(a)
			v = strings.TrimSpace(v)
			if !ok || v == "" {
				continue
			}
			if c.accept(v) {
				c.add(v)
				return
			}
		}
	})

	return len(c.items) - before
}

// ScanEmbedded picks up readers that ship the page list as script JSON.
func (c *imageCollector) ScanEmbedded(body string) int {
	before := len(c.items)
	for _, u := range embeddedImageURLs(body) {
		if c.accept(u) {
			c.add(u)
		}
	}

	return len(c.items) - before
}

func (c *imageCollector) URLs() []string {
	return c.items
}

// ScrapeImages returns the page images of a chapter in document order. An
// empty list is not an error.
func (s *Scraper) ScrapeImages(ctx context.Context, chapterURL, customSelector string) ([]string, error) {
	p, err := s.load(ctx, chapterURL, chapterURL)
	if err != nil {
		return nil, err
	}

	sel := detect.Resolve(p.doc, detect.ChapterImages, detect.Overrides{detect.ChapterImages: customSelector})

	col := newImageCollector(p.base, loadingMarkers, minImageURLLen)
	n := col.ScanSelection(p.doc.Find(sel), imageAttrs)
	if n == 0 && customSelector == "" {
		n = col.ScanEmbedded(p.html)
		if n > 0 {
			s.log.Debug("images taken from embedded reader data", "url", chapterURL, "count", n)
		}
	}

	if n == 0 {
		s.log.Warn("no chapter images found", "url", chapterURL, "selector", sel)
	} else {
		s.log.Debug("chapter images found", "url", chapterURL, "selector", sel, "count", n)
	}

	return col.URLs(), nil
}

// ScrapeWithAdapter reads a chapter with a source's fixed reader layout.
func (s *Scraper) ScrapeWithAdapter(ctx context.Context, chapterURL string, a providers.Adapter) ([]string, error) {
	p, err := s.load(ctx, chapterURL, chapterURL)
	if err != nil {
		return nil, err
	}

	col := newImageCollector(p.base, []string{a.Skip}, 0)
	n := col.ScanSelection(p.doc.Find(a.Selector), a.Attrs)
	s.log.Debug("adapter images found", "source", a.Code, "url", chapterURL, "count", n)

	return col.URLs(), nil
}
