package generic

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brogergvhs/mangamirror/internal/chapters"
	"github.com/brogergvhs/mangamirror/internal/detect"
	"github.com/brogergvhs/mangamirror/internal/fetch"
	"github.com/brogergvhs/mangamirror/internal/providers"
)

const (
	unknownTitle   = "Unknown Title"
	artistSelector = `.artist, .komik_info-content-info-author, [itemprop="author"]`
)

type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetch.Options) (string, error)
}

type Scraper struct {
	fetcher Fetcher
	log     *slog.Logger
}

var _ providers.Scraper = (*Scraper)(nil)

func NewScraper(f Fetcher, log *slog.Logger) *Scraper {
	if log == nil {
		log = slog.Default()
	}

	return &Scraper{fetcher: f, log: log}
}

type page struct {
	doc  *detect.Document
	base *url.URL
	html string
}

func (s *Scraper) load(ctx context.Context, target, referer string) (*page, error) {
	base, err := url.Parse(target)
	if err != nil || base.Host == "" {
		return nil, &Error{URL: target, Err: fmt.Errorf("invalid url %q", target)}
	}

	html, err := s.fetcher.Fetch(ctx, target, fetch.Options{Referer: referer})
	if err != nil {
		return nil, &Error{URL: target, Err: err}
	}

	doc, err := detect.Parse(html)
	if err != nil {
		return nil, &Error{URL: target, Err: fmt.Errorf("parse html: %w", err)}
	}

	return &page{doc: doc, base: base, html: html}, nil
}

func (s *Scraper) Scrape(ctx context.Context, pageURL string, custom *providers.CustomSelectors) (*providers.ScrapedComic, error) {
	res, err := s.ScrapeDetailed(ctx, pageURL, custom)
	if err != nil {
		return nil, err
	}

	return res.Comic, nil
}

// ScrapeDetailed is Scrape plus the selector used for every field. When the
// page has no chapters the returned error wraps ErrNoChaptersFound and
// carries the rest of the comic as a partial result.
func (s *Scraper) ScrapeDetailed(ctx context.Context, pageURL string, custom *providers.CustomSelectors) (*providers.ScrapeResult, error) {
	p, err := s.load(ctx, pageURL, "")
	if err != nil {
		return nil, err
	}

	sel := detect.ResolveAll(p.doc, custom.Overrides())
	s.log.Debug("selectors resolved", "url", pageURL, "selectors", sel)

	comic := s.extract(p, sel, custom)

	res := &providers.ScrapeResult{Comic: comic, Selectors: make(map[string]string, len(sel))}
	for f, v := range sel {
		res.Selectors[string(f)] = v
	}

	s.log.Info("series scraped",
		"url", pageURL,
		"title", comic.Title,
		"chapters", len(comic.Chapters),
		"genres", len(comic.Genres),
		"status", comic.Status,
		"type", comic.Type)

	if len(comic.Chapters) == 0 {
		return res, &Error{URL: pageURL, Err: ErrNoChaptersFound, Partial: comic}
	}

	return res, nil
}

func (s *Scraper) extract(p *page, sel map[detect.Field]string, custom *providers.CustomSelectors) *providers.ScrapedComic {
	doc := p.doc

	c := &providers.ScrapedComic{
		Genres:   []string{},
		Chapters: []providers.ScrapedChapter{},
	}

	title, _ := doc.Text(sel[detect.Title])
	c.Title = collapse(title)
	if c.Title == "" {
		c.Title = unknownTitle
	}

	if cover := detect.FirstAttr(doc, sel[detect.Cover], detect.CoverAttrs...); cover != "" {
		c.CoverURL = resolve(p.base, cover)
	}

	c.Description, _ = doc.Text(sel[detect.Description])
	c.Author = shortText(doc.Find(sel[detect.Author]).Text())
	c.Artist = shortText(doc.Find(artistSelector).Text())

	doc.Find(sel[detect.Genres]).Each(func(_ int, el *goquery.Selection) {
		if g := strings.TrimSpace(el.Text()); acceptGenre(g) {
			c.Genres = append(c.Genres, g)
		}
	})

	c.Status = normalizeStatus(doc.Find(sel[detect.Status]).Text())

	ratingText, _ := doc.Text(sel[detect.Rating])
	c.Rating = normalizeRating(ratingText)

	c.Type = normalizeType(doc.Find(sel[detect.Type]).Text(), doc.BodyText())

	c.Chapters = extractChapters(doc.Find(sel[detect.ChapterList]), p.base, custom)

	return c
}

// extractChapters keeps document order.
func extractChapters(els *goquery.Selection, base *url.URL, custom *providers.CustomSelectors) []providers.ScrapedChapter {
	out := []providers.ScrapedChapter{}

	els.Each(func(_ int, el *goquery.Selection) {
		href := chapterHref(el, custom)
		if skipHref(href) {
			return
		}

		text := el.Text()
		if custom != nil && custom.ChapterTitle != "" {
			text = el.Find(custom.ChapterTitle).Text()
		}
		text = collapse(text)

		abs := resolve(base, href)
		num := chapters.ExtractNumber(text)
		if num == 0 {
			num = chapters.ExtractNumber(lastSegment(abs))
		}

		out = append(out, providers.ScrapedChapter{
			SourceURL:       abs,
			SourceChapterID: chapters.SourceID(abs),
			ChapterNumber:   num,
			Title:           text,
		})
	})

	return out
}

func chapterHref(el *goquery.Selection, custom *providers.CustomSelectors) string {
	if custom != nil && custom.ChapterLink != "" {
		if href, ok := el.Find(custom.ChapterLink).First().Attr("href"); ok {
			return href
		}
	}
	if href, ok := el.Attr("href"); ok {
		return href
	}
	href, _ := el.Find("a[href]").First().Attr("href")

	return href
}

// lastSegment turns ".../solo-leveling-chapter-12.5/" into
// "solo leveling chapter 12.5" so the number patterns can run on it.
func lastSegment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}

	return strings.NewReplacer("-", " ", "_", " ").Replace(seg)
}
