package generic

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangamirror/internal/clock"
	"github.com/brogergvhs/mangamirror/internal/fetch"
	"github.com/brogergvhs/mangamirror/internal/providers"
)

type stubFetcher struct {
	pages map[string]string
	err   error
	calls []fetch.Options
}

func (s *stubFetcher) Fetch(_ context.Context, url string, opts fetch.Options) (string, error) {
	s.calls = append(s.calls, opts)
	if s.err != nil {
		return "", s.err
	}
	p, ok := s.pages[url]
	if !ok {
		return "", &fetch.Error{Kind: fetch.KindHTTP, URL: url, StatusCode: http.StatusNotFound, Attempts: 3}
	}
	return p, nil
}

const seriesHTML = `<html><head><title>x</title></head><body>
<div class="seriestuheader"><h1>Alternative Header</h1></div>
<h1 class="entry-title">  The   Greatest Estate Developer </h1>
<div class="thumb"><img src="/wp-content/uploads/cover.webp"></div>
<div class="entry-content" itemprop="description">When civil engineering student Suho wakes up as Lloyd Frontera, a lazy noble, he must dig his way out of debt.</div>
<div class="mgen"><a>Action</a><a>Comedy</a><a>Genre:</a><a> </a><a>A genre name that is way too long to be a real genre label at all</a></div>
<div class="imptdt">Status <i>Tamat</i></div>
<div class="imptdt">Type <a>Manhwa</a></div>
<div class="rating-prc"><div class="num">85</div></div>
<span class="author">BK_Moon</span>
<span class="artist">Lee Hyunmin</span>
<div id="chapterlist"><ul>
  <li><a href="chapter-3/"><span class="chapternum">Chapter 3</span> <span class="chapterdate">2 days ago</span></a></li>
  <li><a href="/series/ged/chapter-2/"><span class="chapternum">Chapter 2</span></a></li>
  <li><a href="//cdn.example.org/series/ged/chapter-1/"><span class="chapternum">Chapter 1</span></a></li>
  <li><a href="javascript:void(0)">Chapter 0</a></li>
</ul></div>
</body></html>`

func TestScrapeEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/series/ged/" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, seriesHTML)
	}))
	defer srv.Close()

	f := fetch.New(srv.Client(), fetch.Config{Clock: clock.NewFake(time.Unix(0, 0))})
	s := NewScraper(f, nil)

	comic, err := s.Scrape(context.Background(), srv.URL+"/series/ged/", nil)
	require.NoError(t, err)

	assert.Equal(t, "The Greatest Estate Developer", comic.Title)
	assert.Equal(t, srv.URL+"/wp-content/uploads/cover.webp", comic.CoverURL)
	assert.Contains(t, comic.Description, "Lloyd Frontera")
	assert.Equal(t, []string{"Action", "Comedy"}, comic.Genres)
	assert.Equal(t, providers.StatusCompleted, comic.Status)
	assert.Equal(t, providers.TypeManhwa, comic.Type)
	require.NotNil(t, comic.Rating)
	assert.InDelta(t, 8.5, *comic.Rating, 1e-9)
	assert.Equal(t, "BK_Moon", comic.Author)
	assert.Equal(t, "Lee Hyunmin", comic.Artist)

	require.Len(t, comic.Chapters, 3)
	nums := []float64{}
	for _, c := range comic.Chapters {
		nums = append(nums, c.ChapterNumber)
	}
	assert.Equal(t, []float64{3, 2, 1}, nums, "document order is preserved")

	assert.Equal(t, srv.URL+"/series/ged/chapter-3/", comic.Chapters[0].SourceURL)
	assert.Equal(t, srv.URL+"/series/ged/chapter-2/", comic.Chapters[1].SourceURL)
	assert.Equal(t, "http://cdn.example.org/series/ged/chapter-1/", comic.Chapters[2].SourceURL)
	assert.Equal(t, "chapter-3", comic.Chapters[0].SourceChapterID)
	assert.Equal(t, "Chapter 3 2 days ago", comic.Chapters[0].Title)
}

func TestScrapeCustomSelectorsWin(t *testing.T) {
	page := `<html><body>
		<h1 class="entry-title">Detected Title</h1>
		<h2 class="real-name">Operator Title</h2>
		<table class="chapters">
		  <tr><td class="n">Episode 12</td><td><a class="go" href="/read/12">read</a></td></tr>
		  <tr><td class="n">Episode 11</td><td><a class="go" href="/read/11">read</a></td></tr>
		</table>
	</body></html>`
	stub := &stubFetcher{pages: map[string]string{"https://site.test/s/1": page}}
	s := NewScraper(stub, nil)

	res, err := s.ScrapeDetailed(context.Background(), "https://site.test/s/1", &providers.CustomSelectors{
		Title:        "h2.real-name",
		ChapterList:  "table.chapters tr",
		ChapterLink:  "a.go",
		ChapterTitle: "td.n",
	})
	require.NoError(t, err)

	c := res.Comic
	assert.Equal(t, "Operator Title", c.Title)
	require.Len(t, c.Chapters, 2)
	assert.Equal(t, "https://site.test/read/12", c.Chapters[0].SourceURL)
	assert.Equal(t, 12.0, c.Chapters[0].ChapterNumber)
	assert.Equal(t, "Episode 12", c.Chapters[0].Title)
	assert.Equal(t, "h2.real-name", res.Selectors["title"])
	assert.Equal(t, "table.chapters tr", res.Selectors["chapterList"])
}

func TestScrapeNumberFromURLWhenTextHasNone(t *testing.T) {
	page := `<html><body><h1>Title Here</h1>
		<ul class="chapter-list"><a href="/x/solo-chapter-7.5/">Read now</a></ul></body></html>`
	stub := &stubFetcher{pages: map[string]string{"https://site.test/x": page}}

	c, err := NewScraper(stub, nil).Scrape(context.Background(), "https://site.test/x", nil)
	require.NoError(t, err)
	require.Len(t, c.Chapters, 1)
	assert.Equal(t, 7.5, c.Chapters[0].ChapterNumber)
}

func TestScrapeNumberFromTextBeatsURL(t *testing.T) {
	page := `<html><body><h1>Title Here</h1>
		<ul class="chapter-list">
			<a href="/x/solo-chapter-99/">Chapter 3</a>
			<a href="/x/read/">Read now</a>
		</ul></body></html>`
	stub := &stubFetcher{pages: map[string]string{"https://site.test/x": page}}

	c, err := NewScraper(stub, nil).Scrape(context.Background(), "https://site.test/x", nil)
	require.NoError(t, err)
	require.Len(t, c.Chapters, 2)
	assert.Equal(t, 3.0, c.Chapters[0].ChapterNumber)
	assert.Equal(t, 0.0, c.Chapters[1].ChapterNumber, "no number in text or URL")
}

func TestScrapeNoChapters(t *testing.T) {
	stub := &stubFetcher{pages: map[string]string{"https://site.test/empty": `<html><body><p>nothing</p></body></html>`}}

	res, err := NewScraper(stub, nil).ScrapeDetailed(context.Background(), "https://site.test/empty", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoChaptersFound)

	var se *Error
	require.ErrorAs(t, err, &se)
	require.NotNil(t, se.Partial)
	assert.Equal(t, "Unknown Title", se.Partial.Title)
	assert.Equal(t, providers.StatusOngoing, se.Partial.Status)
	assert.Equal(t, providers.TypeManga, se.Partial.Type)
	assert.Nil(t, se.Partial.Rating)
	require.NotNil(t, res)
}

func TestScrapeWrapsFetchErrors(t *testing.T) {
	stub := &stubFetcher{err: &fetch.Error{Kind: fetch.KindChallenge, URL: "https://site.test", Attempts: 3}}

	_, err := NewScraper(stub, nil).Scrape(context.Background(), "https://site.test", nil)
	require.Error(t, err)

	var se *Error
	assert.ErrorAs(t, err, &se)
	assert.True(t, fetch.IsBlocked(err))

	_, err = NewScraper(stub, nil).Scrape(context.Background(), "not a url", nil)
	assert.ErrorAs(t, err, &se)
}

func TestNormalizeRating(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"85", 8.5},
		{"950", 9.5},
		{"7.5", 7.5},
		{"10", 10},
		{"0", 0},
		{"Rating 4.2 / 5", 4.2},
		{"9.", 9},
	}
	for _, tt := range tests {
		got := normalizeRating(tt.in)
		require.NotNil(t, got, tt.in)
		assert.InDelta(t, tt.want, *got, 1e-9, tt.in)
	}

	assert.Nil(t, normalizeRating("N/A"))

	for _, v := range []string{"0", "3.3", "6", "9.99", "10"} {
		first := normalizeRating(v)
		assert.Equal(t, *first, *normalizeRating(v), "stable for in-range %s", v)
	}
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, providers.StatusCompleted, normalizeStatus("Status: Completed"))
	assert.Equal(t, providers.StatusCompleted, normalizeStatus("SELESAI"))
	assert.Equal(t, providers.StatusCompleted, normalizeStatus("finished"))
	assert.Equal(t, providers.StatusHiatus, normalizeStatus("On Hiatus"))
	assert.Equal(t, providers.StatusHiatus, normalizeStatus("berhenti"))
	assert.Equal(t, providers.StatusOngoing, normalizeStatus("Berjalan"))
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, providers.TypeManhua, normalizeType("Manhua", "recommended manhwa"))
	assert.Equal(t, providers.TypeManhwa, normalizeType("", "read this manhwa online"))
	assert.Equal(t, providers.TypeManhwa, normalizeType("Webtoon", ""))
	assert.Equal(t, providers.TypeNovel, normalizeType("", "light novel"))
	assert.Equal(t, providers.TypeManga, normalizeType("", "nothing here"))
}

func TestAcceptGenre(t *testing.T) {
	assert.True(t, acceptGenre("Slice of Life"))
	assert.False(t, acceptGenre(""))
	assert.False(t, acceptGenre("Genres"))
	assert.False(t, acceptGenre("Tags: x"))
	assert.False(t, acceptGenre("this label is definitely longer than fifty characters"))
}

func TestErrorUnwrap(t *testing.T) {
	err := &Error{URL: "u", Err: ErrNoChaptersFound}
	assert.True(t, errors.Is(err, ErrNoChaptersFound))
	assert.Equal(t, "scrape u: no chapters found", err.Error())
}
