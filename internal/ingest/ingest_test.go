package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brogergvhs/mangamirror/internal/catalog"
	"github.com/brogergvhs/mangamirror/internal/clock"
	"github.com/brogergvhs/mangamirror/internal/providers"
	"github.com/brogergvhs/mangamirror/internal/storage"
)

type stubScraper struct {
	res   *providers.ScrapeResult
	err   error
	calls int
}

func (s *stubScraper) ScrapeDetailed(context.Context, string, *providers.CustomSelectors) (*providers.ScrapeResult, error) {
	s.calls++
	return s.res, s.err
}

func sampleResult() *providers.ScrapeResult {
	rating := 8.5
	return &providers.ScrapeResult{
		Comic: &providers.ScrapedComic{
			Title:  "Tower of God",
			Status: providers.StatusOngoing,
			Type:   providers.TypeManhwa,
			Rating: &rating,
			Genres: []string{"Action", "Fantasy"},
			Chapters: []providers.ScrapedChapter{
				{SourceURL: "https://komiku.org/tog-3/", SourceChapterID: "tog-3", ChapterNumber: 3},
				{SourceURL: "https://komiku.org/tog-2/", SourceChapterID: "tog-2", ChapterNumber: 2},
				{SourceURL: "https://komiku.org/tog-1/", SourceChapterID: "tog-1", ChapterNumber: 1},
			},
		},
		Selectors: map[string]string{"title": "h1.entry-title"},
	}
}

func newService(sc ComicScraper) (*Service, *catalog.MemoryStore, *storage.MemoryStore) {
	store := catalog.NewMemoryStore()
	objects := storage.NewMemoryStore("https://cdn.example.com")
	svc := NewService(store, sc, objects, Config{
		Policy: URLPolicy{AllowedDomains: DefaultAllowedDomains},
		Clock:  clock.NewFake(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
	})
	return svc, store, objects
}

func TestScrapeSyncsComicAndChapters(t *testing.T) {
	ctx := context.Background()
	sc := &stubScraper{res: sampleResult()}
	svc, store, _ := newService(sc)

	resp, err := svc.Scrape(ctx, Request{URL: "https://komiku.org/manga/tower-of-god/", Actor: "admin"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, providers.SourceKomiku, resp.SourceCode)
	assert.Equal(t, 3, resp.ChaptersCount)
	assert.Equal(t, 3, resp.ChaptersSynced)
	require.NotEmpty(t, resp.ComicID)

	comic, err := store.ComicByID(ctx, resp.ComicID)
	require.NoError(t, err)
	assert.Equal(t, "tower-of-god", comic.Slug)
	assert.Equal(t, "tower-of-god", comic.SourceSlug)
	assert.Equal(t, 8.5, *comic.Rating)

	src, err := store.SourceByCode(ctx, providers.SourceKomiku)
	require.NoError(t, err)
	assert.Equal(t, "https://komiku.org", src.BaseURL)
	assert.Equal(t, src.ID, comic.SourceID)

	logs := store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, catalog.ActionUniversalScrape, logs[0].Action)
	assert.Equal(t, catalog.StatusSuccess, logs[0].Status)
	assert.Equal(t, "admin", logs[0].Actor)
}

func TestScrapeTwiceUpdatesInsteadOfDuplicating(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(&stubScraper{res: sampleResult()})

	first, err := svc.Scrape(ctx, Request{URL: "https://komiku.org/manga/tower-of-god/"})
	require.NoError(t, err)
	second, err := svc.Scrape(ctx, Request{URL: "https://komiku.org/manga/tower-of-god/"})
	require.NoError(t, err)

	assert.Equal(t, first.ComicID, second.ComicID)
	assert.Len(t, store.Chapters(first.ComicID), 3)
}

func TestScrapeTestOnlyPersistsNothing(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(&stubScraper{res: sampleResult()})

	resp, err := svc.Scrape(ctx, Request{URL: "https://komiku.org/manga/tower-of-god/", TestOnly: true})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.True(t, resp.TestOnly)
	assert.Empty(t, resp.ComicID)
	assert.Equal(t, "Tower of God", resp.Comic.Title)
	assert.Equal(t, "h1.entry-title", resp.Selectors["title"])

	_, err = store.ComicByTitle(ctx, "Tower of God")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = store.SourceByCode(ctx, providers.SourceKomiku)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestScrapeExplicitComicID(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(&stubScraper{res: sampleResult()})

	existing := &catalog.Comic{Title: "Kami no Tou", Slug: "kami-no-tou"}
	require.NoError(t, store.UpsertComic(ctx, existing))

	resp, err := svc.Scrape(ctx, Request{URL: "https://komiku.org/manga/tower-of-god/", ComicID: existing.ID})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, resp.ComicID)

	got, err := store.ComicByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tower of God", got.Title)
	assert.Equal(t, "kami-no-tou", got.Slug)

	_, err = svc.Scrape(ctx, Request{URL: "https://komiku.org/manga/tower-of-god/", ComicID: "missing"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestScrapeChapterFilter(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(&stubScraper{res: sampleResult()})

	resp, err := svc.Scrape(ctx, Request{URL: "https://komiku.org/manga/tower-of-god/", ChapterFilter: "2-3"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.ChaptersSynced)
	assert.Len(t, store.Chapters(resp.ComicID), 2)
}

func TestScrapeFailureCarriesPreview(t *testing.T) {
	ctx := context.Background()
	res := sampleResult()
	res.Comic.Chapters = nil
	sc := &stubScraper{res: res, err: errors.New("no chapters found")}
	svc, store, _ := newService(sc)

	resp, err := svc.Scrape(ctx, Request{URL: "https://komiku.org/manga/tower-of-god/"})
	require.Error(t, err)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Comic)
	assert.Equal(t, "Tower of God", resp.Comic.Title)
	assert.Contains(t, resp.Error, "no chapters found")

	logs := store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, catalog.StatusFailed, logs[0].Status)
}

func TestScrapeRejectsDisallowedURL(t *testing.T) {
	ctx := context.Background()
	sc := &stubScraper{res: sampleResult()}
	svc, store, _ := newService(sc)

	_, err := svc.Scrape(ctx, Request{URL: "http://komiku.org/manga/x"})
	assert.ErrorIs(t, err, ErrURLNotAllowed)
	assert.Zero(t, sc.calls)

	logs := store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, catalog.ActionScrapeBlocked, logs[0].Action)
}

func TestURLPolicy(t *testing.T) {
	strict := URLPolicy{AllowedDomains: DefaultAllowedDomains}
	open := URLPolicy{}

	cases := []struct {
		name   string
		policy URLPolicy
		url    string
		ok     bool
	}{
		{"allowed domain", strict, "https://komiku.org/manga/x", true},
		{"www subdomain", strict, "https://www.komiku.org/manga/x", true},
		{"sub subdomain", strict, "https://api.mangadex.org/x", true},
		{"lookalike domain", strict, "https://evilkomiku.org/x", false},
		{"unknown domain", strict, "https://example.com/x", false},
		{"http", open, "http://example.com/x", false},
		{"localhost", open, "https://localhost/x", false},
		{"loopback", open, "https://127.0.0.1/x", false},
		{"private 10", open, "https://10.1.2.3/x", false},
		{"private 172", open, "https://172.20.0.1/x", false},
		{"private 192", open, "https://192.168.1.1/x", false},
		{"link local", open, "https://169.254.169.254/latest", false},
		{"ipv6 loopback", open, "https://[::1]/x", false},
		{"public ip", open, "https://93.184.216.34/x", true},
		{"garbage", open, "::not a url", false},
		{"any public host", open, "https://example.com/x", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate(tc.url)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrURLNotAllowed)
			}
		})
	}

	dev := URLPolicy{AllowHTTP: true, AllowPrivate: true}
	assert.NoError(t, dev.Validate("http://127.0.0.1:8080/x"))
}

type zipEntry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...zipEntry) *bytes.Reader {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestIngestCBZWithComicInfo(t *testing.T) {
	ctx := context.Background()
	svc, store, objects := newService(&stubScraper{})

	r := buildZip(t,
		zipEntry{"10.jpg", "p10"},
		zipEntry{"2.png", "p2"},
		zipEntry{"1.jpg", "p1"},
		zipEntry{"notes.txt", "ignored"},
		zipEntry{"__MACOSX/._1.jpg", "junk"},
		zipEntry{"ComicInfo.xml", `<?xml version="1.0"?>
<ComicInfo>
  <Title>The Return</Title>
  <Series>Solo Leveling</Series>
  <Number>12.5</Number>
  <Summary>Hunters and gates.</Summary>
  <Genre>Action, Fantasy</Genre>
  <Writer>Chugong</Writer>
</ComicInfo>`},
	)

	res, err := svc.IngestCBZ(ctx, CBZRequest{Filename: "whatever.cbz", Data: r, Size: r.Size()})
	require.NoError(t, err)
	assert.Equal(t, 12.5, res.ChapterNumber)
	assert.Equal(t, 3, res.TotalPages)

	base := "comics/" + res.ComicID + "/chapters/12.5/"
	assert.Equal(t, []string{
		"https://cdn.example.com/" + base + "1.jpg",
		"https://cdn.example.com/" + base + "2.png",
		"https://cdn.example.com/" + base + "3.jpg",
	}, res.Images)

	obj, ok := objects.Get(base + "3.jpg")
	require.True(t, ok)
	assert.Equal(t, "p10", string(obj.Data))
	assert.Equal(t, storage.CacheControlArchive, obj.CacheControl)

	info, ok := objects.Get(base + "info.html")
	require.True(t, ok)
	assert.Contains(t, string(info.Data), "Solo Leveling")
	assert.Contains(t, string(info.Data), "Action, Fantasy")

	comic, err := store.ComicByID(ctx, res.ComicID)
	require.NoError(t, err)
	assert.Equal(t, "Solo Leveling", comic.Title)
	assert.Equal(t, []string{"Action", "Fantasy"}, comic.Genres)

	chs := store.Chapters(res.ComicID)
	require.Len(t, chs, 1)
	assert.Equal(t, "The Return", chs[0].Title)

	logs := store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, catalog.ActionCBZUpload, logs[0].Action)
	assert.Equal(t, catalog.StatusSuccess, logs[0].Status)
}

func TestIngestCBZFromFilenameReusesComic(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(&stubScraper{})

	existing := &catalog.Comic{Title: "Tower of God", Slug: "tower-of-god"}
	require.NoError(t, store.UpsertComic(ctx, existing))

	r := buildZip(t, zipEntry{"001.jpg", "a"}, zipEntry{"002.jpg", "b"})
	res, err := svc.IngestCBZ(ctx, CBZRequest{Filename: "Tower_of_God-Chapter 285.cbz", Data: r, Size: r.Size()})
	require.NoError(t, err)

	assert.Equal(t, existing.ID, res.ComicID)
	assert.Equal(t, 285.0, res.ChapterNumber)
	assert.Equal(t, "Tower of God", res.Metadata.Series)
}

func TestIngestCBZComicInfoWithoutSeriesUsesFilename(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(&stubScraper{})

	r := buildZip(t,
		zipEntry{"1.jpg", "a"},
		zipEntry{"ComicInfo.xml", `<ComicInfo><Summary>Only a summary.</Summary><Writer>SIU</Writer></ComicInfo>`},
	)
	res, err := svc.IngestCBZ(ctx, CBZRequest{Filename: "Tower_of_God-Chapter 40.cbz", Data: r, Size: r.Size()})
	require.NoError(t, err)

	assert.Equal(t, 40.0, res.ChapterNumber)
	assert.Equal(t, "Tower of God", res.Metadata.Series)
	assert.Equal(t, "Chapter 40", res.Metadata.Title)
	assert.Equal(t, "SIU", res.Metadata.Writer, "archive metadata still wins where present")

	comic, err := store.ComicByID(ctx, res.ComicID)
	require.NoError(t, err)
	assert.Equal(t, "Tower of God", comic.Title)
	assert.Equal(t, "Only a summary.", comic.Description)
}

func TestComicInfoOrFrom(t *testing.T) {
	fb := ComicInfo{Series: "From File", Title: "Chapter 2", Number: "2", PageCount: 9}

	got := ComicInfo{Series: "Real", Number: "3"}.orFrom(fb)
	assert.Equal(t, "Real", got.Series)
	assert.Equal(t, "3", got.Number)
	assert.Equal(t, "Chapter 2", got.Title)
	assert.Equal(t, 9, got.PageCount)
}

func TestIngestCBZChapterOverride(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(&stubScraper{})

	r := buildZip(t, zipEntry{"1.webp", "a"})
	res, err := svc.IngestCBZ(ctx, CBZRequest{Filename: "series 3.cbz", Data: r, Size: r.Size(), ChapterNumber: 7})
	require.NoError(t, err)
	assert.Equal(t, 7.0, res.ChapterNumber)
}

func TestIngestCBZErrors(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newService(&stubScraper{})

	empty := buildZip(t, zipEntry{"readme.txt", "x"})
	_, err := svc.IngestCBZ(ctx, CBZRequest{Filename: "x 1.cbz", Data: empty, Size: empty.Size()})
	assert.ErrorIs(t, err, ErrNoImages)

	r := buildZip(t, zipEntry{"1.jpg", "a"})
	_, err = svc.IngestCBZ(ctx, CBZRequest{Filename: "x.cbz", Data: r, Size: r.Size(), ComicID: "missing"})
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	notZip := bytes.NewReader([]byte("definitely not a zip"))
	_, err = svc.IngestCBZ(ctx, CBZRequest{Filename: "bad.cbz", Data: notZip, Size: notZip.Size()})
	assert.Error(t, err)

	for _, l := range store.Logs() {
		assert.Equal(t, catalog.StatusFailed, l.Status)
	}
}

func TestInfoFromFilename(t *testing.T) {
	cases := []struct {
		file, series, number, title string
	}{
		{"Solo_Leveling-Chapter 285.cbz", "Solo Leveling", "285", "Chapter 285"},
		{"tower ch12.cbz", "tower", "12", "Chapter 12"},
		{"One Piece 1100.cbz", "One Piece", "1100", "Chapter 1100"},
		{"oneshot.cbz", "oneshot", "", "oneshot"},
		{"Ep-7.cbz", "Ep 7", "7", "Chapter 7"},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			ci := infoFromFilename(tc.file, 3)
			assert.Equal(t, tc.series, ci.Series)
			assert.Equal(t, tc.number, ci.Number)
			assert.Equal(t, tc.title, ci.Title)
		})
	}
}
