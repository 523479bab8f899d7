package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html/template"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/brogergvhs/mangamirror/internal/catalog"
	"github.com/brogergvhs/mangamirror/internal/providers"
	"github.com/brogergvhs/mangamirror/internal/slug"
	"github.com/brogergvhs/mangamirror/internal/storage"
)

const maxArchiveEntry = 64 << 20

var (
	ErrNoImages = errors.New("no images found in archive")
	ErrNoComic  = errors.New("comic id required or series name not found")
)

var (
	reImageName    = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp)$`)
	reFirstNumber  = regexp.MustCompile(`\d+`)
	reChapterToken = regexp.MustCompile(`(?i)(?:chapter|ch|ep|episode)[\s\-_]*(\d+(?:\.\d+)?)`)
	reSeparators   = regexp.MustCompile(`[\-_]+`)
)

// ComicInfo is the subset of the ComicRack ComicInfo.xml schema we read.
type ComicInfo struct {
	XMLName         xml.Name `xml:"ComicInfo" json:"-"`
	Title           string   `xml:"Title" json:"title,omitempty"`
	Series          string   `xml:"Series" json:"series,omitempty"`
	Number          string   `xml:"Number" json:"number,omitempty"`
	Summary         string   `xml:"Summary" json:"summary,omitempty"`
	Writer          string   `xml:"Writer" json:"writer,omitempty"`
	Penciller       string   `xml:"Penciller" json:"penciller,omitempty"`
	Genre           string   `xml:"Genre" json:"genre,omitempty"`
	Tags            string   `xml:"Tags" json:"tags,omitempty"`
	AlternateSeries string   `xml:"AlternateSeries" json:"alternateSeries,omitempty"`
	LocalizedSeries string   `xml:"LocalizedSeries" json:"localizedSeries,omitempty"`
	PageCount       int      `xml:"PageCount" json:"pageCount,omitempty"`
}

func (ci ComicInfo) ChapterNumber() float64 {
	n, err := strconv.ParseFloat(strings.TrimSpace(ci.Number), 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// orFrom fills the identifying fields ci leaves empty from fb, typically
// what the archive's filename says.
func (ci ComicInfo) orFrom(fb ComicInfo) ComicInfo {
	if strings.TrimSpace(ci.Series) == "" {
		ci.Series = fb.Series
	}
	if strings.TrimSpace(ci.Title) == "" {
		ci.Title = fb.Title
	}
	if strings.TrimSpace(ci.Number) == "" {
		ci.Number = fb.Number
	}
	if ci.PageCount == 0 {
		ci.PageCount = fb.PageCount
	}
	return ci
}

func (ci ComicInfo) Genres() []string { return splitList(ci.Genre) }

func (ci ComicInfo) TagList() []string { return splitList(ci.Tags) }

func (ci ComicInfo) AlternativeTitles() []string {
	var out []string
	for _, t := range []string{ci.AlternateSeries, ci.LocalizedSeries} {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseComicInfo(data []byte) (ComicInfo, error) {
	var ci ComicInfo
	if err := xml.Unmarshal(data, &ci); err != nil {
		return ComicInfo{}, fmt.Errorf("parse ComicInfo.xml: %w", err)
	}
	ci.Title = strings.TrimSpace(ci.Title)
	ci.Series = strings.TrimSpace(ci.Series)
	ci.Summary = strings.TrimSpace(ci.Summary)
	return ci, nil
}

// infoFromFilename guesses series and chapter from names such as
// "Solo_Leveling-Chapter 285.cbz" or "tower 12.cbz".
func infoFromFilename(filename string, pages int) ComicInfo {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))

	ci := ComicInfo{Series: base, PageCount: pages}
	cut := -1
	if m := reChapterToken.FindStringSubmatchIndex(base); m != nil {
		ci.Number = base[m[2]:m[3]]
		cut = m[0]
	} else if m := reFirstNumber.FindStringIndex(base); m != nil {
		ci.Number = base[m[0]:m[1]]
		cut = m[0]
	}

	if cut >= 0 {
		if series := strings.TrimSpace(reSeparators.ReplaceAllString(base[:cut], " ")); series != "" {
			ci.Series = series
		}
		ci.Title = "Chapter " + ci.Number
	} else {
		ci.Title = base
	}
	ci.Series = strings.TrimSpace(reSeparators.ReplaceAllString(ci.Series, " "))

	return ci
}

type archiveImage struct {
	name string
	file *zip.File
}

// sortImages orders pages by the first number in their file name; names
// without one sort first, ties keep archive order.
func sortImages(imgs []archiveImage) {
	num := func(name string) int {
		n, _ := strconv.Atoi(reFirstNumber.FindString(path.Base(name)))
		return n
	}
	sort.SliceStable(imgs, func(i, j int) bool { return num(imgs[i].name) < num(imgs[j].name) })
}

type CBZRequest struct {
	Filename string
	Data     io.ReaderAt
	Size     int64
	ComicID  string
	// ChapterNumber overrides the number found in metadata when > 0.
	ChapterNumber float64
	Actor         string
	Progress      Progress
}

type Progress interface {
	Update(done, total int, bytes int64)
	MarkDone()
}

type CBZResult struct {
	ComicID       string    `json:"comicId"`
	ChapterID     string    `json:"chapterId"`
	ChapterNumber float64   `json:"chapterNumber"`
	TotalPages    int       `json:"totalPages"`
	Metadata      ComicInfo `json:"metadata"`
	InfoURL       string    `json:"htmlUrl"`
	Images        []string  `json:"imagesUrl"`
	Bytes         int64     `json:"bytes"`
}

// IngestCBZ stores an archive's pages in the permanent archive tree and
// registers the chapter.
func (s *Service) IngestCBZ(ctx context.Context, req CBZRequest) (*CBZResult, error) {
	res, err := s.ingestCBZ(ctx, req)

	entry := catalog.ScrapeLog{
		Action:    catalog.ActionCBZUpload,
		TargetURL: req.Filename,
		Status:    catalog.StatusSuccess,
		Actor:     req.Actor,
	}
	if err != nil {
		entry.Status = catalog.StatusFailed
		entry.ErrorMessage = err.Error()
	}
	s.audit(ctx, entry)

	return res, err
}

func (s *Service) ingestCBZ(ctx context.Context, req CBZRequest) (*CBZResult, error) {
	zr, err := zip.NewReader(req.Data, req.Size)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", req.Filename, err)
	}

	var (
		imgs []archiveImage
		info *ComicInfo
	)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.Contains(f.Name, "__MACOSX/") || strings.HasPrefix(path.Base(f.Name), ".") {
			continue
		}

		switch {
		case strings.EqualFold(path.Base(f.Name), "comicinfo.xml"):
			data, err := readEntry(f)
			if err != nil {
				return nil, err
			}
			ci, err := parseComicInfo(data)
			if err != nil {
				return nil, err
			}
			info = &ci
		case reImageName.MatchString(f.Name):
			imgs = append(imgs, archiveImage{name: f.Name, file: f})
		}
	}

	if len(imgs) == 0 {
		return nil, ErrNoImages
	}
	sortImages(imgs)

	meta := infoFromFilename(req.Filename, len(imgs))
	if info != nil {
		meta = info.orFrom(meta)
	}

	number := req.ChapterNumber
	if number <= 0 {
		number = meta.ChapterNumber()
	}
	if number <= 0 {
		number = 1
	}

	comicID, err := s.archiveComic(ctx, req.ComicID, meta)
	if err != nil {
		return nil, err
	}

	log := s.log.With("comic", comicID, "chapter", number, "file", req.Filename)
	res := &CBZResult{ComicID: comicID, ChapterNumber: number, TotalPages: len(imgs), Metadata: meta}

	if req.Progress != nil {
		req.Progress.Update(0, len(imgs), 0)
		defer req.Progress.MarkDone()
	}

	for i, img := range imgs {
		data, err := readEntry(img.file)
		if err != nil {
			return nil, err
		}

		ext := strings.ToLower(reImageName.FindStringSubmatch(img.name)[1])
		key := storage.ArchivePagePath(comicID, number, i+1, ext)
		if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.ContentTypeFor(ext), storage.CacheControlArchive); err != nil {
			return nil, fmt.Errorf("upload %s: %w", key, err)
		}

		res.Images = append(res.Images, s.objects.PublicURL(key))
		res.Bytes += int64(len(data))
		if req.Progress != nil {
			req.Progress.Update(i+1, len(imgs), res.Bytes)
		}
	}

	page, err := renderInfo(meta, number, len(imgs), s.clock.Now().Format("2006-01-02 15:04"))
	if err != nil {
		return nil, err
	}
	infoKey := storage.ArchiveInfoPath(comicID, number)
	if err := s.objects.Put(ctx, infoKey, bytes.NewReader(page), int64(len(page)), "text/html; charset=utf-8", storage.CacheControlArchive); err != nil {
		return nil, fmt.Errorf("upload %s: %w", infoKey, err)
	}
	res.InfoURL = s.objects.PublicURL(infoKey)

	title := meta.Title
	if title == "" {
		title = "Chapter " + strconv.FormatFloat(number, 'f', -1, 64)
	}
	ch := &catalog.Chapter{ComicID: comicID, Number: number, Title: title}
	if err := s.store.UpsertChapter(ctx, ch); err != nil {
		return nil, fmt.Errorf("save chapter: %w", err)
	}
	res.ChapterID = ch.ID

	log.Info("archive ingested", "pages", len(imgs), "bytes", res.Bytes)
	return res, nil
}

// archiveComic resolves the comic an archive belongs to: the explicit id,
// else the comic titled like the series, else a new comic for the series.
func (s *Service) archiveComic(ctx context.Context, id string, meta ComicInfo) (string, error) {
	if id != "" {
		c, err := s.store.ComicByID(ctx, id)
		if err != nil {
			return "", err
		}
		return c.ID, nil
	}
	if meta.Series == "" {
		return "", ErrNoComic
	}

	c, err := s.store.ComicByTitle(ctx, meta.Series)
	if err == nil {
		return c.ID, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return "", err
	}

	c = &catalog.Comic{
		Title:       meta.Series,
		Slug:        slug.From(meta.Series),
		Description: meta.Summary,
		Genres:      meta.Genres(),
		Author:      meta.Writer,
		Artist:      meta.Penciller,
		Type:        providers.TypeManga,
		Status:      providers.StatusOngoing,
	}
	if err := s.store.UpsertComic(ctx, c); err != nil {
		return "", fmt.Errorf("create comic: %w", err)
	}
	s.log.Info("comic created from archive", "comic", c.ID, "title", c.Title)
	return c.ID, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxArchiveEntry {
		return nil, fmt.Errorf("archive entry %s too large (%d bytes)", f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, maxArchiveEntry+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(data) > maxArchiveEntry {
		return nil, fmt.Errorf("archive entry %s too large", f.Name)
	}
	return data, nil
}

var infoTemplate = template.Must(template.New("info").Funcs(template.FuncMap{
	"join": func(s []string) string { return strings.Join(s, ", ") },
}).Parse(`<!DOCTYPE html>
<html lang="id">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Series}} - Chapter {{.Number}}</title>
</head>
<body>
<h1>{{.Series}}</h1>
<h2>Chapter {{.Number}}{{with .Meta.Title}} - {{.}}{{end}}</h2>
<div class="metadata">
{{- with .Meta.Summary}}
<p class="summary">{{.}}</p>
{{- end}}
<div class="field"><span class="label">Total Pages:</span> {{.Pages}}</div>
{{- with .Genres}}
<div class="field"><span class="label">Genres:</span> {{join .}}</div>
{{- end}}
{{- with .Tags}}
<div class="field"><span class="label">Tags:</span> {{join .}}</div>
{{- end}}
{{- with .Meta.Writer}}
<div class="field"><span class="label">Writer:</span> {{.}}</div>
{{- end}}
{{- with .Meta.Penciller}}
<div class="field"><span class="label">Penciller:</span> {{.}}</div>
{{- end}}
{{- with .AltTitles}}
<div class="field"><span class="label">Alternative Titles:</span> {{join .}}</div>
{{- end}}
<div class="field"><span class="label">Uploaded:</span> {{.Uploaded}}</div>
</div>
</body>
</html>
`))

func renderInfo(meta ComicInfo, number float64, pages int, uploaded string) ([]byte, error) {
	series := meta.Series
	if series == "" {
		series = "Unknown Series"
	}

	var buf bytes.Buffer
	err := infoTemplate.Execute(&buf, map[string]any{
		"Series":    series,
		"Number":    strconv.FormatFloat(number, 'f', -1, 64),
		"Meta":      meta,
		"Pages":     pages,
		"Genres":    meta.Genres(),
		"Tags":      meta.TagList(),
		"AltTitles": meta.AlternativeTitles(),
		"Uploaded":  uploaded,
	})
	if err != nil {
		return nil, fmt.Errorf("render info page: %w", err)
	}
	return buf.Bytes(), nil
}
