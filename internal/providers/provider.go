package providers

import (
	"context"

	"github.com/brogergvhs/mangamirror/internal/detect"
)

const (
	StatusOngoing   = "Ongoing"
	StatusCompleted = "Completed"
	StatusHiatus    = "Hiatus"

	TypeManga  = "manga"
	TypeManhwa = "manhwa"
	TypeManhua = "manhua"
	TypeNovel  = "novel"
)

type ScrapedComic struct {
	Title       string           `json:"title"`
	CoverURL    string           `json:"coverUrl,omitempty"`
	Description string           `json:"description,omitempty"`
	Status      string           `json:"status"`
	Type        string           `json:"type"`
	Rating      *float64         `json:"rating,omitempty"`
	Genres      []string         `json:"genres"`
	Author      string           `json:"author,omitempty"`
	Artist      string           `json:"artist,omitempty"`
	Chapters    []ScrapedChapter `json:"chapters"`
}

// ScrapedChapter is keyed by (comic, ChapterNumber) when persisted.
// ChapterNumber 0 means the number could not be parsed.
type ScrapedChapter struct {
	SourceURL       string  `json:"sourceUrl"`
	SourceChapterID string  `json:"sourceChapterId"`
	ChapterNumber   float64 `json:"chapterNumber"`
	Title           string  `json:"title,omitempty"`
}

// CustomSelectors overrides detection per field. Empty fields are detected.
// ChapterLink and ChapterTitle are evaluated inside each chapter list element.
type CustomSelectors struct {
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	Cover        string `json:"cover,omitempty" yaml:"cover,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	Genres       string `json:"genres,omitempty" yaml:"genres,omitempty"`
	Status       string `json:"status,omitempty" yaml:"status,omitempty"`
	Rating       string `json:"rating,omitempty" yaml:"rating,omitempty"`
	ChapterList  string `json:"chapterList,omitempty" yaml:"chapter_list,omitempty"`
	ChapterLink  string `json:"chapterLink,omitempty" yaml:"chapter_link,omitempty"`
	ChapterTitle string `json:"chapterTitle,omitempty" yaml:"chapter_title,omitempty"`
}

func (c *CustomSelectors) Overrides() detect.Overrides {
	if c == nil {
		return nil
	}

	return detect.Overrides{
		detect.Title:       c.Title,
		detect.Cover:       c.Cover,
		detect.Description: c.Description,
		detect.Genres:      c.Genres,
		detect.Status:      c.Status,
		detect.Rating:      c.Rating,
		detect.ChapterList: c.ChapterList,
	}
}

type Page struct {
	PageNumber int    `json:"pageNumber"`
	ImageURL   string `json:"imageUrl"`
}

// Scraper is implemented by the universal scraper; the mirror pipeline and
// the ingest service depend only on this.
type Scraper interface {
	Scrape(ctx context.Context, url string, custom *CustomSelectors) (*ScrapedComic, error)
	ScrapeImages(ctx context.Context, chapterURL, customSelector string) ([]string, error)
	ScrapeWithAdapter(ctx context.Context, chapterURL string, a Adapter) ([]string, error)
}

// ScrapeResult is a scrape plus the selector that was used for each field,
// shown to operators in previews.
type ScrapeResult struct {
	Comic     *ScrapedComic     `json:"comic"`
	Selectors map[string]string `json:"selectors"`
}
