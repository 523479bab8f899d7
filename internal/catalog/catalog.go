// Package catalog is the persistence boundary for sources, comics, chapters,
// mirrored page rows and the scrape audit trail.
package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("catalog: not found")

// Audit actions.
const (
	ActionCacheChapter    = "CACHE_CHAPTER"
	ActionCleanupCache    = "CLEANUP_CACHE"
	ActionUniversalScrape = "UNIVERSAL_SCRAPE"
	ActionScrapeBlocked   = "SCRAPE_BLOCKED"
	ActionCBZUpload       = "CBZ_UPLOAD"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

type Source struct {
	ID      string
	Code    string
	Name    string
	BaseURL string
}

type Comic struct {
	ID          string
	Title       string
	Slug        string
	CoverURL    string
	Description string
	Status      string
	Type        string
	Rating      *float64
	Genres      []string
	Author      string
	Artist      string
	SourceID    string
	SourceSlug  string
	SourceURL   string
	UpdatedAt   time.Time
}

type Chapter struct {
	ID              string
	ComicID         string
	Number          float64
	Title           string
	SourceURL       string
	SourceChapterID string
}

// ChapterSource is what the mirror needs to know about a chapter: where it
// lives upstream and which source adapter understands it.
type ChapterSource struct {
	ChapterID     string
	ComicID       string
	ChapterNumber float64
	SourceURL     string
	SourceID      string
	SourceCode    string
}

type CachedPage struct {
	ID             string
	ChapterID      string
	PageNumber     int
	SourceImageURL string
	CachedImageURL string
	CachedAt       time.Time
	ExpiresAt      time.Time
}

// Fresh reports whether every row outlives now. An empty set is not fresh.
func Fresh(pages []CachedPage, now time.Time) bool {
	if len(pages) == 0 {
		return false
	}
	for _, p := range pages {
		if !p.ExpiresAt.After(now) {
			return false
		}
	}
	return true
}

// ExpiredPage is a stale cache row joined with the chapter it belongs to.
type ExpiredPage struct {
	ID            string
	ChapterID     string
	ComicID       string
	ChapterNumber float64
}

type ScrapeLog struct {
	SourceID     string
	Action       string
	TargetURL    string
	Status       string
	ErrorMessage string
	Actor        string
	CreatedAt    time.Time
}

type Store interface {
	SourceByCode(ctx context.Context, code string) (*Source, error)
	CreateSource(ctx context.Context, s *Source) error

	ComicByID(ctx context.Context, id string) (*Comic, error)
	// ComicByTitle matches case-insensitively.
	ComicByTitle(ctx context.Context, title string) (*Comic, error)
	// UpsertComic updates by c.ID when set, otherwise inserts or updates the
	// row with the same slug. c.ID is filled in on return.
	UpsertComic(ctx context.Context, c *Comic) error
	// UpsertChapter keys on (ComicID, Number).
	UpsertChapter(ctx context.Context, ch *Chapter) error

	ChapterSource(ctx context.Context, chapterID string) (*ChapterSource, error)

	// CachedPages returns the chapter's rows ordered by page number.
	CachedPages(ctx context.Context, chapterID string) ([]CachedPage, error)
	DeleteCachedPages(ctx context.Context, chapterID string) (int, error)
	InsertCachedPages(ctx context.Context, pages []CachedPage) error
	// ExpiredPages returns at most limit rows with expires_at <= now, oldest first.
	ExpiredPages(ctx context.Context, now time.Time, limit int) ([]ExpiredPage, error)
	DeleteCachedPagesByID(ctx context.Context, ids []string) (int, error)

	InsertScrapeLog(ctx context.Context, l ScrapeLog) error
}
