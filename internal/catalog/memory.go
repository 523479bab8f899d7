package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps the catalog in process. It backs tests and dry runs
// started without a database.
type MemoryStore struct {
	mu       sync.Mutex
	sources  map[string]Source
	comics   map[string]Comic
	chapters map[string]Chapter
	pages    map[string]CachedPage
	logs     []ScrapeLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sources:  map[string]Source{},
		comics:   map[string]Comic{},
		chapters: map[string]Chapter{},
		pages:    map[string]CachedPage{},
	}
}

func (m *MemoryStore) SourceByCode(_ context.Context, code string) (*Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sources {
		if s.Code == code {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("source %s: %w", code, ErrNotFound)
}

func (m *MemoryStore) CreateSource(_ context.Context, src *Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sources {
		if s.Code == src.Code {
			src.ID = s.ID
			return nil
		}
	}
	src.ID = uuid.NewString()
	m.sources[src.ID] = *src
	return nil
}

func (m *MemoryStore) ComicByID(_ context.Context, id string) (*Comic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comics[id]
	if !ok {
		return nil, fmt.Errorf("comic %s: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (m *MemoryStore) ComicByTitle(_ context.Context, title string) (*Comic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.comics {
		if strings.EqualFold(c.Title, title) {
			return &c, nil
		}
	}
	return nil, fmt.Errorf("comic %q: %w", title, ErrNotFound)
}

func (m *MemoryStore) UpsertComic(_ context.Context, c *Comic) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID != "" {
		old, ok := m.comics[c.ID]
		if !ok {
			return fmt.Errorf("update comic %s: %w", c.ID, ErrNotFound)
		}
		c.Slug = old.Slug
		c.SourceID, c.SourceSlug, c.SourceURL = old.SourceID, old.SourceSlug, old.SourceURL
		c.UpdatedAt = time.Now()
		m.comics[c.ID] = *c
		return nil
	}

	for id, old := range m.comics {
		if old.Slug == c.Slug {
			c.ID = id
			c.SourceID, c.SourceSlug, c.SourceURL = old.SourceID, old.SourceSlug, old.SourceURL
			c.UpdatedAt = time.Now()
			m.comics[id] = *c
			return nil
		}
	}

	c.ID = uuid.NewString()
	c.UpdatedAt = time.Now()
	m.comics[c.ID] = *c
	return nil
}

func (m *MemoryStore) UpsertChapter(_ context.Context, ch *Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.comics[ch.ComicID]; !ok {
		return fmt.Errorf("upsert chapter %v of %s: %w", ch.Number, ch.ComicID, ErrNotFound)
	}

	for id, old := range m.chapters {
		if old.ComicID == ch.ComicID && old.Number == ch.Number {
			ch.ID = id
			m.chapters[id] = *ch
			return nil
		}
	}

	ch.ID = uuid.NewString()
	m.chapters[ch.ID] = *ch
	return nil
}

func (m *MemoryStore) ChapterSource(_ context.Context, chapterID string) (*ChapterSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.chapters[chapterID]
	if !ok {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}

	cs := &ChapterSource{
		ChapterID:     ch.ID,
		ComicID:       ch.ComicID,
		ChapterNumber: ch.Number,
		SourceURL:     ch.SourceURL,
	}
	if c, ok := m.comics[ch.ComicID]; ok && c.SourceID != "" {
		cs.SourceID = c.SourceID
		cs.SourceCode = m.sources[c.SourceID].Code
	}
	return cs, nil
}

func (m *MemoryStore) CachedPages(_ context.Context, chapterID string) ([]CachedPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []CachedPage
	for _, p := range m.pages {
		if p.ChapterID == chapterID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out, nil
}

func (m *MemoryStore) DeleteCachedPages(_ context.Context, chapterID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, p := range m.pages {
		if p.ChapterID == chapterID {
			delete(m.pages, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) InsertCachedPages(_ context.Context, pages []CachedPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range pages {
		for id, old := range m.pages {
			if old.ChapterID == p.ChapterID && old.PageNumber == p.PageNumber {
				delete(m.pages, id)
			}
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		m.pages[p.ID] = p
	}
	return nil
}

func (m *MemoryStore) ExpiredPages(_ context.Context, now time.Time, limit int) ([]ExpiredPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []CachedPage
	for _, p := range m.pages {
		if !p.ExpiresAt.After(now) {
			stale = append(stale, p)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		a, b := stale[i], stale[j]
		if !a.ExpiresAt.Equal(b.ExpiresAt) {
			return a.ExpiresAt.Before(b.ExpiresAt)
		}
		if a.ChapterID != b.ChapterID {
			return a.ChapterID < b.ChapterID
		}
		return a.PageNumber < b.PageNumber
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}

	out := make([]ExpiredPage, 0, len(stale))
	for _, p := range stale {
		ch := m.chapters[p.ChapterID]
		out = append(out, ExpiredPage{
			ID:            p.ID,
			ChapterID:     p.ChapterID,
			ComicID:       ch.ComicID,
			ChapterNumber: ch.Number,
		})
	}
	return out, nil
}

func (m *MemoryStore) DeleteCachedPagesByID(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := m.pages[id]; ok {
			delete(m.pages, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) InsertScrapeLog(_ context.Context, l ScrapeLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	m.logs = append(m.logs, l)
	return nil
}

// Logs returns a copy of the audit trail in insertion order.
func (m *MemoryStore) Logs() []ScrapeLog {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ScrapeLog, len(m.logs))
	copy(out, m.logs)
	return out
}

// Chapters returns the comic's chapters ordered by number.
func (m *MemoryStore) Chapters(comicID string) []Chapter {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Chapter
	for _, ch := range m.chapters {
		if ch.ComicID == comicID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
