// Package mirror copies chapter page images into object storage, serves the
// mirrored URLs while they are fresh and sweeps them away once they expire.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brogergvhs/mangamirror/internal/catalog"
	"github.com/brogergvhs/mangamirror/internal/clock"
	"github.com/brogergvhs/mangamirror/internal/fetch"
	"github.com/brogergvhs/mangamirror/internal/providers"
	"github.com/brogergvhs/mangamirror/internal/storage"
)

// CacheTTL is how long a mirrored chapter is served before it is refreshed.
const CacheTTL = 24 * time.Hour

const (
	DefaultWorkers     = 4
	DefaultPageTimeout = 30 * time.Second
)

var ErrNoPagesFound = errors.New("no pages found")

// ImageSource lists the page images of a chapter.
type ImageSource interface {
	ScrapeImages(ctx context.Context, chapterURL, customSelector string) ([]string, error)
	ScrapeWithAdapter(ctx context.Context, chapterURL string, a providers.Adapter) ([]string, error)
}

// ImageOpener streams a single image.
type ImageOpener interface {
	Open(ctx context.Context, target, referer string) (*fetch.Stream, error)
}

// Progress receives page and byte counts while a chapter is mirrored.
type Progress interface {
	Update(done, total int, bytes int64)
	MarkDone()
}

type Config struct {
	Workers     int
	PageTimeout time.Duration
	Locker      Locker
	Clock       clock.Clock
	Logger      *slog.Logger
}

type Pipeline struct {
	store   catalog.Store
	objects storage.ObjectStore
	images  ImageSource
	opener  ImageOpener

	workers     int
	pageTimeout time.Duration
	locker      Locker
	clock       clock.Clock
	log         *slog.Logger
}

func NewPipeline(store catalog.Store, objects storage.ObjectStore, images ImageSource, opener ImageOpener, cfg Config) *Pipeline {
	p := &Pipeline{
		store:       store,
		objects:     objects,
		images:      images,
		opener:      opener,
		workers:     cfg.Workers,
		pageTimeout: cfg.PageTimeout,
		locker:      cfg.Locker,
		clock:       cfg.Clock,
		log:         cfg.Logger,
	}
	if p.workers < 1 {
		p.workers = DefaultWorkers
	}
	if p.pageTimeout <= 0 {
		p.pageTimeout = DefaultPageTimeout
	}
	if p.locker == nil {
		p.locker = processLocker
	}
	if p.clock == nil {
		p.clock = clock.Real{}
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

type Result struct {
	ChapterID string           `json:"chapterId"`
	Cached    bool             `json:"cached"`
	Pages     []providers.Page `json:"pages"`
	Failed    int              `json:"failedPages,omitempty"`
	Bytes     int64            `json:"bytes,omitempty"`
}

type ensureOptions struct {
	progress Progress
}

type Option func(*ensureOptions)

// WithProgress reports mirroring progress to pr.
func WithProgress(pr Progress) Option {
	return func(o *ensureOptions) { o.progress = pr }
}

// EnsureCached returns the chapter's mirrored pages, mirroring them first
// when the cache is empty or any row has expired.
func (p *Pipeline) EnsureCached(ctx context.Context, chapterID string, opts ...Option) (*Result, error) {
	var o ensureOptions
	for _, fn := range opts {
		fn(&o)
	}

	cs, err := p.store.ChapterSource(ctx, chapterID)
	if err != nil {
		return nil, err
	}

	if res, ok, err := p.fresh(ctx, chapterID); err != nil || ok {
		return res, err
	}

	unlock, err := p.locker.Lock(ctx, lockKey(chapterID))
	if err != nil {
		return nil, fmt.Errorf("lock chapter %s: %w", chapterID, err)
	}
	defer unlock()

	// another run may have refreshed it while we waited
	if res, ok, err := p.fresh(ctx, chapterID); err != nil || ok {
		return res, err
	}

	res, err := p.refresh(ctx, cs, o.progress)
	p.audit(ctx, cs, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) fresh(ctx context.Context, chapterID string) (*Result, bool, error) {
	rows, err := p.store.CachedPages(ctx, chapterID)
	if err != nil {
		return nil, false, err
	}
	if !catalog.Fresh(rows, p.clock.Now()) {
		return nil, false, nil
	}

	res := &Result{ChapterID: chapterID, Cached: true, Pages: make([]providers.Page, 0, len(rows))}
	for _, r := range rows {
		res.Pages = append(res.Pages, providers.Page{PageNumber: r.PageNumber, ImageURL: r.CachedImageURL})
	}
	return res, true, nil
}

func (p *Pipeline) refresh(ctx context.Context, cs *catalog.ChapterSource, pr Progress) (*Result, error) {
	log := p.log.With("chapter", cs.ChapterID, "comic", cs.ComicID, "number", cs.ChapterNumber)

	dropped, err := p.store.DeleteCachedPages(ctx, cs.ChapterID)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		log.Debug("dropped stale cache rows", "rows", dropped)
		p.dropObjects(ctx, cs, log)
	}

	if cs.SourceURL == "" {
		return nil, fmt.Errorf("chapter %s has no source URL", cs.ChapterID)
	}

	urls, err := p.scrape(ctx, cs)
	if err != nil {
		return nil, fmt.Errorf("scrape chapter %s: %w", cs.ChapterID, err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("chapter %s: %w", cs.ChapterID, ErrNoPagesFound)
	}

	pages, bytes, errs := p.mirrorPages(ctx, cs, urls, pr)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, e := range errs {
		log.Warn("page not mirrored", "err", e)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("chapter %s: all %d pages failed: %w", cs.ChapterID, len(urls), ErrNoPagesFound)
	}

	now := p.clock.Now()
	for i := range pages {
		pages[i].CachedAt = now
		pages[i].ExpiresAt = now.Add(CacheTTL)
	}
	if err := p.store.InsertCachedPages(ctx, pages); err != nil {
		return nil, err
	}

	res := &Result{ChapterID: cs.ChapterID, Failed: len(errs), Bytes: bytes}
	for _, pg := range pages {
		res.Pages = append(res.Pages, providers.Page{PageNumber: pg.PageNumber, ImageURL: pg.CachedImageURL})
	}
	log.Info("chapter mirrored", "pages", len(pages), "failed", len(errs), "bytes", bytes)

	return res, nil
}

func (p *Pipeline) scrape(ctx context.Context, cs *catalog.ChapterSource) ([]string, error) {
	if a, ok := providers.AdapterFor(cs.SourceCode); ok {
		return p.images.ScrapeWithAdapter(ctx, cs.SourceURL, a)
	}
	return p.images.ScrapeImages(ctx, cs.SourceURL, "")
}

// dropObjects clears leftovers of an earlier run so a shorter chapter does not
// keep orphaned higher-numbered pages.
func (p *Pipeline) dropObjects(ctx context.Context, cs *catalog.ChapterSource, log *slog.Logger) {
	keys, err := p.objects.List(ctx, storage.ChapterCachePrefix(cs.ComicID, cs.ChapterNumber))
	if err != nil {
		log.Warn("list stale objects failed", "err", err)
		return
	}
	if _, err := storage.DeleteAll(ctx, p.objects, keys); err != nil {
		log.Warn("delete stale objects failed", "err", err)
	}
}

func (p *Pipeline) audit(ctx context.Context, cs *catalog.ChapterSource, res *Result, err error) {
	entry := catalog.ScrapeLog{
		SourceID:  cs.SourceID,
		Action:    catalog.ActionCacheChapter,
		TargetURL: cs.SourceURL,
		Status:    catalog.StatusSuccess,
		CreatedAt: p.clock.Now(),
	}
	if err != nil {
		entry.Status = catalog.StatusFailed
		entry.ErrorMessage = err.Error()
	} else if res != nil && res.Failed > 0 {
		entry.ErrorMessage = fmt.Sprintf("%d pages failed", res.Failed)
	}

	// the audit row must land even when the request was cancelled
	if lerr := p.store.InsertScrapeLog(context.WithoutCancel(ctx), entry); lerr != nil {
		p.log.Warn("audit log failed", "action", entry.Action, "err", lerr)
	}
}
