package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/brogergvhs/mangamirror/internal/catalog"
	"github.com/brogergvhs/mangamirror/internal/clock"
	"github.com/brogergvhs/mangamirror/internal/storage"
)

const (
	DefaultSweepLimit       = 500
	defaultSweepConcurrency = 4
)

type SweepResult struct {
	DeletedFiles      int `json:"deletedFiles"`
	DeletedRows       int `json:"deletedRows"`
	ChaptersProcessed int `json:"chaptersProcessed"`
}

type Sweeper struct {
	store       catalog.Store
	objects     storage.ObjectStore
	locker      Locker
	clock       clock.Clock
	log         *slog.Logger
	concurrency int
}

func NewSweeper(store catalog.Store, objects storage.ObjectStore, cfg Config) *Sweeper {
	s := &Sweeper{
		store:       store,
		objects:     objects,
		locker:      cfg.Locker,
		clock:       cfg.Clock,
		log:         cfg.Logger,
		concurrency: cfg.Workers,
	}
	if s.locker == nil {
		s.locker = processLocker
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.concurrency < 1 {
		s.concurrency = defaultSweepConcurrency
	}
	return s
}

type chapterGroup struct {
	chapterID string
	comicID   string
	number    float64
	rowIDs    []string
}

// groupExpired buckets rows by (comic, chapter number) in first-seen order.
func groupExpired(rows []catalog.ExpiredPage) []*chapterGroup {
	type key struct {
		comic  string
		number float64
	}

	var out []*chapterGroup
	idx := map[key]*chapterGroup{}
	for _, r := range rows {
		k := key{r.ComicID, r.ChapterNumber}
		g, ok := idx[k]
		if !ok {
			g = &chapterGroup{chapterID: r.ChapterID, comicID: r.ComicID, number: r.ChapterNumber}
			idx[k] = g
			out = append(out, g)
		}
		g.rowIDs = append(g.rowIDs, r.ID)
	}
	return out
}

// Sweep removes up to limit expired cache rows and the mirrored objects of
// their chapters. Rows go first so a concurrent reader sees either a fresh
// chapter or none at all. A failing chapter does not stop the others; their
// errors are joined into the returned error next to the partial result.
func (s *Sweeper) Sweep(ctx context.Context, limit int) (SweepResult, error) {
	if limit <= 0 {
		limit = DefaultSweepLimit
	}

	var res SweepResult
	rows, err := s.store.ExpiredPages(ctx, s.clock.Now(), limit)
	if err != nil {
		s.audit(ctx, res, err)
		return res, err
	}
	if len(rows) == 0 {
		s.log.Debug("no expired cache rows")
		s.audit(ctx, res, nil)
		return res, nil
	}

	groups := groupExpired(rows)

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, grp := range groups {
		g.Go(func() error {
			rowsDeleted, filesDeleted, err := s.sweepChapter(gctx, grp)

			mu.Lock()
			defer mu.Unlock()
			res.DeletedRows += rowsDeleted
			res.DeletedFiles += filesDeleted
			res.ChaptersProcessed++
			if err != nil {
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	err = errors.Join(errs...)
	s.log.Info("cache sweep finished",
		"rows", res.DeletedRows, "files", res.DeletedFiles, "chapters", res.ChaptersProcessed, "errors", len(errs))
	s.audit(ctx, res, err)

	return res, err
}

func (s *Sweeper) sweepChapter(ctx context.Context, grp *chapterGroup) (int, int, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(grp.chapterID))
	if err != nil {
		return 0, 0, fmt.Errorf("chapter %s: lock: %w", grp.chapterID, err)
	}
	defer unlock()

	n, err := s.store.DeleteCachedPagesByID(ctx, grp.rowIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("chapter %s: delete rows: %w", grp.chapterID, err)
	}
	if n == 0 {
		// a refresh got here first and already replaced the objects
		return 0, 0, nil
	}

	prefix := storage.ChapterCachePrefix(grp.comicID, grp.number)
	keys, err := s.objects.List(ctx, prefix)
	if err != nil {
		return n, 0, fmt.Errorf("chapter %s: list %s: %w", grp.chapterID, prefix, err)
	}

	files, err := storage.DeleteAll(ctx, s.objects, keys)
	if err != nil {
		return n, files, fmt.Errorf("chapter %s: %w", grp.chapterID, err)
	}
	s.log.Debug("chapter cache evicted", "chapter", grp.chapterID, "rows", n, "files", files)

	return n, files, nil
}

func (s *Sweeper) audit(ctx context.Context, res SweepResult, err error) {
	entry := catalog.ScrapeLog{
		Action:    catalog.ActionCleanupCache,
		Status:    catalog.StatusSuccess,
		TargetURL: fmt.Sprintf("rows=%d files=%d chapters=%d", res.DeletedRows, res.DeletedFiles, res.ChaptersProcessed),
		CreatedAt: s.clock.Now(),
	}
	if err != nil {
		entry.Status = catalog.StatusFailed
		entry.ErrorMessage = err.Error()
	}
	if lerr := s.store.InsertScrapeLog(context.WithoutCancel(ctx), entry); lerr != nil {
		s.log.Warn("audit log failed", "action", entry.Action, "err", lerr)
	}
}
