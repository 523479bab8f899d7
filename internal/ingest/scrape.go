// Package ingest brings comics into the catalog, either by scraping a series
// page or by unpacking an uploaded CBZ archive.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/brogergvhs/mangamirror/internal/catalog"
	"github.com/brogergvhs/mangamirror/internal/chapters"
	"github.com/brogergvhs/mangamirror/internal/clock"
	"github.com/brogergvhs/mangamirror/internal/providers"
	"github.com/brogergvhs/mangamirror/internal/slug"
	"github.com/brogergvhs/mangamirror/internal/storage"
)

type ComicScraper interface {
	ScrapeDetailed(ctx context.Context, pageURL string, custom *providers.CustomSelectors) (*providers.ScrapeResult, error)
}

type Config struct {
	Policy URLPolicy
	Clock  clock.Clock
	Logger *slog.Logger
}

type Service struct {
	store   catalog.Store
	scraper ComicScraper
	objects storage.ObjectStore
	policy  URLPolicy
	clock   clock.Clock
	log     *slog.Logger
}

func NewService(store catalog.Store, scraper ComicScraper, objects storage.ObjectStore, cfg Config) *Service {
	s := &Service{
		store:   store,
		scraper: scraper,
		objects: objects,
		policy:  cfg.Policy,
		clock:   cfg.Clock,
		log:     cfg.Logger,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

type Request struct {
	URL             string                     `json:"url"`
	SourceCode      string                     `json:"sourceCode,omitempty"`
	CustomSelectors *providers.CustomSelectors `json:"customSelectors,omitempty"`
	ComicID         string                     `json:"komikId,omitempty"`
	TestOnly        bool                       `json:"testOnly,omitempty"`
	// ChapterFilter keeps a subset of chapters: "12", "1-10" or "1,4,7".
	ChapterFilter string `json:"chapterFilter,omitempty"`
	Actor         string `json:"-"`
}

type Response struct {
	Success        bool                    `json:"success"`
	ComicID        string                  `json:"komikId,omitempty"`
	SourceCode     string                  `json:"sourceCode,omitempty"`
	Comic          *providers.ScrapedComic `json:"comic,omitempty"`
	ChaptersCount  int                     `json:"chaptersCount"`
	ChaptersSynced int                     `json:"chaptersSynced"`
	Selectors      map[string]string       `json:"selectors,omitempty"`
	TestOnly       bool                    `json:"testOnly,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

// Scrape reads a series page and, unless TestOnly is set, syncs it into the
// catalog. On failure the returned Response still carries whatever comic data
// was extracted, for operator preview.
func (s *Service) Scrape(ctx context.Context, req Request) (*Response, error) {
	if err := s.policy.Validate(req.URL); err != nil {
		s.audit(ctx, catalog.ScrapeLog{
			Action:       catalog.ActionScrapeBlocked,
			TargetURL:    req.URL,
			Status:       catalog.StatusFailed,
			ErrorMessage: err.Error(),
			Actor:        req.Actor,
		})
		return &Response{Error: err.Error()}, err
	}

	code := strings.ToUpper(strings.TrimSpace(req.SourceCode))
	if code == "" {
		code = providers.DetectSourceCode(req.URL)
	}
	log := s.log.With("url", req.URL, "source", code, "actor", req.Actor)

	src, err := s.source(ctx, code, req.URL, !req.TestOnly)
	if err != nil {
		return &Response{SourceCode: code, Error: err.Error()}, err
	}
	entry := catalog.ScrapeLog{
		SourceID:  src.ID,
		Action:    catalog.ActionUniversalScrape,
		TargetURL: req.URL,
		Status:    catalog.StatusSuccess,
		Actor:     req.Actor,
	}

	resp := &Response{SourceCode: code, TestOnly: req.TestOnly}

	res, err := s.scraper.ScrapeDetailed(ctx, req.URL, req.CustomSelectors)
	if res != nil {
		resp.Comic = res.Comic
		resp.Selectors = res.Selectors
		resp.ChaptersCount = len(res.Comic.Chapters)
	}
	if err != nil {
		log.Warn("scrape failed", "err", err)
		entry.Status = catalog.StatusFailed
		entry.ErrorMessage = err.Error()
		s.audit(ctx, entry)
		resp.Error = err.Error()
		return resp, err
	}

	comic := res.Comic
	if req.ChapterFilter != "" {
		comic.Chapters = chapters.Filter(comic.Chapters, req.ChapterFilter)
		resp.ChaptersCount = len(comic.Chapters)
	}

	if req.TestOnly {
		resp.Success = true
		entry.ErrorMessage = "test only"
		s.audit(ctx, entry)
		return resp, nil
	}

	row := &catalog.Comic{
		ID:          req.ComicID,
		Title:       comic.Title,
		Slug:        slug.From(comic.Title),
		CoverURL:    comic.CoverURL,
		Description: comic.Description,
		Status:      comic.Status,
		Type:        comic.Type,
		Rating:      comic.Rating,
		Genres:      comic.Genres,
		Author:      comic.Author,
		Artist:      comic.Artist,
		SourceID:    src.ID,
		SourceSlug:  chapters.SourceID(req.URL),
		SourceURL:   req.URL,
	}
	if err := s.store.UpsertComic(ctx, row); err != nil {
		err = fmt.Errorf("save comic: %w", err)
		entry.Status = catalog.StatusFailed
		entry.ErrorMessage = err.Error()
		s.audit(ctx, entry)
		resp.Error = err.Error()
		return resp, err
	}
	resp.ComicID = row.ID

	for _, ch := range comic.Chapters {
		err := s.store.UpsertChapter(ctx, &catalog.Chapter{
			ComicID:         row.ID,
			Number:          ch.ChapterNumber,
			Title:           ch.Title,
			SourceURL:       ch.SourceURL,
			SourceChapterID: ch.SourceChapterID,
		})
		if err != nil {
			log.Warn("chapter not synced", "number", ch.ChapterNumber, "err", err)
			continue
		}
		resp.ChaptersSynced++
	}

	if resp.ChaptersSynced < len(comic.Chapters) {
		entry.ErrorMessage = fmt.Sprintf("%d of %d chapters not synced", len(comic.Chapters)-resp.ChaptersSynced, len(comic.Chapters))
	}
	s.audit(ctx, entry)

	log.Info("comic synced", "comic", row.ID, "title", row.Title, "chapters", resp.ChaptersSynced)
	resp.Success = true
	return resp, nil
}

// source finds the catalog row for code. When create is set a missing row is
// created from the URL's host; otherwise an unsaved placeholder is returned.
func (s *Service) source(ctx context.Context, code, rawURL string, create bool) (*catalog.Source, error) {
	src, err := s.store.SourceByCode(ctx, code)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, err
	}

	src = &catalog.Source{Code: code, Name: providers.SourceName(code, rawURL)}
	if u, err := url.Parse(rawURL); err == nil {
		src.BaseURL = u.Scheme + "://" + u.Host
	}
	if !create {
		return src, nil
	}
	if err := s.store.CreateSource(ctx, src); err != nil {
		return nil, err
	}
	s.log.Info("source registered", "code", code, "base_url", src.BaseURL)
	return src, nil
}

func (s *Service) audit(ctx context.Context, entry catalog.ScrapeLog) {
	entry.CreatedAt = s.clock.Now()
	if err := s.store.InsertScrapeLog(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn("audit log failed", "action", entry.Action, "err", err)
	}
}
