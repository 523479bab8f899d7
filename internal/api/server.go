// Package api exposes scraping, chapter caching, cache eviction and archive
// upload over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/brogergvhs/mangamirror/internal/clock"
	"github.com/brogergvhs/mangamirror/internal/ingest"
	"github.com/brogergvhs/mangamirror/internal/mirror"
)

const (
	DefaultScrapePerMinute = 30

	requestTimeout    = 5 * time.Minute
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
	maxUploadBytes    = 512 << 20
)

type Ingester interface {
	Scrape(ctx context.Context, req ingest.Request) (*ingest.Response, error)
	IngestCBZ(ctx context.Context, req ingest.CBZRequest) (*ingest.CBZResult, error)
}

type Cacher interface {
	EnsureCached(ctx context.Context, chapterID string, opts ...mirror.Option) (*mirror.Result, error)
}

type Sweeper interface {
	Sweep(ctx context.Context, limit int) (mirror.SweepResult, error)
}

type Config struct {
	Addr            string
	AdminTokens     []string
	// AllowOpenAdmin serves admin endpoints without a token when AdminTokens
	// is empty. Without it an empty token list rejects every admin request.
	AllowOpenAdmin  bool
	ScrapePerMinute int
	SweepLimit      int
	Clock           clock.Clock
	Logger          *slog.Logger
}

type Server struct {
	ingest  Ingester
	cache   Cacher
	sweeper Sweeper

	adminTokens []string
	openAdmin   bool
	sweepLimit  int
	limiter     *actorLimiter
	log         *slog.Logger

	router     *chi.Mux
	httpServer *http.Server
}

func NewServer(ing Ingester, cache Cacher, sweeper Sweeper, cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ScrapePerMinute <= 0 {
		cfg.ScrapePerMinute = DefaultScrapePerMinute
	}

	s := &Server{
		ingest:      ing,
		cache:       cache,
		sweeper:     sweeper,
		adminTokens: cfg.AdminTokens,
		openAdmin:   cfg.AllowOpenAdmin,
		sweepLimit:  cfg.SweepLimit,
		limiter:     newActorLimiter(cfg.Clock, cfg.ScrapePerMinute),
		log:         cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(chimw.CleanPath)

	r.Get("/health", s.health)

	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/cache", s.cacheChapter)

		api.Group(func(admin chi.Router) {
			admin.Use(s.requireAdmin)
			admin.Post("/scrape", s.scrape)
			admin.Post("/cache/cleanup", s.cleanup)
			admin.Post("/cbz", s.uploadCBZ)
		})
	})

	s.router = r
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
