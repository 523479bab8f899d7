package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/brogergvhs/mangamirror/internal/catalog"
	"github.com/brogergvhs/mangamirror/internal/clock"
	"github.com/brogergvhs/mangamirror/internal/config"
	"github.com/brogergvhs/mangamirror/internal/fetch"
	"github.com/brogergvhs/mangamirror/internal/ingest"
	"github.com/brogergvhs/mangamirror/internal/mirror"
	"github.com/brogergvhs/mangamirror/internal/providers/generic"
	"github.com/brogergvhs/mangamirror/internal/storage"
	"github.com/brogergvhs/mangamirror/internal/ui"
	"github.com/brogergvhs/mangamirror/internal/util"
)

// app holds every long lived dependency a command needs.
type app struct {
	cfg *config.Config
	log *slog.Logger

	pool    *pgxpool.Pool
	redis   *redis.Client
	store   catalog.Store
	objects *storage.S3Store

	fetcher  *fetch.Fetcher
	scraper  *generic.Scraper
	pipeline *mirror.Pipeline
	sweeper  *mirror.Sweeper
	ingest   *ingest.Service
}

func loadConfig(o config.Options) (*config.Config, string, error) {
	o.IgnoreConfig = flagIgnoreConfig
	o.Debug = flagDebug
	o.EnvFile = flagEnvFile
	if o.DatabaseURL == "" {
		o.DatabaseURL = flagDatabaseURL
	}
	return config.LoadMerged(o)
}

func newApp(ctx context.Context, o config.Options, jsonLogs bool) (*app, error) {
	cfg, used, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	log := ui.NewLogger(cfg.Debug, jsonLogs || cfg.LogJSON)
	slog.SetDefault(log)
	log.Debug("config loaded", "from", used)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.pool, err = catalog.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	a.store = catalog.NewPostgresStore(a.pool)

	a.objects, err = storage.NewS3Store(storage.S3Config{
		Endpoint:   cfg.Storage.Endpoint,
		Region:     cfg.Storage.Region,
		Bucket:     cfg.Storage.Bucket,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		UseSSL:     cfg.Storage.UseSSL,
		PublicBase: cfg.Storage.PublicBase,
	}, log)
	if err != nil {
		return nil, err
	}

	var locker mirror.Locker = mirror.NewLocalLocker()
	if cfg.RedisURL != "" {
		a.redis, err = mirror.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		locker = mirror.NewRedisLocker(a.redis, cfg.LockTTL, log)
	}

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:          cfg.Fetch.Timeout,
		UserAgent:        util.PickUserAgent(cfg.Fetch.UserAgent),
		Cookie:           cfg.Fetch.Cookie,
		CookieFile:       cfg.Fetch.CookieFile,
		CloudflareBypass: cfg.Fetch.CloudflareBypass,
		Logger:           log,
	})
	if err != nil {
		return nil, err
	}

	clk := clock.Real{}
	a.fetcher = fetch.New(client, fetch.Config{
		MinDelay:   cfg.Fetch.MinDelay,
		MaxRetries: cfg.Fetch.MaxRetries,
		Timeout:    cfg.Fetch.Timeout,
		Pacer:      fetch.NewHostPacer(clk, cfg.Fetch.MinDelay, cfg.Fetch.HostPerMinute),
		Clock:      clk,
		Logger:     log,
	})
	a.scraper = generic.NewScraper(a.fetcher, log)

	mcfg := mirror.Config{
		Workers:     cfg.Workers,
		PageTimeout: cfg.PageTimeout,
		Locker:      locker,
		Clock:       clk,
		Logger:      log,
	}
	a.pipeline = mirror.NewPipeline(a.store, a.objects, a.scraper, a.fetcher, mcfg)
	a.sweeper = mirror.NewSweeper(a.store, a.objects, mcfg)
	a.ingest = ingest.NewService(a.store, a.scraper, a.objects, ingest.Config{
		Policy: ingest.URLPolicy{AllowedDomains: cfg.AllowedDomains},
		Clock:  clk,
		Logger: log,
	})

	ok = true
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close failed", "err", err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *app) migrate() error {
	if err := catalog.Migrate(a.cfg.DatabaseURL, a.log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
