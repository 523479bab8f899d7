// Package scheduler runs the cache sweep on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brogergvhs/mangamirror/internal/mirror"
)

const (
	DefaultInterval = time.Hour
	runTimeout      = 10 * time.Minute
)

type sweeper interface {
	Sweep(ctx context.Context, limit int) (mirror.SweepResult, error)
}

type Config struct {
	Interval time.Duration
	Limit    int
	Logger   *slog.Logger
}

type Runner struct {
	sweeper  sweeper
	interval time.Duration
	limit    int
	logger   *slog.Logger

	mu     sync.Mutex
	runs   int
	stopCh chan struct{}
}

func NewRunner(s sweeper, cfg Config) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runner{
		sweeper:  s,
		interval: cfg.Interval,
		limit:    cfg.Limit,
		logger:   cfg.Logger.With("component", "sweep-scheduler"),
		stopCh:   make(chan struct{}),
	}
}

// Start sweeps once immediately and then every interval until ctx is done.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("sweep scheduler started", "interval", r.interval.String(), "limit", r.limit)
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		defer close(r.stopCh)

		if err := r.RunOnce(ctx); err != nil {
			r.logger.Warn("initial sweep failed", "error", err)
		}
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("sweep scheduler stopped")
				return
			case <-ticker.C:
				if err := r.RunOnce(ctx); err != nil {
					r.logger.Warn("sweep cycle failed", "error", err)
				}
			}
		}
	}()
}

// StopWait blocks until the loop started by Start has exited or timeout
// elapses.
func (r *Runner) StopWait(timeout time.Duration) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	select {
	case <-r.stopCh:
	case <-time.After(timeout):
	}
}

func (r *Runner) RunOnce(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	res, err := r.sweeper.Sweep(runCtx, r.limit)

	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("sweep expired pages: %w", err)
	}

	level := slog.LevelDebug
	if res.DeletedRows > 0 {
		level = slog.LevelInfo
	}
	r.logger.Log(ctx, level, "sweep finished",
		"deleted_rows", res.DeletedRows,
		"deleted_files", res.DeletedFiles,
		"chapters", res.ChaptersProcessed,
		"took", time.Since(start).Round(time.Millisecond).String())
	return nil
}

// Runs reports how many sweeps have been attempted.
func (r *Runner) Runs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}
