package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/brogergvhs/mangamirror/internal/config"
	"github.com/brogergvhs/mangamirror/internal/mirror"
	"github.com/brogergvhs/mangamirror/internal/ui"
	"github.com/brogergvhs/mangamirror/internal/util"
)

var (
	flagChapterWorkers int
	flagPageWorkers    int
)

func init() {
	cacheCmd := &cobra.Command{
		Use:   "cache <chapter-id>...",
		Short: "Mirror chapter images into object storage, reusing fresh copies",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCache,
	}

	cacheCmd.Flags().IntVar(&flagChapterWorkers, "chapter-workers", 2, "chapters mirrored in parallel")
	cacheCmd.Flags().IntVar(&flagPageWorkers, "page-workers", 0, "parallel page uploads per chapter (default from config)")

	rootCmd.AddCommand(cacheCmd)
}

func runCache(cmd *cobra.Command, args []string) error {
	ctx, cancel := util.SignalContext(cmd.Context(), nil)
	defer cancel()

	a, err := newApp(ctx, config.Options{Workers: flagPageWorkers}, false)
	if err != nil {
		return err
	}
	defer a.Close()

	pm := ui.NewProgressManager(os.Stdout)
	stats := &ui.Stats{}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, flagChapterWorkers))
	for _, id := range args {
		g.Go(func() error {
			cacheOne(gctx, a, pm, stats, id)
			return nil
		})
	}
	_ = g.Wait()
	pm.Close()

	stats.Print(os.Stdout, "Cache Summary", time.Since(start))
	if n := len(args) - int(stats.Chapters.Load()); n > 0 {
		return fmt.Errorf("%d of %d chapters not cached", n, len(args))
	}
	return nil
}

func cacheOne(ctx context.Context, a *app, pm *ui.ProgressManager, stats *ui.Stats, id string) {
	handle := pm.Register(id, "pages")

	res, err := a.pipeline.EnsureCached(ctx, id, mirror.WithProgress(handle))
	if err != nil {
		handle.Abort()
		a.log.Error("chapter not cached", "chapter", id, "err", err)
		return
	}
	handle.MarkDone()

	stats.Chapters.Add(1)
	if res.Cached {
		stats.Reused.Add(1)
	}
	stats.Pages.Add(int64(len(res.Pages)))
	stats.Failed.Add(int64(res.Failed))
	stats.Bytes.Add(res.Bytes)
}
