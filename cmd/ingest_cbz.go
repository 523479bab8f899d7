package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangamirror/internal/config"
	"github.com/brogergvhs/mangamirror/internal/ingest"
	"github.com/brogergvhs/mangamirror/internal/ui"
	"github.com/brogergvhs/mangamirror/internal/util"
)

var (
	flagCBZComicID string
	flagCBZChapter float64
)

func init() {
	ingestCmd := &cobra.Command{
		Use:   "ingest-cbz <file.cbz>...",
		Short: "Upload CBZ archives as permanent chapters",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngestCBZ,
	}

	ingestCmd.Flags().StringVar(&flagCBZComicID, "comic-id", "", "attach chapters to this comic instead of matching the series title")
	ingestCmd.Flags().Float64Var(&flagCBZChapter, "chapter", 0, "chapter number (single archive only)")

	rootCmd.AddCommand(ingestCmd)
}

func runIngestCBZ(cmd *cobra.Command, args []string) error {
	if flagCBZChapter > 0 && len(args) > 1 {
		return fmt.Errorf("--chapter can only be used with a single archive")
	}

	ctx, cancel := util.SignalContext(cmd.Context(), nil)
	defer cancel()

	a, err := newApp(ctx, config.Options{}, false)
	if err != nil {
		return err
	}
	defer a.Close()

	pm := ui.NewProgressManager(os.Stdout)
	stats := &ui.Stats{}
	start := time.Now()
	var failed int

	for _, path := range args {
		if ctx.Err() != nil {
			break
		}
		res, err := ingestFile(ctx, a, pm, path)
		if err != nil {
			failed++
			a.log.Error("archive not ingested", "file", path, "err", err)
			continue
		}
		stats.Chapters.Add(1)
		stats.Pages.Add(int64(res.TotalPages))
		stats.Bytes.Add(res.Bytes)
	}
	pm.Close()

	stats.Print(os.Stdout, "Upload Summary", time.Since(start))
	if failed > 0 {
		return fmt.Errorf("%d of %d archives failed", failed, len(args))
	}
	return nil
}

func ingestFile(ctx context.Context, a *app, pm *ui.ProgressManager, path string) (*ingest.CBZResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	handle := pm.Register(filepath.Base(path), "images")
	res, err := a.ingest.IngestCBZ(ctx, ingest.CBZRequest{
		Filename:      filepath.Base(path),
		Data:          f,
		Size:          fi.Size(),
		ComicID:       flagCBZComicID,
		ChapterNumber: flagCBZChapter,
		Actor:         "cli",
		Progress:      handle,
	})
	if err != nil {
		handle.Abort()
		return nil, err
	}
	return res, nil
}
