package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/brogergvhs/mangamirror/internal/config"
	"github.com/brogergvhs/mangamirror/internal/ingest"
	"github.com/brogergvhs/mangamirror/internal/providers"
	"github.com/brogergvhs/mangamirror/internal/util"
)

var (
	flagTestOnly      bool
	flagSourceCode    string
	flagScrapeComicID string
	flagChapterFilter string
	flagSelectors     string
)

func init() {
	scrapeCmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Scrape a comic page and sync the comic and its chapters into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  runScrape,
	}

	scrapeCmd.Flags().BoolVar(&flagTestOnly, "test-only", false, "scrape and print without writing to the catalog")
	scrapeCmd.Flags().StringVar(&flagSourceCode, "source", "", "source code override (e.g. KOMIKU)")
	scrapeCmd.Flags().StringVar(&flagScrapeComicID, "comic-id", "", "update this comic instead of matching by slug")
	scrapeCmd.Flags().StringVar(&flagChapterFilter, "chapters", "", "only sync these chapters (e.g. 1-10,12,15.5)")
	scrapeCmd.Flags().StringVar(&flagSelectors, "selectors", "", "YAML file with custom CSS selectors")

	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, cancel := util.SignalContext(cmd.Context(), nil)
	defer cancel()

	custom, err := loadSelectors(flagSelectors)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, config.Options{}, false)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.ingest.Scrape(ctx, ingest.Request{
		URL:             args[0],
		SourceCode:      flagSourceCode,
		CustomSelectors: custom,
		ComicID:         flagScrapeComicID,
		TestOnly:        flagTestOnly,
		ChapterFilter:   flagChapterFilter,
		Actor:           "cli",
	})
	if resp != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(resp); encErr != nil {
			return encErr
		}
	}
	return err
}

func loadSelectors(path string) (*providers.CustomSelectors, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sel providers.CustomSelectors
	if err := yaml.Unmarshal(raw, &sel); err != nil {
		return nil, fmt.Errorf("parse selectors %s: %w", path, err)
	}
	return &sel, nil
}
