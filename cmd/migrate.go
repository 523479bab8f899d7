package cmd

import (
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangamirror/internal/catalog"
	"github.com/brogergvhs/mangamirror/internal/config"
	"github.com/brogergvhs/mangamirror/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return cfg.Validate()
		}

		return catalog.Migrate(cfg.DatabaseURL, ui.NewLogger(cfg.Debug, cfg.LogJSON))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
