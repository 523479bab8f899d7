package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagIgnoreConfig bool
	flagDebug        bool
	flagEnvFile      string
	flagDatabaseURL  string
)

var rootCmd = &cobra.Command{
	Use:           "mangamirror",
	Short:         "Scrape comic sites into the catalog and mirror chapter images to object storage",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore the config profile and use only env and CLI flags")
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file to load before reading MANGAMIRROR_* variables")
	rootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", "", "override database_url")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
