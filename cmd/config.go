package cmd

import (
	"fmt"

	"github.com/brogergvhs/mangamirror/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration and manage config profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		fmt.Printf("Loaded config from:\n  %s\n\n", used)
		cfg.Print()
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nwarning: %v\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
