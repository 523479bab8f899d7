package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangamirror/internal/config"
)

var flagInitLabel string

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config profile and make it active",
	RunE: func(cmd *cobra.Command, args []string) error {
		label := strings.TrimSpace(flagInitLabel)
		if label == "" {
			label = config.DefaultLabel
		}
		path := config.ProfilePath(label)

		if _, err := os.Stat(path); err == nil {
			fmt.Println("Profile already exists at:")
			fmt.Println("  ", path)
			fmt.Println("Edit it directly or use `mangamirror config switch` to activate it.")
			return nil
		}

		def := config.DefaultConfig()
		if err := promptConnection(def); err != nil {
			return err
		}

		fmt.Println()
		fmt.Println("Profile will be saved at:")
		fmt.Println("  ", path)
		def.Print()
		fmt.Println()

		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Create profile %q", label),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			fmt.Println("Aborted.")
			return nil
		}

		if _, err := config.InitConfig(label, def); err != nil {
			if errors.Is(err, os.ErrExist) {
				return fmt.Errorf("profile %q was created concurrently", label)
			}
			return fmt.Errorf("failed to write config file: %w", err)
		}

		fmt.Println("Profile created at:", path)
		fmt.Printf("This profile is now active (label: %s).\n", label)
		return nil
	},
}

// promptConnection asks for the values that have no usable default.
// Anything left blank can still come from MANGAMIRROR_* variables.
func promptConnection(cfg *config.Config) error {
	fields := []struct {
		label string
		dst   *string
		mask  rune
	}{
		{"Database URL", &cfg.DatabaseURL, 0},
		{"Redis URL (optional)", &cfg.RedisURL, 0},
		{"S3 endpoint", &cfg.Storage.Endpoint, 0},
		{"S3 bucket", &cfg.Storage.Bucket, 0},
		{"S3 access key", &cfg.Storage.AccessKey, 0},
		{"S3 secret key", &cfg.Storage.SecretKey, '*'},
		{"Public base URL", &cfg.Storage.PublicBase, 0},
	}

	for _, f := range fields {
		p := promptui.Prompt{Label: f.label, Default: *f.dst, Mask: f.mask}
		v, err := p.Run()
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		*f.dst = strings.TrimSpace(v)
	}
	return nil
}

func init() {
	configInitCmd.Flags().StringVar(&flagInitLabel, "label", config.DefaultLabel, "profile label")
	configCmd.AddCommand(configInitCmd)
}
