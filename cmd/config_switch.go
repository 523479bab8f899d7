package cmd

import (
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangamirror/internal/config"
)

var configSwitchCmd = &cobra.Command{
	Use:   "switch [label]",
	Short: "Switch the active config profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := ""
		if len(args) == 1 {
			label = args[0]
		} else {
			picked, err := pickProfile()
			if err != nil {
				return err
			}
			label = picked
		}

		if err := config.SwitchConfig(label); err != nil {
			return err
		}
		fmt.Println("Switched to:", label)

		cfg, _, err := loadConfig(config.Options{})
		if err != nil {
			return fmt.Errorf("profile %s does not load: %w", label, err)
		}
		cfg.Print()
		return nil
	},
}

func pickProfile() (string, error) {
	list, err := config.ListConfigs()
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", fmt.Errorf("no profiles available, run `mangamirror config init`")
	}

	items := make([]string, len(list))
	cursor := 0
	for i, c := range list {
		items[i] = c.Label
		if c.Active {
			items[i] += "  (active)"
			cursor = i
		}
	}

	prompt := promptui.Select{Label: "Select profile", Items: items, CursorPos: cursor}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled")
	}
	return list[idx].Label, nil
}

func init() {
	configCmd.AddCommand(configSwitchCmd)
}
