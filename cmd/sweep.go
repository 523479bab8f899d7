package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangamirror/internal/config"
	"github.com/brogergvhs/mangamirror/internal/util"
)

var flagSweepLimit int

func init() {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired mirrored pages and their stored images",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := util.SignalContext(cmd.Context(), nil)
			defer cancel()

			a, err := newApp(ctx, config.Options{SweepLimit: flagSweepLimit}, false)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.sweeper.Sweep(ctx, a.cfg.SweepLimit)
			if err != nil {
				return err
			}

			fmt.Printf("Rows deleted:      %d\n", res.DeletedRows)
			fmt.Printf("Files deleted:     %d\n", res.DeletedFiles)
			fmt.Printf("Chapters affected: %d\n", res.ChaptersProcessed)
			return nil
		},
	}

	sweepCmd.Flags().IntVar(&flagSweepLimit, "limit", 0, "maximum expired rows to process (default from config, 500)")
	rootCmd.AddCommand(sweepCmd)
}
