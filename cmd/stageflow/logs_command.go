package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stageflow/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		itemID int64
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the stageflow log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogPath()
			if path == "" {
				return errors.New("no log directory configured")
			}
			var keep func(string) bool
			if itemID > 0 {
				keep = logs.ForItem(itemID)
			}

			out := cmd.OutOrStdout()
			recent, offset, err := logs.Last(path, lines, keep)
			if err != nil {
				return err
			}
			for _, line := range recent {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			err = logs.Follow(cmd.Context(), path, offset, 500*time.Millisecond, keep, func(line string) {
				fmt.Fprintln(out, line)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Only lines about this work item")
	return cmd
}
