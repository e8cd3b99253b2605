package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"evalpilot/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		raw    bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.CurrentLogPath()
			out := cmd.OutOrStdout()

			res, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines})
			if err != nil {
				return err
			}
			printLogLines(out, res.Lines, filter, raw)
			if !follow {
				return nil
			}

			offset := res.Offset
			for {
				res, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err != nil {
					return err
				}
				printLogLines(out, res.Lines, filter, raw)
				offset = res.Offset
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON lines as written")
	cmd.Flags().StringVar(&filter.PassID, "pass", "", "Only show records for this pass ID")
	cmd.Flags().StringVarP(&filter.Model, "model", "m", "", "Only show records for this model")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level to show (debug, info, warn, error)")
	return cmd
}

func printLogLines(out io.Writer, lines []string, filter logs.Filter, raw bool) {
	for _, line := range lines {
		if !filter.Match(line) {
			continue
		}
		if !raw {
			if rec, ok := logs.ParseRecord(line); ok {
				line = logs.Format(rec)
			}
		}
		fmt.Fprintln(out, line)
	}
}
