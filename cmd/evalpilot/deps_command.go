package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"evalpilot/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check paths, catalog, disk space, and external binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			results := preflight.RunAll(cmd.Context(), cfg)

			fmt.Fprintln(out, renderSectionHeader("Preflight", colorize))
			for _, res := range results {
				kind := statusOK
				switch {
				case res.Passed:
				case res.Advisory:
					kind = statusWarn
				default:
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(res.Name, kind, res.Detail, colorize))
			}

			if blocking := preflight.Blocking(results); len(blocking) > 0 {
				return fmt.Errorf("%d blocking check(s) failed", len(blocking))
			}
			return nil
		},
	}
}
