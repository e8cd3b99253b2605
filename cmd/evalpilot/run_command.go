package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"evalpilot/internal/daemonrun"
	"evalpilot/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconcile, promote, and retire pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			outcome, runErr := daemonrun.RunOnce(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: ctx.logLevel(),
				DryRun:   dryRun,
			})
			if outcome.PassID == "" {
				return runErr
			}
			printOutcome(cmd.OutOrStdout(), outcome, shouldColorize(cmd.OutOrStdout()))
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute submissions and lifecycle decisions without acting")
	return cmd
}

func printOutcome(out io.Writer, outcome workflow.Outcome, colorize bool) {
	title := "Pass " + outcome.PassID
	if outcome.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(out, renderSectionHeader(title, colorize))

	var rows [][]string
	for _, mr := range outcome.Reconcile.Models {
		for _, sub := range mr.Submissions {
			result := "submitted"
			switch {
			case sub.DryRun:
				result = "planned"
			case !sub.OK:
				result = "failed: " + sub.Reason
			}
			rows = append(rows, []string{mr.Model, formatCount(sub.Job.Iteration), sub.Name, result})
		}
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(tableSpec{
			title:   "Submissions",
			headers: []string{"Model", "Iteration", "Job", "Result"},
			rows:    rows,
			aligns:  []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
		}))
	}

	rows = rows[:0]
	for _, exp := range outcome.Promote.Promoted {
		rows = append(rows, []string{"promoted", exp.Model, formatCount(exp.Iteration), exp.Path})
	}
	for _, exp := range outcome.Promote.Deduplicated {
		rows = append(rows, []string{"deduplicated", exp.Model, formatCount(exp.Iteration), exp.Path})
	}
	for _, exp := range outcome.Retire.Removed {
		rows = append(rows, []string{"retired", exp.Model, formatCount(exp.Iteration), exp.Path})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(tableSpec{
			title:   "Exports",
			headers: []string{"Action", "Model", "Iteration", "Path"},
			rows:    rows,
			aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		}))
	}

	kind := statusOK
	failures := outcome.Failures()
	if len(failures) > 0 {
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Result", kind, formatLabel(outcome.Status()), colorize))
	fmt.Fprintln(out, renderStatusLine("Submitted", statusInfo, strconv.Itoa(outcome.Reconcile.Submitted()), colorize))
	fmt.Fprintln(out, renderStatusLine("Promoted", statusInfo, strconv.Itoa(len(outcome.Promote.Promoted)), colorize))
	fmt.Fprintln(out, renderStatusLine("Retired", statusInfo, strconv.Itoa(len(outcome.Retire.Removed)), colorize))
	if outcome.PromoteSkipped {
		fmt.Fprintln(out, renderStatusLine("Promotion", statusWarn, "skipped (owned jobs unknown)", colorize))
	}
	for _, line := range failures {
		fmt.Fprintln(out, renderStatusLine("Failure", statusError, line, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, outcome.Duration().Round(time.Millisecond).String(), colorize))
}
