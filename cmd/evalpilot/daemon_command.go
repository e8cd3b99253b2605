package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"evalpilot/internal/daemonrun"
	"evalpilot/internal/ipc"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run passes every workflow.interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: ctx.logLevel(),
				DryRun:   dryRun,
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log decisions each pass without acting")

	cmd.AddCommand(newDaemonStatusCommand(ctx))
	cmd.AddCommand(newDaemonRunNowCommand(ctx))
	cmd.AddCommand(newDaemonStopCommand(ctx))
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's pass counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, status)
				}
				renderDaemonStatus(cmd, status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}

func renderDaemonStatus(cmd *cobra.Command, status *ipc.StatusResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
	kind := statusOK
	state := fmt.Sprintf("Running (pid %d)", status.PID)
	if status.PassActive {
		state += ", pass in progress"
	}
	if !status.Running {
		kind, state = statusWarn, "Stopping"
	}
	fmt.Fprintln(out, renderStatusLine("State", kind, state, colorize))
	fmt.Fprintln(out, renderStatusLine("Interval", statusInfo, (time.Duration(status.IntervalSeconds)*time.Second).String(), colorize))
	fmt.Fprintln(out, renderStatusLine("Passes", statusInfo, formatCount(status.Passes), colorize))
	fmt.Fprintln(out, renderStatusLine("Lock", statusInfo, status.LockPath, colorize))

	last := status.LastPass
	if last == nil {
		return
	}
	kind = statusOK
	switch {
	case status.LastError != "":
		kind = statusError
	case len(last.Failures) > 0:
		kind = statusWarn
	}
	msg := fmt.Sprintf("%s %s at %s: submitted %d, promoted %d, retired %d",
		last.ID, last.Status, formatTime(last.FinishedAt), last.Submitted, last.Promoted, last.Retired)
	fmt.Fprintln(out, renderStatusLine("Last pass", kind, msg, colorize))
	if status.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}
	for _, failure := range last.Failures {
		fmt.Fprintln(out, renderStatusLine("Failure", statusWarn, failure, colorize))
	}
}

func newDaemonRunNowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run-now",
		Short: "Ask the running daemon to start a pass immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RunNow()
				if err != nil {
					return err
				}
				if !resp.Queued {
					return fmt.Errorf("pass not queued: %s", resp.Message)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pass queued")
				return nil
			})
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon after its current step",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Stop requested")
				return nil
			})
			if errors.Is(err, errDaemonNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			return err
		},
	}
}
