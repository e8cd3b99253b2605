package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"evalpilot/internal/completion"
	"evalpilot/internal/daemonrun"
	"evalpilot/internal/reconcile"
)

type iterationView struct {
	Iteration  int      `json:"iteration"`
	Available  bool     `json:"available"`
	Eligible   bool     `json:"eligible"`
	Completed  []string `json:"completed"`
	InFlight   []string `json:"in_flight"`
	Missing    []string `json:"missing"`
	Satisfied  []string `json:"satisfied"`
	LastResult string   `json:"last_result,omitempty"`
}

type modelView struct {
	Model      string          `json:"model"`
	Error      string          `json:"error,omitempty"`
	Iterations []iterationView `json:"iterations"`
}

type statusView struct {
	Models    []modelView `json:"models"`
	Malformed []string    `json:"malformed_jobs,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var modelFlag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show evaluation coverage per model and iteration without submitting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if modelFlag != "" {
				if _, ok := cfg.Models[modelFlag]; !ok {
					return fmt.Errorf("model %q is not configured", modelFlag)
				}
			}
			logger := ctx.reportLogger()
			stack, err := daemonrun.Build(cfg, logger, daemonrun.Options{DryRun: true})
			if err != nil {
				return err
			}
			defer stack.Close()

			report, err := stack.Runner.Reconciler().Status(cmd.Context())
			if err != nil {
				return err
			}
			reader := completion.NewReader(cfg.Paths.LogsRoot, stack.Catalog, logger)
			view := buildStatusView(report, reader, modelFlag)

			if jsonOut {
				return writeJSON(cmd, view)
			}
			renderStatusView(cmd, view, stack.Catalog.ShowInTable(), len(stack.Catalog.AllLeafTasks()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Only show this model")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of tables")
	return cmd
}

func buildStatusView(report reconcile.Report, reader *completion.Reader, only string) statusView {
	view := statusView{Malformed: report.Malformed}
	for _, mr := range report.Models {
		if only != "" && mr.Model != only {
			continue
		}
		mv := modelView{Model: mr.Model}
		if mr.Err != nil {
			mv.Error = mr.Err.Error()
		}
		scanned, err := reader.Scan(mr.Model)
		if err != nil && mv.Error == "" {
			mv.Error = err.Error()
		}
		for _, it := range mr.Iterations {
			iv := iterationView{
				Iteration: it.Iteration,
				Available: it.Available,
				Eligible:  it.Eligible,
				Completed: it.Completed,
				InFlight:  it.InFlight,
				Missing:   it.Missing,
				Satisfied: it.Satisfied,
			}
			if entry, ok := scanned[it.Iteration]; ok {
				if latest, ok := completion.LatestResultFile(entry.Files); ok {
					iv.LastResult = latest.Path
					if !latest.Timestamp.IsZero() {
						iv.LastResult = formatTime(latest.Timestamp)
					}
				}
			}
			mv.Iterations = append(mv.Iterations, iv)
		}
		view.Models = append(view.Models, mv)
	}
	return view
}

func renderStatusView(cmd *cobra.Command, view statusView, highlight []string, universe int) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, mv := range view.Models {
		fmt.Fprintln(out, renderSectionHeader(mv.Model, colorize))
		if mv.Error != "" {
			fmt.Fprintln(out, renderStatusLine("Error", statusError, mv.Error, colorize))
		}
		if len(mv.Iterations) == 0 {
			fmt.Fprintln(out, renderStatusLine("Iterations", statusInfo, "none found", colorize))
			continue
		}
		rows := make([][]string, 0, len(mv.Iterations))
		for _, iv := range mv.Iterations {
			rows = append(rows, []string{
				formatCount(iv.Iteration),
				yesNo(iv.Available),
				yesNo(iv.Eligible),
				fmt.Sprintf("%d/%d", len(iv.Completed), universe),
				strconv.Itoa(len(iv.InFlight)),
				formatTasks(iv.Missing, 4),
				formatTasks(filterSatisfied(iv.Satisfied, highlight), 3),
				orDash(iv.LastResult),
			})
		}
		fmt.Fprintln(out, renderTable(tableSpec{
			headers: []string{"Iteration", "Available", "Eligible", "Completed", "In flight", "Missing", "Satisfied", "Last result"},
			rows:    rows,
			aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
		}))
	}
	for _, name := range view.Malformed {
		fmt.Fprintln(out, renderStatusLine("Malformed job", statusWarn, name, colorize))
	}
}

// filterSatisfied keeps only highlighted aggregates when any are configured.
func filterSatisfied(satisfied, highlight []string) []string {
	if len(highlight) == 0 {
		return satisfied
	}
	var out []string
	for _, name := range satisfied {
		if slices.Contains(highlight, name) {
			out = append(out, name)
		}
	}
	return out
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
