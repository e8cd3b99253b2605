package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"evalpilot/internal/catalog"
	"evalpilot/internal/config"
	"evalpilot/internal/jobqueue"
	"evalpilot/internal/lifecycle"
)

type exportView struct {
	Model     string `json:"model"`
	Iteration int    `json:"iteration"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Modified  string `json:"modified"`
	Retention string `json:"retention,omitempty"`
}

type checkpointsView struct {
	Durable   []exportView `json:"durable"`
	Staged    []exportView `json:"staged"`
	Malformed []string     `json:"malformed_staged,omitempty"`
}

func newCheckpointsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "checkpoints",
		Short: "List durable and staged checkpoint exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Paths.Catalog)
			if err != nil {
				return err
			}
			view, err := buildCheckpointsView(cfg, jobqueue.NewCodec(cfg.Queue.JobPrefix, cat.RootAggregate()))
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, view)
			}
			renderCheckpointsView(cmd, view, cfg.Paths)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of tables")
	return cmd
}

func buildCheckpointsView(cfg *config.Config, codec jobqueue.Codec) (checkpointsView, error) {
	var view checkpointsView

	durable, err := lifecycle.ListDurable(cfg.Paths.StorageDir)
	if err != nil {
		return view, err
	}
	for _, model := range sortedKeys(durable) {
		exports := durable[model]
		_, managed := cfg.Models[model]
		cut := max(len(exports)-cfg.Retention.KeepCheckpoints, 0)
		for i, exp := range exports {
			ev := newExportView(exp)
			switch {
			case !managed:
				ev.Retention = "unmanaged"
			case i < cut:
				ev.Retention = "retire"
			default:
				ev.Retention = "keep"
			}
			view.Durable = append(view.Durable, ev)
		}
	}

	staged, err := lifecycle.ListStaged(cfg.Paths.StagingDir, codec)
	if err != nil {
		return view, err
	}
	for _, exp := range staged.Exports {
		view.Staged = append(view.Staged, newExportView(exp))
	}
	for _, bad := range staged.Malformed {
		view.Malformed = append(view.Malformed, filepath.Base(bad.Path))
	}
	return view, nil
}

func newExportView(exp lifecycle.Export) exportView {
	return exportView{
		Model:     exp.Model,
		Iteration: exp.Iteration,
		Name:      exp.Name,
		Path:      exp.Path,
		SizeBytes: exp.Size(),
		Modified:  formatTime(exp.ModTime),
	}
}

func renderCheckpointsView(cmd *cobra.Command, view checkpointsView, paths config.Paths) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	var total int64
	rows := make([][]string, 0, len(view.Durable))
	for _, ev := range view.Durable {
		total += ev.SizeBytes
		rows = append(rows, []string{ev.Model, formatCount(ev.Iteration), ev.Name, formatBytes(ev.SizeBytes), ev.Modified, ev.Retention})
	}
	fmt.Fprintln(out, renderSectionHeader("Durable exports: "+paths.StorageDir, colorize))
	if len(rows) == 0 {
		fmt.Fprintln(out, renderStatusLine("Exports", statusInfo, "none", colorize))
	} else {
		fmt.Fprintln(out, renderTable(tableSpec{
			headers: []string{"Model", "Iteration", "Name", "Size", "Modified", "Retention"},
			rows:    rows,
			aligns:  []columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
			footer:  []string{"", "", "Total", formatBytes(total)},
		}))
	}

	rows = rows[:0]
	for _, ev := range view.Staged {
		rows = append(rows, []string{ev.Model, formatCount(ev.Iteration), ev.Name, formatBytes(ev.SizeBytes), ev.Modified})
	}
	fmt.Fprintln(out, renderSectionHeader("Staged exports: "+paths.StagingDir, colorize))
	if len(rows) == 0 {
		fmt.Fprintln(out, renderStatusLine("Exports", statusInfo, "none", colorize))
	} else {
		fmt.Fprintln(out, renderTable(tableSpec{
			headers: []string{"Model", "Iteration", "Job", "Size", "Modified"},
			rows:    rows,
			aligns:  []columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
		}))
	}
	for _, name := range view.Malformed {
		fmt.Fprintln(out, renderStatusLine("Malformed staged", statusWarn, name, colorize))
	}
}
