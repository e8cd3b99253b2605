package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"evalpilot/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				passes, err := store.ListPasses(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, passes)
				}
				renderPasses(cmd, passes)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of passes to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of tables")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var modelFlag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <pass-id>",
		Short: "Show the events recorded for one pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				pass, err := store.GetPass(cmd.Context(), args[0])
				if errors.Is(err, history.ErrNotFound) {
					return fmt.Errorf("pass %s not found in %s", args[0], store.Path())
				}
				if err != nil {
					return err
				}
				events, err := store.ListEvents(cmd.Context(), pass.ID, modelFlag)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, struct {
						Pass   history.Pass    `json:"pass"`
						Events []history.Event `json:"events"`
					}{pass, events})
				}
				renderPasses(cmd, []history.Pass{pass})
				renderEvents(cmd, events)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Only show events for this model")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of tables")
	return cmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func renderPasses(cmd *cobra.Command, passes []history.Pass) {
	out := cmd.OutOrStdout()
	if len(passes) == 0 {
		fmt.Fprintln(out, "No passes recorded")
		return
	}
	rows := make([][]string, 0, len(passes))
	for _, p := range passes {
		rows = append(rows, []string{
			p.ID,
			formatTime(p.StartedAt),
			formatLabel(p.Status),
			yesNo(p.DryRun),
			strconv.Itoa(p.Submitted),
			strconv.Itoa(p.SubmitFailures),
			strconv.Itoa(p.Promoted),
			strconv.Itoa(p.Retired),
			strconv.Itoa(p.Errors),
			orDash(p.Message),
		})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		headers: []string{"Pass", "Started", "Status", "Dry run", "Submitted", "Failed", "Promoted", "Retired", "Errors", "First error"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	}))
}

func renderEvents(cmd *cobra.Command, events []history.Event) {
	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, "No events recorded")
		return
	}
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		iteration := "-"
		if ev.Model != "" && ev.Kind != history.KindError && ev.Kind != history.KindSynced {
			iteration = formatCount(ev.Iteration)
		}
		rows = append(rows, []string{formatLabel(ev.Kind), orDash(ev.Model), iteration, ev.Subject, orDash(ev.Detail)})
	}
	fmt.Fprintln(out, renderTable(tableSpec{
		headers: []string{"Event", "Model", "Iteration", "Subject", "Detail"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight},
	}))
}
