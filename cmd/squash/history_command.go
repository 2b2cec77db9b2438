package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"squash/internal/console"
	"squash/internal/history"
	"squash/internal/textutil"
)

const defaultHistoryLimit = 20

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past runs, or the iterations of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Run history is disabled (history.enabled = false)")
				return nil
			}
			store, err := history.Open(cmd.Context(), cfg.History.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(cmd, store, args[0])
			}
			return listRuns(cmd, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Maximum runs to list (0 for all)")
	return cmd
}

func listRuns(cmd *cobra.Command, store *history.Store, limit int) error {
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			humanize.Time(run.StartedAt),
			filepath.Base(run.InputPath),
			console.StateLabel(run.State),
			textutil.FormatBytes(run.SizeBytes),
			textutil.FormatBytes(run.TargetBytes),
			fmt.Sprintf("%d/%d", run.IterationsUsed, run.MaxIterations),
			textutil.FormatDuration(run.Elapsed),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Started", "Input", "State", "Size", "Target", "Iterations", "Time"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
	))
	return nil
}

func showRun(cmd *cobra.Command, store *history.Store, idOrPrefix string) error {
	run, err := store.Find(cmd.Context(), idOrPrefix)
	if err != nil {
		return err
	}
	iterations, err := store.Iterations(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\n", run.ID, humanize.Time(run.StartedAt))
	fmt.Fprintf(out, "Input:  %s (%s)\n", run.InputPath, textutil.FormatBytes(run.InputBytes))
	fmt.Fprintf(out, "Output: %s\n", textutil.Ternary(run.OutputPath != "", run.OutputPath, "(none)"))
	fmt.Fprintf(out, "State:  %s\n", console.StateLabel(run.State))
	if run.Reason != "" {
		fmt.Fprintf(out, "Reason: %s\n", run.Reason)
	}
	if len(iterations) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(iterations))
	for _, it := range iterations {
		rows = append(rows, []string{
			strconv.Itoa(it.Number),
			textutil.FormatKbps(it.BitrateKbps),
			textutil.FormatBytes(it.SizeBytes),
			console.PercentDelta(it.SizeBytes, run.TargetBytes),
			textutil.FormatDuration(it.Elapsed),
			it.Decision,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Bitrate", "Size", "vs Target", "Time", "Decision"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
