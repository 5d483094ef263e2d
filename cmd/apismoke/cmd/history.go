package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/apismoke/internal/history"
	"github.com/jmylchreest/apismoke/internal/observability"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored smoke runs",
	Long: `List recent runs from the history database, newest first, or show every
recorded result of one run with --run. Add --failed to list only the
failed results of that run.

Runs are stored when history.enabled is set or --history is passed.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyCmd.Flags().Int("limit", 0, "number of runs to list (default from history.limit)")
	historyCmd.Flags().String("run", "", "show the results of one run by ID")
	historyCmd.Flags().Bool("failed", false, "with --run, list only failed results")
	historyPruneCmd.Flags().Int("keep", 100, "number of newest runs to keep")
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cmd.Context(), cfg.History, observability.WithComponent(slog.Default(), "history"))
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return store, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()

	if id, _ := cmd.Flags().GetString("run"); id != "" {
		if failed, _ := cmd.Flags().GetBool("failed"); failed {
			return printFailedResults(cmd.Context(), out, store, id)
		}
		run, err := store.GetRun(cmd.Context(), id)
		if err != nil {
			return err
		}
		printRunDetail(out, run)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	printRuns(out, runs)
	return nil
}

func runHistoryPrune(cmd *cobra.Command, _ []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	keep, _ := cmd.Flags().GetInt("keep")
	removed, err := store.Prune(cmd.Context(), keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s).\n", removed)
	return nil
}

func printRuns(out io.Writer, runs []history.Run) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tRESULT\tCHECKS\tDURATION\tBASE URL")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			verdict(r.Success),
			r.ChecksPassed, r.ChecksTotal,
			r.Duration(),
			r.BaseURL,
		)
	}
	_ = tw.Flush()
}

func printRunDetail(out io.Writer, run *history.Run) {
	fmt.Fprintf(out, "Run %s against %s\n", run.ID, run.BaseURL)
	fmt.Fprintf(out, "Started %s, took %s: %s\n\n",
		run.StartedAt.Local().Format(time.DateTime), run.Duration(), verdict(run.Success))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tRESULT\tELAPSED")
	for _, c := range run.Checks {
		fmt.Fprintf(tw, "%s\t%s\t%dms\n", c.Name, verdict(c.Passed), c.ElapsedMS)
	}
	_ = tw.Flush()

	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RESULT\tNAME\tMESSAGE")
	for _, r := range run.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", verdict(r.Success), r.Name, r.Message)
	}
	_ = tw.Flush()
}

// printFailedResults lists the failed results of one run with their details.
func printFailedResults(ctx context.Context, out io.Writer, store *history.Store, id string) error {
	results, err := store.RunResults(ctx, id)
	if err != nil {
		return err
	}

	var failed []history.StoredResult
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		fmt.Fprintln(out, "No failed results.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMESSAGE\tDETAILS")
	for _, r := range failed {
		details := ""
		if len(r.Details) > 0 {
			b, err := json.Marshal(r.Details)
			if err != nil {
				return fmt.Errorf("encoding details: %w", err)
			}
			details = string(b)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Message, details)
	}
	return tw.Flush()
}

func verdict(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}
