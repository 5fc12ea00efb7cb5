package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/quizlint/internal/history"
)

var (
	historyLimit int
	historyRun   string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs from the history ledger",
	Long: `History prints the runs recorded in the SQLite ledger given by --history
or history.path, newest first. With --run it prints the records that run
removed instead, with the reason, the rule, and how many recorded runs have
removed the same record id.

Example:
  quizlint history --history ./history.db
  quizlint history --history ./history.db --limit 5
  quizlint history --history ./history.db --run 01J8Z3Q4M6T0K2V7C9X1B5N8PA`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the records removed by this run id")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("no history ledger configured (use --history or history.path)")
	}

	ctx := context.Background()
	st, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() { _ = st.Close() }()

	if historyRun != "" {
		return printRemovals(ctx, st, historyRun, os.Stdout, os.Stderr)
	}
	return printRuns(ctx, st, historyLimit, os.Stdout, os.Stderr)
}

func printRuns(ctx context.Context, st *history.Store, limit int, out, errOut io.Writer) error {
	runs, err := st.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(errOut, "No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSOURCE\tIN\tOUT\tDUPES\tFIXED\tAVG")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.2f\n",
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Source,
			r.OriginalCount, r.FinalCount, r.Duplicates, r.FixedCount, r.AverageScore)
	}
	return w.Flush()
}

func printRemovals(ctx context.Context, st *history.Store, runID string, out, errOut io.Writer) error {
	removals, err := st.Removals(ctx, runID)
	if err != nil {
		return err
	}
	if len(removals) == 0 {
		fmt.Fprintf(errOut, "No removals recorded for run %s\n", runID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECORD\tREASON\tRULE\tTIMES REMOVED")
	for _, r := range removals {
		n, err := st.RemovalCount(ctx, r.RecordID)
		if err != nil {
			return err
		}
		rule := r.Detail
		if rule == "" {
			rule = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.RecordID, r.Reason, rule, n)
	}
	return w.Flush()
}
