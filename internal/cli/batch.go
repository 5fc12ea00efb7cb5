package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/quizlint/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <list-file> <output-dir>",
	Short: "Run the pipeline over several corpus files in parallel",
	Long: `Batch processes multiple corpus files concurrently:
- Read corpus paths from the list file (one per line, # for comments)
- Run the full pipeline on each file with a worker pool
- Write each file's reports to its own subdirectory of the output directory

Relative paths in the list file are resolved against the list file's
directory. One failing corpus does not stop the others.

Example:
  quizlint batch corpora.txt ./out
  quizlint batch corpora.txt ./out --concurrency 4 --history ./history.db`,
	Args: cobra.ExactArgs(2),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of corpus files processed at once")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	listFile, outputDir := args[0], args[1]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  quizlint Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  List file:    %s\n", listFile)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.Advisor.Enabled {
		fmt.Fprintf(os.Stderr, "  Advisor:      %s/%s\n", cfg.Advisor.Provider, cfg.Advisor.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	r, err := newRunner(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	r.outDir = outputDir

	processor := worker.NewBatchProcessor(r, concurrency)

	start := time.Now()
	results, err := processor.ProcessList(ctx, listFile)
	if err != nil {
		return fmt.Errorf("process list: %w", err)
	}

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		successCount++
		c := result.Report.Counts
		fmt.Fprintf(os.Stderr, "✓ %s (%d -> %d records, average %.2f)\n",
			result.Path, c.OriginalCount, c.FinalCount, result.Report.Quality.AverageScore)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d files\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Elapsed:   %v\n", elapsed(start))
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d corpus files failed", failureCount, len(results))
	}
	return nil
}
