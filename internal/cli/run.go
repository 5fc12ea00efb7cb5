package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var runTimeout time.Duration

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <input> <output-dir>",
	Short: "Run the full pipeline over a corpus file",
	Long: `Run loads a corpus and passes it through every stage:
- Find duplicate pairs (keyword, edit distance, opposite answer)
- Remove the weaker record of each pair
- Validate categories, auto-fix where a suggestion exists
- Score statement quality (advisory)
- Write reports and the final corpus to the output directory

Example:
  quizlint run problems.json ./out
  quizlint run problems.json ./out --workers 4 --history ~/.quizlint/history.db
  quizlint run problems.json ./out --advisor --advisor-model gpt-4o-mini`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "overall run timeout")
}

func runRun(cmd *cobra.Command, args []string) error {
	input, outDir := args[0], args[1]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Input:   %s\n", input)
		fmt.Fprintf(os.Stderr, "Output:  %s\n", outDir)
		fmt.Fprintf(os.Stderr, "Workers: %d\n", cfg.Workers)
		if cfg.Advisor.Enabled {
			fmt.Fprintf(os.Stderr, "Advisor: %s/%s\n", cfg.Advisor.Provider, cfg.Advisor.Model)
		}
		fmt.Fprintln(os.Stderr)
	}

	r, err := newRunner(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	start := time.Now()
	res, err := r.process(ctx, input, outDir)
	if err != nil {
		return err
	}

	r.renderer.RenderSummary(os.Stdout, res.Run)
	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "\n✓ Wrote reports to %s in %v\n", outDir, elapsed(start))
	}

	return nil
}
