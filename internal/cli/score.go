package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/quizlint/internal/corpus"
	"github.com/ppiankov/quizlint/internal/pipeline"
)

var (
	scoreJSON string
	minScore  float64
)

// scoreCmd represents the score command
var scoreCmd = &cobra.Command{
	Use:   "score <input>",
	Short: "Score statement quality without changing anything",
	Long: `Score lints every statement against the quality rule table and prints
the distribution and the records with issues.

Scores are advisory. With --min-average the command fails when the corpus
average falls below the given value, for use as a CI gate.

Example:
  quizlint score problems.json
  quizlint score problems.json --json quality.json --min-average 75`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringVar(&scoreJSON, "json", "", "also write the quality report as JSON")
	scoreCmd.Flags().Float64Var(&minScore, "min-average", 0, "fail when the average score is below this value")
}

func runScore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Advisor.Enabled = false
	cfg.History.Path = ""

	c, err := corpus.Load(args[0])
	if err != nil {
		return err
	}

	r, err := newRunner(context.Background(), cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	report := r.pipeline.Score(c)

	if scoreJSON != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := corpus.WriteFileAtomic(scoreJSON, append(data, '\n')); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", scoreJSON)
	}

	fmt.Print(pipeline.QualityMarkdown(report))

	if minScore > 0 && report.Summary.AverageScore < minScore {
		return fmt.Errorf("average score %.2f is below %.2f", report.Summary.AverageScore, minScore)
	}
	return nil
}
