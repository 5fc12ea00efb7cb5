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

var dupesJSON string

// dupesCmd represents the dupes command
var dupesCmd = &cobra.Command{
	Use:   "dupes <input>",
	Short: "Find duplicate pairs without changing anything",
	Long: `Dupes runs only the duplicate passes and the removal policy and prints
the pairs it found. No corpus is written.

Example:
  quizlint dupes problems.json
  quizlint dupes problems.json --keyword-threshold 0.7 --json dupes.json`,
	Args: cobra.ExactArgs(1),
	RunE: runDupes,
}

func init() {
	rootCmd.AddCommand(dupesCmd)

	dupesCmd.Flags().StringVar(&dupesJSON, "json", "", "also write the duplicate report as JSON")
}

func runDupes(cmd *cobra.Command, args []string) error {
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

	stage, err := r.pipeline.Duplicates(context.Background(), c)
	if err != nil {
		return err
	}

	if dupesJSON != "" {
		data, err := json.MarshalIndent(stage.Report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := corpus.WriteFileAtomic(dupesJSON, append(data, '\n')); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", dupesJSON)
	}

	fmt.Print(pipeline.DuplicatesMarkdown(stage.Report))
	if cfg.Output.Verbose {
		s := stage.Detection.Stats
		fmt.Fprintf(os.Stderr, "\nCompared %d pairs across %d records in %v\n", s.PairsCompared, s.Records, s.Duration)
	}
	return nil
}
