package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/quizlint/internal/corpus"
	"github.com/ppiankov/quizlint/internal/model"
)

// Output file names inside the output directory
const (
	FinalCorpusFile = "final_corpus.json"
	DuplicatesFile  = "duplicates"
	CategoriesFile  = "categories"
	QualityFile     = "quality"
	RunFile         = "run"
)

// Renderer writes reports as JSON and Markdown
type Renderer struct {
	markdown bool
}

// NewRenderer creates a renderer. Markdown files are skipped when markdown
// is false.
func NewRenderer(markdown bool) *Renderer {
	return &Renderer{markdown: markdown}
}

// WriteAll writes every artifact of a result into dir. It only reads the
// result, so a failed write can be retried with the same value.
func (r *Renderer) WriteAll(res *Result, dir string) ([]string, error) {
	var written []string

	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := corpus.WriteFileAtomic(path, data); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	reports := []struct {
		name string
		v    any
		md   func() string
	}{
		{DuplicatesFile, res.Duplicates, func() string { return DuplicatesMarkdown(res.Duplicates) }},
		{CategoriesFile, res.Categories, func() string { return CategoriesMarkdown(res.Categories) }},
		{QualityFile, res.Quality, func() string { return QualityMarkdown(res.Quality) }},
		{RunFile, res.Run, func() string { return RunMarkdown(res.Run) }},
	}

	for _, rep := range reports {
		data, err := json.MarshalIndent(rep.v, "", "  ")
		if err != nil {
			return written, fmt.Errorf("marshal %s: %w", rep.name, err)
		}
		if err := write(rep.name+".json", append(data, '\n')); err != nil {
			return written, err
		}
		if r.markdown {
			if err := write(rep.name+".md", []byte(rep.md())); err != nil {
				return written, err
			}
		}
	}

	path := filepath.Join(dir, FinalCorpusFile)
	if err := corpus.Save(path, res.Corpus, res.Corpus.Meta); err != nil {
		return written, fmt.Errorf("write %s: %w", FinalCorpusFile, err)
	}
	written = append(written, path)

	return written, nil
}

// RenderSummary prints a short run summary
func (r *Renderer) RenderSummary(w io.Writer, run *model.RunReport) {
	fmt.Fprintf(w, "Run %s\n", run.RunID)
	fmt.Fprintf(w, "  Records:     %d -> %d (%d removed, %d fixed)\n",
		run.Counts.OriginalCount, run.Counts.FinalCount, run.Counts.RemovedCount, run.Counts.FixedCount)
	fmt.Fprintf(w, "  Duplicates:  %d (%s)\n", run.Duplicates.Total, methodSummary(run.Duplicates.ByMethod))
	fmt.Fprintf(w, "  Categories:  %d valid, %d invalid, %d warnings, %d manual review\n",
		run.Categories.Valid, run.Categories.Invalid, run.Categories.Warnings, run.Categories.ManualReview)
	fmt.Fprintf(w, "  Quality:     average %.2f (%d excellent, %d good, %d poor)\n",
		run.Quality.AverageScore, run.Quality.Excellent, run.Quality.Good, run.Quality.Poor)
}

// DuplicatesMarkdown renders the duplicate report
func DuplicatesMarkdown(rep *model.DuplicateReport) string {
	var b strings.Builder

	b.WriteString("# Duplicate Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Total duplicates: **%d**\n", rep.TotalDuplicates)
	fmt.Fprintf(&b, "- By method: %s\n", methodSummary(rep.ByMethod))
	fmt.Fprintf(&b, "- Keyword candidates: %d\n", rep.KeywordCandidates)
	fmt.Fprintf(&b, "- Thresholds: keyword %.2f, edit distance %.2f, opposite answer %.2f\n",
		rep.Thresholds.Keyword, rep.Thresholds.EditDistance, rep.Thresholds.Opposite)
	fmt.Fprintf(&b, "- Removed records: %d\n\n", len(rep.RemovedIDs))

	if len(rep.Details) == 0 {
		b.WriteString("No duplicates found.\n")
		return b.String()
	}

	b.WriteString("## Pairs\n\n")
	b.WriteString("| Pair | Method | Similarity | Statement A | Statement B | Answers |\n")
	b.WriteString("|------|--------|------------|-------------|-------------|---------|\n")
	for _, d := range rep.Details {
		fmt.Fprintf(&b, "| %s / %s | %s | %.4f | %s | %s | %s / %s |\n",
			d.Pair[0], d.Pair[1], d.Method, d.SimilarityScore,
			cell(d.Statements[0]), cell(d.Statements[1]),
			answerMark(d.Answers[0]), answerMark(d.Answers[1]))
	}

	if len(rep.Decisions) > 0 {
		b.WriteString("\n## Removals\n\n")
		for _, d := range rep.Decisions {
			fmt.Fprintf(&b, "- %s removed, %s kept (%s)\n", d.Loser, d.Winner, d.Rule)
		}
	}

	if len(rep.Clusters) > 0 {
		b.WriteString("\n## Clusters\n\n")
		for _, cl := range rep.Clusters {
			ids := make([]string, len(cl))
			for i, id := range cl {
				ids[i] = id.String()
			}
			fmt.Fprintf(&b, "- %s\n", strings.Join(ids, ", "))
		}
	}

	return b.String()
}

// CategoriesMarkdown renders the category report
func CategoriesMarkdown(rep *model.CategoryReport) string {
	var b strings.Builder
	s := rep.Summary

	b.WriteString("# Category Validation Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	b.WriteString("| Total | Valid | Invalid | Warnings | Auto-fixed | Manual review | Removed |\n")
	b.WriteString("|-------|-------|---------|----------|------------|---------------|---------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d | %d |\n\n",
		s.Total, s.Valid, s.Invalid, s.Warnings, s.AutoFixed, s.ManualReview, s.Removed)

	if len(rep.Fixes) > 0 {
		b.WriteString("## Fixes\n\n")
		for _, f := range rep.Fixes {
			fmt.Fprintf(&b, "- %s: %s -> %s\n", f.RecordID, f.From, f.To)
		}
		b.WriteString("\n")
	}

	if len(rep.Details) == 0 {
		b.WriteString("No issues found.\n")
		return b.String()
	}

	b.WriteString("## Issues\n\n")
	for _, d := range rep.Details {
		fmt.Fprintf(&b, "### %s (%s)\n\n", d.RecordID, d.Category)
		b.WriteString(quote(d.Statement))
		b.WriteString("\n")
		fmt.Fprintf(&b, "Action: **%s**", d.Action)
		if d.SuggestedCategory != "" {
			fmt.Fprintf(&b, ", suggested: %s", d.SuggestedCategory)
		}
		if d.AdvisorCategory != "" {
			fmt.Fprintf(&b, ", advisor: %s", d.AdvisorCategory)
		}
		b.WriteString("\n\n")
		for _, is := range d.Issues {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", is.Severity, is.Kind, is.Message)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// QualityMarkdown renders the quality report. Only records with issues get
// a row.
func QualityMarkdown(rep *model.QualityReport) string {
	var b strings.Builder
	s := rep.Summary

	b.WriteString("# Quality Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Records: %d\n", s.Total)
	fmt.Fprintf(&b, "- Average score: **%.2f**/100\n", s.AverageScore)
	fmt.Fprintf(&b, "- Excellent: %d, good: %d, poor: %d\n\n", s.Excellent, s.Good, s.Poor)

	if len(s.IssueCounts) > 0 {
		kinds := make([]string, 0, len(s.IssueCounts))
		for k := range s.IssueCounts {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)

		b.WriteString("## Issue counts\n\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "- %s: %d\n", k, s.IssueCounts[model.IssueKind(k)])
		}
		b.WriteString("\n")
	}

	var rows []model.QualityDetail
	for _, d := range rep.Details {
		if len(d.Issues) > 0 {
			rows = append(rows, d)
		}
	}
	if len(rows) == 0 {
		return b.String()
	}

	b.WriteString("## Records with issues\n\n")
	b.WriteString("| Record | Score | Evaluation | Issues |\n")
	b.WriteString("|--------|-------|------------|--------|\n")
	for _, d := range rows {
		kinds := make([]string, len(d.Issues))
		for i, is := range d.Issues {
			kinds[i] = string(is.Kind)
		}
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", d.RecordID, d.Score, d.Evaluation, strings.Join(kinds, ", "))
	}

	return b.String()
}

// RunMarkdown renders the run summary
func RunMarkdown(run *model.RunReport) string {
	var b strings.Builder

	b.WriteString("# Run Summary\n\n")
	fmt.Fprintf(&b, "**Run:** %s\n\n", run.RunID)
	if run.Source != "" {
		fmt.Fprintf(&b, "**Source:** %s\n\n", run.Source)
	}
	fmt.Fprintf(&b, "**Duration:** %s\n\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

	b.WriteString("| Stage | Result |\n")
	b.WriteString("|-------|--------|\n")
	fmt.Fprintf(&b, "| Input | %d records |\n", run.Counts.OriginalCount)
	fmt.Fprintf(&b, "| Duplicates | %d pairs, %d removed |\n", run.Duplicates.Total, run.Duplicates.Removed)
	fmt.Fprintf(&b, "| Categories | %d auto-fixed, %d manual review, %d removed |\n",
		run.Categories.AutoFixed, run.Categories.ManualReview, run.Categories.Removed)
	fmt.Fprintf(&b, "| Quality | average %.2f |\n", run.Quality.AverageScore)
	fmt.Fprintf(&b, "| Output | %d records |\n", run.Counts.FinalCount)

	return b.String()
}

func methodSummary(m map[model.DetectionMethod]int) string {
	return fmt.Sprintf("keyword %d, editDistance %d, oppositeAnswer %d",
		m[model.MethodKeyword], m[model.MethodEditDistance], m[model.MethodOppositeAnswer])
}

func answerMark(b bool) string {
	if b {
		return "○"
	}
	return "×"
}

// quote renders s as a Markdown blockquote, one "> " per line
func quote(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		b.WriteString(">")
		if line != "" {
			b.WriteString(" ")
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
