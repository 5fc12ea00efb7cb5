// Package validate checks records against the closed category set and the
// out-of-scope deny-list, and repairs miscategorised records.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/quizlint/internal/model"
)

// Result is the verdict for one record. Valid is false iff a high-severity
// issue was found.
type Result struct {
	Valid  bool
	Issues []model.ValidationIssue
}

// Check is one per-record rule. Checks run in order and their issues are
// concatenated.
type Check func(rec model.QuestionRecord) []model.ValidationIssue

// Options control how Process routes invalid records
type Options struct {
	AutoFix      bool // Rewrite fixable categories; otherwise queue them for review
	DropExcluded bool // Drop out-of-scope records from the output corpus
}

// Validator checks records against a Catalog
type Validator struct {
	catalog *Catalog
	checks  []Check
	opts    Options
	logger  zerolog.Logger
	now     func() time.Time
}

// NewValidator creates a new validator
func NewValidator(catalog *Catalog, opts Options, logger zerolog.Logger) *Validator {
	v := &Validator{
		catalog: catalog,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
	v.checks = []Check{v.checkScope, v.checkCategory}
	return v
}

// Catalog returns the compiled category table
func (v *Validator) Catalog() *Catalog {
	return v.catalog
}

// Validate checks one record
func (v *Validator) Validate(rec model.QuestionRecord) Result {
	var issues []model.ValidationIssue
	for _, check := range v.checks {
		issues = append(issues, check(rec)...)
	}
	return Result{Valid: !model.HasHigh(issues), Issues: issues}
}

// checkScope flags deny-listed references anywhere in the record
func (v *Validator) checkScope(rec model.QuestionRecord) []model.ValidationIssue {
	var issues []model.ValidationIssue
	for _, d := range v.catalog.DenyMatches(rec.CombinedText()) {
		issues = append(issues, model.ValidationIssue{
			RecordID: rec.ID,
			Kind:     model.IssueExcludedReference,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("out-of-scope reference %q: %s", d.marker, d.reason),
		})
	}
	return issues
}

func (v *Validator) checkCategory(rec model.QuestionRecord) []model.ValidationIssue {
	if !v.catalog.Has(rec.Category) {
		return []model.ValidationIssue{{
			RecordID: rec.ID,
			Kind:     model.IssueUnknownCategory,
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("category %q is not in the category set", rec.Category),
		}}
	}

	var issues []model.ValidationIssue
	combined := rec.CombinedText()
	if hits := v.catalog.ExcludedMatches(rec.Category, combined); len(hits) > 0 {
		issues = append(issues, model.ValidationIssue{
			RecordID: rec.ID,
			Kind:     model.IssueCategoryMismatch,
			Severity: model.SeverityMedium,
			Message:  fmt.Sprintf("references %s, which category %q excludes", strings.Join(hits, ", "), rec.Category),
		})
	}
	if !v.catalog.HasAllowedMarker(rec.Category, combined) {
		issues = append(issues, model.ValidationIssue{
			RecordID: rec.ID,
			Kind:     model.IssueNoAllowedMarker,
			Severity: model.SeverityLow,
			Message:  fmt.Sprintf("no topic marker for category %q", rec.Category),
		})
	}
	return issues
}

// SuggestCategory proposes a category from the record's own text. Category
// keyword lists are tried in table order and the first match wins, so the
// answer depends only on the record and the table.
func (v *Validator) SuggestCategory(rec model.QuestionRecord) (string, bool) {
	return v.catalog.Suggest(rec.Statement + "\n" + rec.Explanation)
}

// Outcome is the result of validating a whole corpus
type Outcome struct {
	Corpus       *model.Corpus // Fixed corpus; out-of-scope records dropped when configured
	Report       *model.CategoryReport
	RemovalQueue []model.RecordID
	ManualReview []model.RecordID
	Removed      map[model.RecordID]bool // Records dropped from Corpus
}

// Process validates every record and routes the invalid ones: out-of-scope
// records go to the removal queue, miscategorised ones are rewritten when a
// suggestion exists and queued for review otherwise. A failure while
// checking one record marks that record and does not stop the run. The
// input corpus is not modified.
func (v *Validator) Process(c *model.Corpus) *Outcome {
	report := &model.CategoryReport{
		GeneratedAt: v.now().UTC(),
		Details:     []model.CategoryDetail{},
		Fixes:       []model.CategoryFix{},
	}
	out := &Outcome{Removed: make(map[model.RecordID]bool)}

	records := make([]model.QuestionRecord, len(c.Records))
	copy(records, c.Records)

	for i := range records {
		rec := &records[i]
		result, failed := v.validateIsolated(*rec)

		report.Summary.Total++
		if result.Valid {
			report.Summary.Valid++
			if len(result.Issues) > 0 {
				report.Summary.Warnings++
			}
		} else {
			report.Summary.Invalid++
		}

		action := model.ActionNone
		var suggested string

		switch {
		case failed:
			action = model.ActionManualReview
		case hasKind(result.Issues, model.IssueExcludedReference):
			action = model.ActionRemove
		case hasKind(result.Issues, model.IssueCategoryMismatch, model.IssueUnknownCategory):
			suggested, action = v.route(*rec)
		}

		switch action {
		case model.ActionRemove:
			out.RemovalQueue = append(out.RemovalQueue, rec.ID)
			report.Summary.Removed++
			if v.opts.DropExcluded {
				out.Removed[rec.ID] = true
			}
		case model.ActionAutoFixed:
			fix := model.CategoryFix{RecordID: rec.ID, From: rec.Category, To: suggested}
			report.Fixes = append(report.Fixes, fix)
			report.Summary.AutoFixed++
			v.logger.Info().
				Str("record", rec.ID.String()).
				Str("from", fix.From).
				Str("to", fix.To).
				Msg("category fixed")
			rec.Category = suggested
		case model.ActionManualReview:
			out.ManualReview = append(out.ManualReview, rec.ID)
			report.Summary.ManualReview++
		}

		if len(result.Issues) > 0 {
			report.Details = append(report.Details, model.CategoryDetail{
				RecordID:          rec.ID,
				Category:          c.Records[i].Category,
				Valid:             result.Valid,
				Action:            action,
				SuggestedCategory: suggested,
				Statement:         rec.Statement,
				Issues:            result.Issues,
			})
		}
	}

	fixed := &model.Corpus{Records: records, Meta: c.Meta}
	out.Corpus = fixed.Without(out.Removed)
	out.Report = report
	return out
}

// route picks auto-fix or manual review for a fixable record
func (v *Validator) route(rec model.QuestionRecord) (string, model.CategoryAction) {
	suggested, ok := v.SuggestCategory(rec)
	if !ok || suggested == strings.TrimSpace(rec.Category) {
		return suggested, model.ActionManualReview
	}
	if !v.opts.AutoFix {
		return suggested, model.ActionManualReview
	}
	return suggested, model.ActionAutoFixed
}

// validateIsolated runs Validate and turns a panic into an invalid verdict
func (v *Validator) validateIsolated(rec model.QuestionRecord) (result Result, failed bool) {
	defer func() {
		if rv := recover(); rv != nil {
			v.logger.Warn().
				Str("record", rec.ID.String()).
				Str("panic", fmt.Sprint(rv)).
				Msg("category check failed")
			result = Result{
				Valid: false,
				Issues: []model.ValidationIssue{{
					RecordID: rec.ID,
					Kind:     model.IssueUnknownCategory,
					Severity: model.SeverityHigh,
					Message:  fmt.Sprintf("category check failed: %v", rv),
				}},
			}
			failed = true
		}
	}()
	return v.Validate(rec), false
}

func hasKind(issues []model.ValidationIssue, kinds ...model.IssueKind) bool {
	for _, is := range issues {
		for _, k := range kinds {
			if is.Kind == k {
				return true
			}
		}
	}
	return false
}
