// Package score computes the advisory 0-100 quality score of a statement
// from a declarative rule table.
package score

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/quizlint/internal/model"
	"github.com/ppiankov/quizlint/internal/rules"
)

// MaxScore is the score of a record with no issues
const MaxScore = 100

// Evaluation bucket boundaries, inclusive
const (
	ExcellentThreshold = 80
	GoodThreshold      = 60
)

// Rule is one compiled row of the quality rule table. Each rule deducts its
// penalty at most once per record.
type Rule struct {
	Kind     model.IssueKind
	Severity model.Severity
	Penalty  int
	Match    string
	Message  string

	terms    []string
	patterns []*regexp.Regexp
}

// Result is the score of one record
type Result struct {
	Score      int
	Evaluation model.Evaluation
	Issues     []model.ValidationIssue
}

// Scorer applies the rule table to records
type Scorer struct {
	rules     []Rule
	citations []*regexp.Regexp
	minLength int
	maxLength int
	logger    zerolog.Logger
	now       func() time.Time
}

// NewScorer compiles the quality rules. A rule pattern that does not compile
// is a configuration error; a citation pattern that does not compile is
// logged and ignored.
func NewScorer(rs *rules.Ruleset, bounds model.QualityConfig, logger zerolog.Logger) (*Scorer, error) {
	s := &Scorer{
		minLength: bounds.MinLength,
		maxLength: bounds.MaxLength,
		logger:    logger,
		now:       time.Now,
	}

	for _, qr := range rs.QualityRules {
		rule := Rule{
			Kind:     model.IssueKind(qr.Kind),
			Severity: model.Severity(qr.Severity),
			Penalty:  qr.Penalty,
			Match:    qr.Match,
			Message:  qr.Message,
		}
		for _, term := range qr.Terms {
			if t := fold(term); t != "" {
				rule.terms = append(rule.terms, t)
			}
		}
		for _, p := range qr.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("quality rule %s: compile %q: %w", qr.Kind, p, err)
			}
			rule.patterns = append(rule.patterns, re)
		}
		s.rules = append(s.rules, rule)
	}

	for _, p := range rs.CitationPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			logger.Warn().Err(err).Str("pattern", p).Msg("skipping invalid citation pattern")
			continue
		}
		s.citations = append(s.citations, re)
	}

	return s, nil
}

// Score lints one record
func (s *Scorer) Score(rec model.QuestionRecord) Result {
	var issues []model.ValidationIssue
	for _, rule := range s.rules {
		if !s.triggers(rule, rec) {
			continue
		}
		issues = append(issues, model.ValidationIssue{
			RecordID: rec.ID,
			Kind:     rule.Kind,
			Severity: rule.Severity,
			Message:  rule.Message,
			Penalty:  rule.Penalty,
		})
	}

	score := ScoreIssues(issues)
	return Result{
		Score:      score,
		Evaluation: Evaluate(score),
		Issues:     issues,
	}
}

func (s *Scorer) triggers(rule Rule, rec model.QuestionRecord) bool {
	switch rule.Match {
	case rules.MatchPattern:
		statement := fold(rec.Statement)
		for _, t := range rule.terms {
			if strings.Contains(statement, t) {
				return true
			}
		}
		for _, re := range rule.patterns {
			if re.MatchString(statement) {
				return true
			}
		}
		return false
	case rules.MatchMinLength:
		return s.minLength > 0 && rec.StatementLength() < s.minLength
	case rules.MatchMaxLength:
		return s.maxLength > 0 && rec.StatementLength() > s.maxLength
	case rules.MatchMissingCitation:
		return !s.hasCitation(rec)
	default:
		return false
	}
}

func (s *Scorer) hasCitation(rec model.QuestionRecord) bool {
	ref := rec.ReferenceText()
	for _, re := range s.citations {
		if re.MatchString(ref) {
			return true
		}
	}
	return false
}

// ScoreIssues returns MaxScore minus the issue penalties, clamped to
// [0, MaxScore]. Penalties are never negative, so adding an issue never
// raises the score.
func ScoreIssues(issues []model.ValidationIssue) int {
	score := MaxScore
	for _, is := range issues {
		if is.Penalty > 0 {
			score -= is.Penalty
		}
	}
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Evaluate buckets a score
func Evaluate(score int) model.Evaluation {
	switch {
	case score >= ExcellentThreshold:
		return model.EvalExcellent
	case score >= GoodThreshold:
		return model.EvalGood
	default:
		return model.EvalPoor
	}
}

// ScoreCorpus scores every record and aggregates the results
func (s *Scorer) ScoreCorpus(c *model.Corpus) *model.QualityReport {
	report := &model.QualityReport{
		GeneratedAt: s.now().UTC(),
		Summary: model.QualitySummary{
			IssueCounts: make(map[model.IssueKind]int),
		},
		Details: make([]model.QualityDetail, 0, len(c.Records)),
	}

	total := 0
	for _, rec := range c.Records {
		res := s.Score(rec)
		total += res.Score

		switch res.Evaluation {
		case model.EvalExcellent:
			report.Summary.Excellent++
		case model.EvalGood:
			report.Summary.Good++
		default:
			report.Summary.Poor++
		}
		for _, is := range res.Issues {
			report.Summary.IssueCounts[is.Kind]++
		}

		report.Details = append(report.Details, model.QualityDetail{
			RecordID:   rec.ID,
			Score:      res.Score,
			Evaluation: res.Evaluation,
			Issues:     res.Issues,
		})
	}

	report.Summary.Total = len(c.Records)
	if report.Summary.Total > 0 {
		avg := float64(total) / float64(report.Summary.Total)
		report.Summary.AverageScore = math.Round(avg*100) / 100
	}

	s.logger.Debug().
		Int("records", report.Summary.Total).
		Float64("average", report.Summary.AverageScore).
		Int("poor", report.Summary.Poor).
		Msg("quality scoring complete")

	return report
}

func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}
