// Package pipeline runs the dedupe, category and quality stages over a
// corpus and renders their reports.
package pipeline

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ppiankov/quizlint/internal/advisor"
	"github.com/ppiankov/quizlint/internal/dedupe"
	"github.com/ppiankov/quizlint/internal/history"
	"github.com/ppiankov/quizlint/internal/model"
	"github.com/ppiankov/quizlint/internal/rules"
	"github.com/ppiankov/quizlint/internal/score"
	"github.com/ppiankov/quizlint/internal/text"
	"github.com/ppiankov/quizlint/internal/validate"
)

// Pipeline orchestrates a complete run
type Pipeline struct {
	config    *model.Config
	detector  *dedupe.Detector
	resolver  *dedupe.Resolver
	validator *validate.Validator
	scorer    *score.Scorer
	advisor   *advisor.Advisor // Optional category advisor (nil if disabled)
	logger    zerolog.Logger

	now     func() time.Time
	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New creates a pipeline from configuration and a rule table
func New(cfg *model.Config, rs *rules.Ruleset, logger zerolog.Logger) (*Pipeline, error) {
	opts := dedupe.OptionsFromConfig(cfg)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	scorer, err := score.NewScorer(rs, cfg.Quality, logger)
	if err != nil {
		return nil, err
	}

	tok := text.NewTokenizer(rs.Stopwords)
	pol := text.NewPolarityNormalizer(rs.PolarityMarkers)

	return &Pipeline{
		config:   cfg,
		detector: dedupe.NewDetector(tok, pol, opts, logger),
		resolver: dedupe.NewResolver(rs.CitationPatterns, logger),
		validator: validate.NewValidator(validate.NewCatalog(rs), validate.Options{
			AutoFix:      cfg.Validation.AutoFix,
			DropExcluded: cfg.Validation.DropExcluded,
		}, logger),
		scorer:  scorer,
		logger:  logger,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// SetAdvisor enables the category advisor for records left in manual review
func (p *Pipeline) SetAdvisor(a *advisor.Advisor) {
	p.advisor = a
}

// Categories returns the configured category names
func (p *Pipeline) Categories() []string {
	return p.validator.Catalog().Names()
}

// Result is everything a run produces. It is computed fully in memory
// before anything is written.
type Result struct {
	Corpus     *model.Corpus // Final corpus with Meta set
	Duplicates *model.DuplicateReport
	Categories *model.CategoryReport
	Quality    *model.QualityReport
	Run        *model.RunReport
	Removals   []history.Removal
}

// DuplicateStage is the output of the duplicate passes and resolution
type DuplicateStage struct {
	Detection  *dedupe.Result
	Resolution *dedupe.Resolution
	Report     *model.DuplicateReport
}

// Duplicates runs the duplicate passes and the removal policy
func (p *Pipeline) Duplicates(ctx context.Context, c *model.Corpus) (*DuplicateStage, error) {
	det, err := p.detector.Detect(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("detect duplicates: %w", err)
	}
	res := p.resolver.Resolve(c, det.Pairs)

	return &DuplicateStage{
		Detection:  det,
		Resolution: res,
		Report:     p.duplicateReport(c, det, res),
	}, nil
}

// Score runs the quality scorer alone
func (p *Pipeline) Score(c *model.Corpus) *model.QualityReport {
	return p.scorer.ScoreCorpus(c)
}

// Run executes every stage in order, each consuming the previous stage's
// output. The input corpus is not modified.
func (p *Pipeline) Run(ctx context.Context, c *model.Corpus, source string) (*Result, error) {
	started := p.now().UTC()
	runID := p.newRunID(started)

	// 1. Duplicate passes and resolution
	dup, err := p.Duplicates(ctx, c)
	if err != nil {
		return nil, err
	}
	p.logger.Debug().
		Int("duplicates", dup.Report.TotalDuplicates).
		Int("removed", len(dup.Resolution.RemovedIDs)).
		Msg("duplicate stage complete")

	// 2. Category validation on the deduplicated corpus
	outcome := p.validator.Process(dup.Resolution.Kept)

	// 3. Advisor for records nobody could fix (advisory, never applied)
	if p.advisor != nil && len(outcome.ManualReview) > 0 {
		p.advise(ctx, outcome)
	}

	// 4. Quality scoring on the final corpus
	final := outcome.Corpus
	quality := p.scorer.ScoreCorpus(final)

	finished := p.now().UTC()
	removedCount := len(c.Records) - len(final.Records)
	meta := &model.CorpusMeta{
		RunID:         runID,
		Source:        source,
		OriginalCount: len(c.Records),
		FinalCount:    len(final.Records),
		RemovedCount:  removedCount,
		FixedCount:    outcome.Report.Summary.AutoFixed,
		GeneratedAt:   finished.Format(time.RFC3339),
	}
	final = &model.Corpus{Records: final.Records, Meta: meta}

	run := &model.RunReport{
		RunID:      runID,
		Source:     source,
		StartedAt:  started,
		FinishedAt: finished,
		Counts:     *meta,
		Duplicates: model.DuplicateCounts{
			Total:    dup.Report.TotalDuplicates,
			ByMethod: dup.Report.ByMethod,
			Removed:  len(dup.Resolution.RemovedIDs),
		},
		Categories: outcome.Report.Summary,
		Quality:    quality.Summary,
	}

	return &Result{
		Corpus:     final,
		Duplicates: dup.Report,
		Categories: outcome.Report,
		Quality:    quality,
		Run:        run,
		Removals:   removals(dup.Resolution, outcome),
	}, nil
}

func (p *Pipeline) advise(ctx context.Context, outcome *validate.Outcome) {
	index := outcome.Corpus.Index()
	var records []model.QuestionRecord
	for _, id := range outcome.ManualReview {
		if i, ok := index[id]; ok {
			records = append(records, outcome.Corpus.Records[i])
		}
	}

	answers := p.advisor.SuggestAll(ctx, records)
	for i := range outcome.Report.Details {
		d := &outcome.Report.Details[i]
		if c, ok := answers[d.RecordID]; ok {
			d.AdvisorCategory = c
		}
	}
	p.logger.Info().
		Int("queried", len(records)).
		Int("answered", len(answers)).
		Msg("advisor suggestions recorded")
}

func (p *Pipeline) duplicateReport(c *model.Corpus, det *dedupe.Result, res *dedupe.Resolution) *model.DuplicateReport {
	index := c.Index()
	snippet := p.config.Output.Snippet

	report := &model.DuplicateReport{
		GeneratedAt:       p.now().UTC(),
		TotalDuplicates:   len(det.Pairs),
		ByMethod:          model.NewMethodCounts(),
		KeywordCandidates: len(det.KeywordCandidates),
		Thresholds:        p.config.Thresholds,
		Details:           make([]model.DuplicateDetail, 0, len(det.Pairs)),
		Decisions:         res.Decisions,
		Clusters:          res.Clusters,
		RemovedIDs:        res.RemovedIDs,
	}
	if report.Decisions == nil {
		report.Decisions = []model.RemovalDecision{}
	}
	if report.RemovedIDs == nil {
		report.RemovedIDs = []model.RecordID{}
	}

	for _, pair := range det.Pairs {
		report.ByMethod[pair.Method]++
		a, b := c.Records[index[pair.A]], c.Records[index[pair.B]]
		report.Details = append(report.Details, model.DuplicateDetail{
			Pair:            [2]model.RecordID{pair.A, pair.B},
			SimilarityScore: roundScore(pair.Similarity),
			Method:          pair.Method,
			Statements:      [2]string{a.Snippet(snippet), b.Snippet(snippet)},
			Answers:         [2]bool{a.Answer, b.Answer},
		})
	}
	return report
}

func removals(res *dedupe.Resolution, outcome *validate.Outcome) []history.Removal {
	methods := make(map[model.RecordID]string)
	for _, d := range res.Decisions {
		if _, ok := methods[d.Loser]; !ok {
			methods[d.Loser] = string(d.Rule)
		}
	}

	out := make([]history.Removal, 0, len(res.RemovedIDs)+len(outcome.Removed))
	for _, id := range res.RemovedIDs {
		out = append(out, history.Removal{RecordID: id.String(), Reason: history.ReasonDuplicate, Detail: methods[id]})
	}
	for _, id := range outcome.RemovalQueue {
		if outcome.Removed[id] {
			out = append(out, history.Removal{RecordID: id.String(), Reason: history.ReasonExcluded})
		}
	}
	return out
}

func (p *Pipeline) newRunID(t time.Time) string {
	p.idMu.Lock()
	defer p.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), p.entropy).String()
}

func roundScore(f float64) float64 {
	return float64(int(f*10000+0.5)) / 10000
}
