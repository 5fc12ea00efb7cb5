// Package dedupe finds near-duplicate and contradicting statements and
// decides which record of each pair to drop.
package dedupe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/quizlint/internal/model"
	"github.com/ppiankov/quizlint/internal/text"
	"github.com/ppiankov/quizlint/internal/worker"
)

// Options are the detector's thresholds, all inclusive
type Options struct {
	KeywordThreshold  float64
	EditThreshold     float64
	OppositeThreshold float64
	Workers           int
}

// OptionsFromConfig builds detector options from runtime config
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		KeywordThreshold:  cfg.Thresholds.Keyword,
		EditThreshold:     cfg.Thresholds.EditDistance,
		OppositeThreshold: cfg.Thresholds.Opposite,
		Workers:           cfg.Workers,
	}
}

// Validate checks that thresholds are in [0, 1]
func (o Options) Validate() error {
	for name, v := range map[string]float64{
		"keyword":         o.KeywordThreshold,
		"edit distance":   o.EditThreshold,
		"opposite answer": o.OppositeThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s threshold %v out of range [0,1]", name, v)
		}
	}
	return nil
}

// Stats counts the work done by each pass
type Stats struct {
	Records           int           `json:"records"`
	PairsCompared     int           `json:"pairs_compared"`
	KeywordCandidates int           `json:"keyword_candidates"`
	EditConfirmed     int           `json:"edit_confirmed"`
	OppositeAnswers   int           `json:"opposite_answers"`
	Duplicates        int           `json:"duplicates"`
	Duration          time.Duration `json:"duration"`
}

// Result is the merged, canonical output of the three passes
type Result struct {
	Pairs             []model.DuplicatePair // Sorted by canonical key, one entry per pair
	KeywordCandidates []model.DuplicatePair // Pass 1 output, kept for reporting
	Stats             Stats
}

// Detector runs the keyword, edit-distance and opposite-answer passes
type Detector struct {
	tokenizer *text.Tokenizer
	polarity  *text.PolarityNormalizer
	opts      Options
	logger    zerolog.Logger
}

// NewDetector creates a detector
func NewDetector(tok *text.Tokenizer, pol *text.PolarityNormalizer, opts Options, logger zerolog.Logger) *Detector {
	return &Detector{
		tokenizer: tok,
		polarity:  pol,
		opts:      opts,
		logger:    logger,
	}
}

// prepared holds the per-record inputs shared by all pair comparisons
type prepared struct {
	ids        []model.RecordID
	statements []string
	normalized []string
	answers    []bool
	keywords   []text.KeywordSet
}

func (d *Detector) prepare(c *model.Corpus) *prepared {
	n := len(c.Records)
	p := &prepared{
		ids:        make([]model.RecordID, n),
		statements: make([]string, n),
		normalized: make([]string, n),
		answers:    make([]bool, n),
		keywords:   make([]text.KeywordSet, n),
	}
	for i, r := range c.Records {
		p.ids[i] = r.ID
		p.statements[i] = r.Statement
		p.normalized[i] = d.polarity.Normalize(r.Statement)
		p.answers[i] = r.Answer
		p.keywords[i] = d.tokenizer.ExtractKeywords(r.Statement)
	}
	return p
}

// Detect runs all three passes over the corpus. The result does not depend
// on the worker count.
func (d *Detector) Detect(ctx context.Context, c *model.Corpus) (*Result, error) {
	if err := d.opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	p := d.prepare(c)
	n := len(p.ids)

	// Passes 1 and 3 both enumerate every unordered pair, so they share one
	// sweep split into interleaved row chunks.
	chunks := chunkCount(n, d.opts.Workers)
	jobs := make([]worker.Job, chunks)
	for k := 0; k < chunks; k++ {
		jobs[k] = &sweepJob{p: p, opts: d.opts, offset: k, stride: chunks}
	}

	var keyword, opposite []model.DuplicatePair
	compared := 0
	for _, r := range worker.Run(ctx, d.opts.Workers, jobs) {
		if r == nil {
			return nil, fmt.Errorf("pair sweep: %w", context.Cause(ctx))
		}
		sr := r.(*sweepResult)
		keyword = append(keyword, sr.keyword...)
		opposite = append(opposite, sr.opposite...)
		compared += sr.compared
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pair sweep: %w", err)
	}

	sortPairs(keyword)
	sortPairs(opposite)

	// Pass 2: confirm keyword candidates on raw statement text. A confirmed
	// pair whose answers differ is a contradiction, not a plain duplicate.
	index := c.Index()
	var confirmed []model.DuplicatePair
	for _, cand := range keyword {
		i, k := index[cand.A], index[cand.B]
		sim := text.NormalizedEditDistance(p.statements[i], p.statements[k])
		if sim < d.opts.EditThreshold {
			continue
		}
		method := model.MethodEditDistance
		if p.answers[i] != p.answers[k] {
			method = model.MethodOppositeAnswer
		}
		confirmed = append(confirmed, model.DuplicatePair{
			A:          cand.A,
			B:          cand.B,
			Similarity: sim,
			Method:     method,
		})
	}

	// Pass 3 goes first so a pair found by both passes reports its
	// polarity-normalised similarity.
	pairs := Merge(opposite, confirmed)

	stats := Stats{
		Records:           n,
		PairsCompared:     compared,
		KeywordCandidates: len(keyword),
		EditConfirmed:     len(confirmed),
		OppositeAnswers:   len(opposite),
		Duplicates:        len(pairs),
		Duration:          time.Since(start),
	}

	d.logger.Debug().
		Int("records", stats.Records).
		Int("compared", stats.PairsCompared).
		Int("keyword", stats.KeywordCandidates).
		Int("edit", stats.EditConfirmed).
		Int("opposite", stats.OppositeAnswers).
		Int("duplicates", stats.Duplicates).
		Dur("duration", stats.Duration).
		Msg("duplicate passes complete")

	return &Result{
		Pairs:             pairs,
		KeywordCandidates: keyword,
		Stats:             stats,
	}, nil
}

// Merge unions pair lists in priority order. A pair found by several lists
// keeps the method of the first list that produced it. Self pairs are
// dropped and the result is sorted by canonical key.
func Merge(lists ...[]model.DuplicatePair) []model.DuplicatePair {
	seen := make(map[model.PairKey]bool)
	var merged []model.DuplicatePair
	for _, list := range lists {
		for _, pair := range list {
			if pair.A == pair.B {
				continue
			}
			pair = pair.Canonical()
			key := pair.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, pair)
		}
	}
	sortPairs(merged)
	return merged
}

func sortPairs(pairs []model.DuplicatePair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Key().Less(pairs[j].Key())
	})
}

// chunkCount picks the number of sweep jobs: a few per worker so that the
// triangular workload evens out.
func chunkCount(n, workers int) int {
	if workers <= 1 || n < 64 {
		return 1
	}
	chunks := workers * 4
	if chunks > n {
		chunks = n
	}
	return chunks
}

// sweepJob compares rows offset, offset+stride, ... against every later row
type sweepJob struct {
	p      *prepared
	opts   Options
	offset int
	stride int
}

type sweepResult struct {
	keyword  []model.DuplicatePair
	opposite []model.DuplicatePair
	compared int
}

func (r *sweepResult) GetError() error {
	return nil
}

func (j *sweepJob) Execute(ctx context.Context) worker.Result {
	p := j.p
	n := len(p.ids)
	res := &sweepResult{}

	for i := j.offset; i < n; i += j.stride {
		if ctx.Err() != nil {
			return res
		}
		for k := i + 1; k < n; k++ {
			if p.ids[i] == p.ids[k] {
				continue
			}
			res.compared++

			// Pass 1: keyword overlap
			if sim := text.Jaccard(p.keywords[i], p.keywords[k]); sim >= j.opts.KeywordThreshold {
				res.keyword = append(res.keyword, model.DuplicatePair{
					A:          p.ids[i],
					B:          p.ids[k],
					Similarity: sim,
					Method:     model.MethodKeyword,
				}.Canonical())
			}

			// Pass 3: opposite answers on polarity-stripped text. Statements
			// made only of markers normalise to "" and are not compared.
			if p.answers[i] != p.answers[k] && p.normalized[i] != "" && p.normalized[k] != "" {
				if sim := text.NormalizedEditDistance(p.normalized[i], p.normalized[k]); sim >= j.opts.OppositeThreshold {
					res.opposite = append(res.opposite, model.DuplicatePair{
						A:          p.ids[i],
						B:          p.ids[k],
						Similarity: sim,
						Method:     model.MethodOppositeAnswer,
					}.Canonical())
				}
			}
		}
	}
	return res
}
