package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/ppiankov/quizlint/internal/cache"
	"github.com/ppiankov/quizlint/internal/model"
	"github.com/ppiankov/quizlint/internal/worker"
)

// ErrNoAnswer means the model declined or answered outside the category set
var ErrNoAnswer = errors.New("advisor answer is not a known category")

// DefaultCacheTTL bounds how long an answer is reused
const DefaultCacheTTL = 7 * 24 * time.Hour

// Options configure an Advisor
type Options struct {
	Model             string
	MaxRecords        int // Upper bound on queries per run; 0 means no limit
	RequestsPerSecond float64
	Burst             int
	Cache             cache.Cache // Optional
	CacheTTL          time.Duration
}

// Advisor asks a Provider for categories, restricted to a closed set
type Advisor struct {
	provider   Provider
	categories []string
	known      map[string]string // Folded name -> canonical name
	limiter    *worker.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	model      string
	maxRecords int
	logger     zerolog.Logger
}

// New creates an advisor for the given category set
func New(provider Provider, categories []string, opts Options, logger zerolog.Logger) *Advisor {
	a := &Advisor{
		provider:   provider,
		categories: append([]string(nil), categories...),
		known:      make(map[string]string, len(categories)),
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		model:      opts.Model,
		maxRecords: opts.MaxRecords,
		logger:     logger,
	}
	for _, c := range categories {
		a.known[foldAnswer(c)] = c
	}
	if opts.RequestsPerSecond > 0 {
		a.limiter = worker.NewLimiter(opts.RequestsPerSecond, opts.Burst)
	}
	if a.cacheTTL == 0 {
		a.cacheTTL = DefaultCacheTTL
	}
	return a
}

// Suggest asks for one record's category. The answer is always a member of
// the category set; anything else is ErrNoAnswer.
func (a *Advisor) Suggest(ctx context.Context, rec model.QuestionRecord) (string, error) {
	key := a.cacheKey(rec)
	if a.cache != nil {
		if val, ok := a.cache.Get(key); ok {
			if len(val) == 0 {
				return "", ErrNoAnswer
			}
			return string(val), nil
		}
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, a.provider.Name()); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}

	resp, err := a.provider.SuggestCategory(ctx, CategoryRequest{
		Statement:   rec.Statement,
		Explanation: rec.Explanation,
		Reference:   rec.LegalReference,
		Current:     rec.Category,
		Categories:  a.categories,
		Model:       a.model,
	})
	if err != nil {
		return "", err
	}

	category, ok := a.ParseAnswer(resp.Answer)
	if a.cache != nil {
		if err := a.cache.Set(key, []byte(category), a.cacheTTL); err != nil {
			a.logger.Debug().Err(err).Msg("advisor cache write failed")
		}
	}
	if !ok {
		a.logger.Debug().
			Str("record", rec.ID.String()).
			Str("answer", resp.Answer).
			Msg("advisor answer rejected")
		return "", ErrNoAnswer
	}
	return category, nil
}

// SuggestAll queries records in order until MaxRecords is reached. Failures
// are logged and skipped; the returned map holds only accepted answers.
func (a *Advisor) SuggestAll(ctx context.Context, records []model.QuestionRecord) map[model.RecordID]string {
	out := make(map[model.RecordID]string)
	for i, rec := range records {
		if a.maxRecords > 0 && i >= a.maxRecords {
			a.logger.Info().
				Int("limit", a.maxRecords).
				Int("skipped", len(records)-i).
				Msg("advisor record limit reached")
			break
		}
		if ctx.Err() != nil {
			break
		}

		category, err := a.Suggest(ctx, rec)
		if err != nil {
			if !errors.Is(err, ErrNoAnswer) {
				a.logger.Warn().Err(err).Str("record", rec.ID.String()).Msg("advisor query failed")
			}
			continue
		}
		out[rec.ID] = category
	}
	return out
}

// ParseAnswer maps a reply onto the category set. An exact match wins;
// otherwise the reply must mention exactly one category.
func (a *Advisor) ParseAnswer(answer string) (string, bool) {
	folded := foldAnswer(answer)
	if folded == "" || folded == "none" {
		return "", false
	}
	if c, ok := a.known[folded]; ok {
		return c, true
	}

	var found string
	for f, c := range a.known {
		if strings.Contains(folded, f) {
			if found != "" && found != c {
				return "", false
			}
			found = c
		}
	}
	return found, found != ""
}

func (a *Advisor) cacheKey(rec model.QuestionRecord) string {
	parts := []string{a.provider.Name(), a.model, rec.Statement, rec.Explanation, rec.LegalReference, rec.Category}
	return cache.CacheKey(append(parts, a.categories...)...)
}

func foldAnswer(s string) string {
	s = strings.ToLower(norm.NFKC.String(s))
	return strings.Trim(s, " \t\r\n\"'`*.。、「」『』-:")
}
