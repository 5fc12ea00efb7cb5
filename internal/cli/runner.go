package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/quizlint/internal/advisor"
	"github.com/ppiankov/quizlint/internal/cache"
	"github.com/ppiankov/quizlint/internal/corpus"
	"github.com/ppiankov/quizlint/internal/history"
	"github.com/ppiankov/quizlint/internal/model"
	"github.com/ppiankov/quizlint/internal/pipeline"
	"github.com/ppiankov/quizlint/internal/rules"
)

// runner wires configuration into a pipeline and writes its artifacts. It
// implements worker.Processor for batch runs.
type runner struct {
	cfg      *model.Config
	pipeline *pipeline.Pipeline
	renderer *pipeline.Renderer
	history  *history.Store // Optional
	logger   zerolog.Logger

	outDir string // Batch root; each corpus gets its own subdirectory
	mu     sync.Mutex
	dirs   map[string]int
}

func newRunner(ctx context.Context, cfg *model.Config, logger zerolog.Logger) (*runner, error) {
	rs, err := rules.LoadOrDefault(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	p, err := pipeline.New(cfg, rs, logger)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	if cfg.Advisor.Enabled {
		a, err := newAdvisor(cfg, p.Categories(), logger)
		if err != nil {
			// The advisor is optional; a broken setup only loses suggestions
			fmt.Fprintf(os.Stderr, "Warning: Failed to initialize advisor: %v\n", err)
		} else if a != nil {
			p.SetAdvisor(a)
		}
	}

	r := &runner{
		cfg:      cfg,
		pipeline: p,
		renderer: pipeline.NewRenderer(cfg.Output.Markdown),
		logger:   logger,
		dirs:     make(map[string]int),
	}

	if cfg.History.Path != "" {
		st, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		r.history = st
	}

	return r, nil
}

func newAdvisor(cfg *model.Config, categories []string, logger zerolog.Logger) (*advisor.Advisor, error) {
	provider, err := advisor.NewProvider(advisor.ConfigFromModel(cfg.Advisor))
	if err != nil || provider == nil {
		return nil, err
	}

	return advisor.New(provider, categories, advisor.Options{
		Model:             cfg.Advisor.Model,
		MaxRecords:        cfg.Advisor.MaxRecords,
		RequestsPerSecond: cfg.Advisor.RequestsPerSecond,
		Burst:             cfg.Advisor.Burst,
		Cache:             cache.New(cfg.Advisor.CacheDir, advisor.DefaultCacheTTL),
	}, logger), nil
}

func (r *runner) Close() error {
	if r.history != nil {
		return r.history.Close()
	}
	return nil
}

// process loads one corpus, runs every stage, and writes the artifacts to
// outDir. Nothing is written unless the whole run succeeds.
func (r *runner) process(ctx context.Context, input, outDir string) (*pipeline.Result, error) {
	c, err := corpus.Load(input)
	if err != nil {
		return nil, err
	}

	res, err := r.pipeline.Run(ctx, c, input)
	if err != nil {
		return nil, err
	}

	if _, err := r.renderer.WriteAll(res, outDir); err != nil {
		return nil, fmt.Errorf("render failed: %w", err)
	}

	if r.history != nil {
		if err := r.history.RecordRun(ctx, res.Run, res.Removals); err != nil {
			r.logger.Warn().Err(err).Str("run", res.Run.RunID).Msg("history write failed")
		}
	}

	return res, nil
}

// ProcessFile implements worker.Processor
func (r *runner) ProcessFile(ctx context.Context, path string) (*model.RunReport, error) {
	res, err := r.process(ctx, path, r.batchDir(path))
	if err != nil {
		return nil, err
	}
	return res.Run, nil
}

// batchDir picks a unique output subdirectory named after the input file
func (r *runner) batchDir(path string) string {
	name := sanitizeFilename(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dirs[name]++
	if n := r.dirs[name]; n > 1 {
		name = fmt.Sprintf("%s-%d", name, n)
	}
	return filepath.Join(r.outDir, name)
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(s)

	// Limit length
	if runes := []rune(s); len(runes) > 100 {
		s = string(runes[:100])
	}
	if s == "" || s == "." || s == ".." {
		s = "corpus"
	}
	return s
}

func elapsed(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
