// Package pocket runs the pocket-book pipeline end to end: extract, plan,
// summarize chapters, assemble and write.
package pocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/felipepimentel/aibook/internal/ai"
	"github.com/felipepimentel/aibook/internal/book"
	"github.com/felipepimentel/aibook/internal/cache"
	"github.com/felipepimentel/aibook/internal/config"
	"github.com/felipepimentel/aibook/internal/epub"
	"github.com/felipepimentel/aibook/internal/output"
	"github.com/felipepimentel/aibook/internal/progress"
	"github.com/felipepimentel/aibook/internal/summarize"
)

// ErrNothingSummarized fails a run in which every chapter failed.
var ErrNothingSummarized = errors.New("no chapter could be summarized")

// Deps are the collaborators of a run. Zero values are replaced by the
// defaults derived from the JobConfig.
type Deps struct {
	Provider ai.Provider
	Cache    summarize.Cache
	Sink     progress.Sink
	Logger   *slog.Logger
	// Policy overrides the retry policy derived from the JobConfig.
	Policy *summarize.Policy
}

type Report struct {
	Book      string         `json:"book"`
	Source    string         `json:"source"`
	OutputDir string         `json:"output_dir"`
	Chapters  int            `json:"chapters"`
	Succeeded []int          `json:"succeeded"`
	Failed    []book.Failure `json:"failed"`
	Outputs   []string       `json:"outputs"`
}

// OutputDir is where the artifacts of input go. A single input defaults to
// ./<stem>; with several inputs each book gets its own <dir>/<stem>.
func OutputDir(cfg *config.JobConfig, input string) string {
	stem := output.SafeName(strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
	switch {
	case len(cfg.Inputs) > 1:
		return filepath.Join(withDefault(cfg.OutputDir, "."), stem)
	case cfg.OutputDir != "":
		return cfg.OutputDir
	}
	return stem
}

// Summarize processes every input of cfg in order and stops at the first
// fatal error. The provider and cache are set up once for the whole run.
func Summarize(ctx context.Context, cfg *config.JobConfig, deps Deps) ([]*Report, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Provider == nil {
		p, err := ai.New(ctx, cfg.AIConfig())
		if err != nil {
			return nil, err
		}
		deps.Provider = p
	}
	if deps.Cache == nil && cfg.CachePath != "" {
		store, err := cache.Open(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		deps.Cache = store
	}

	var reports []*Report
	for _, input := range cfg.Inputs {
		rep, err := SummarizeBook(ctx, cfg, input, OutputDir(cfg, input), deps)
		if err != nil {
			return reports, fmt.Errorf("%s: %w", input, err)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// SummarizeBook runs the pipeline for one EPUB and writes the artifacts to
// dir. Nothing is written unless every chapter was attempted and at least
// one was summarized.
func SummarizeBook(ctx context.Context, cfg *config.JobConfig, input, dir string, deps Deps) (*Report, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("book", filepath.Base(input))

	b, err := epub.Extract(input)
	if err != nil {
		return nil, err
	}
	log.Info("extracted book", "title", b.Title, "chapters", len(b.Chapters), "images", len(b.Images()))

	policy := cfg.Policy()
	if deps.Policy != nil {
		policy = *deps.Policy
	}
	tracker := progress.NewTracker(len(b.Chapters)+1, deps.Sink)
	scope := cache.Scope(b, deps.Provider.Name(), cfg.Model, cfg.Language, cfg.DetailLevel)

	planner := &summarize.Planner{
		Provider: deps.Provider,
		Policy:   policy,
		Language: cfg.Language,
		Cache:    deps.Cache,
		Scope:    scope,
		Tracker:  tracker,
		Logger:   log,
	}
	plan, err := planner.Build(ctx, b)
	if err != nil {
		return nil, err
	}
	log.Debug("summary plan ready", "keywords", len(plan.Keywords))

	s := &summarize.Summarizer{
		Provider:    deps.Provider,
		Policy:      policy,
		Workers:     cfg.Workers,
		Language:    cfg.Language,
		DetailLevel: cfg.DetailLevel,
		Cache:       deps.Cache,
		Scope:       scope,
		Tracker:     tracker,
		Logger:      log,
	}
	outcomes := s.Run(ctx, b, plan)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run canceled, nothing written: %w", err)
	}

	succeeded, failed := summarize.Split(outcomes)
	if len(succeeded) == 0 {
		return nil, ErrNothingSummarized
	}

	// The pocket edition is written in the target language.
	pocketBook := *b
	pocketBook.Language = cfg.Language
	artifacts, err := output.Assemble(output.Document{
		Book:     &pocketBook,
		Plan:     plan,
		Outcomes: outcomes,
		Format:   cfg.OutputFormat,
	})
	if err != nil {
		return nil, err
	}
	paths, err := artifacts.Write(dir)
	if err != nil {
		return nil, err
	}
	log.Info("wrote pocket edition", "dir", dir, "succeeded", len(succeeded), "failed", len(failed))

	return &Report{
		Book:      b.Title,
		Source:    input,
		OutputDir: dir,
		Chapters:  len(b.Chapters),
		Succeeded: succeeded,
		Failed:    failed,
		Outputs:   paths,
	}, nil
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
