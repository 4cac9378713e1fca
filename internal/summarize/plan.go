package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felipepimentel/aibook/internal/ai"
	"github.com/felipepimentel/aibook/internal/book"
	"github.com/felipepimentel/aibook/internal/progress"
)

type PlanErrorKind int

const (
	PlanProviderFailed PlanErrorKind = iota + 1
	PlanMalformedResponse
)

func (k PlanErrorKind) String() string {
	if k == PlanMalformedResponse {
		return "malformed response"
	}
	return "provider failed"
}

// PlanError aborts the run: no chapter is summarized without a plan.
type PlanError struct {
	Kind PlanErrorKind
	Err  error
}

func (e *PlanError) Error() string { return fmt.Sprintf("summary plan: %s: %v", e.Kind, e.Err) }
func (e *PlanError) Unwrap() error { return e.Err }

// PlanUnit is the cache unit of the book-level plan.
const PlanUnit = -1

// Cache stores finished summaries. scope identifies the book and job
// settings; unit is a chapter index or PlanUnit.
type Cache interface {
	Get(ctx context.Context, scope string, unit int) (book.Summary, bool, error)
	Put(ctx context.Context, scope string, unit int, s book.Summary) error
}

// Planner builds the book-level summary plan with one logical provider call.
type Planner struct {
	Provider ai.Provider
	Policy   Policy
	Language string
	Cache    Cache
	Scope    string
	Tracker  *progress.Tracker
	Logger   *slog.Logger
}

func (p *Planner) Build(ctx context.Context, b *book.Book) (book.SummaryPlan, error) {
	log := logger(p.Logger)
	if plan, ok := lookup(ctx, p.Cache, p.Scope, PlanUnit, log); ok {
		p.Tracker.Done("summary plan (cached)")
		return plan, nil
	}

	req := ai.Request{System: systemPrompt, User: planPrompt(b.TOC(), p.Language), Language: p.Language}
	resp, err := p.Policy.call(ctx, p.Provider, req, log)
	if err != nil {
		return book.SummaryPlan{}, &PlanError{Kind: PlanProviderFailed, Err: err}
	}
	plan, err := parseSummary(resp.Text)
	if err != nil {
		return book.SummaryPlan{}, &PlanError{Kind: PlanMalformedResponse, Err: err}
	}
	store(ctx, p.Cache, p.Scope, PlanUnit, plan, log)
	p.Tracker.Done("summary plan")
	return plan, nil
}

// IsMalformed reports whether err is a plan that could not be parsed.
func IsMalformed(err error) bool {
	var pe *PlanError
	return errors.As(err, &pe) && pe.Kind == PlanMalformedResponse
}

func lookup(ctx context.Context, c Cache, scope string, unit int, log *slog.Logger) (book.Summary, bool) {
	if c == nil {
		return book.Summary{}, false
	}
	s, ok, err := c.Get(ctx, scope, unit)
	if err != nil {
		log.Warn("cache read failed", "unit", unit, "err", err)
		return book.Summary{}, false
	}
	if ok {
		log.Debug("cache hit", "unit", unit)
	}
	return s, ok
}

func store(ctx context.Context, c Cache, scope string, unit int, s book.Summary, log *slog.Logger) {
	if c == nil {
		return
	}
	// Finished work is kept even when the run is being canceled.
	if err := c.Put(context.WithoutCancel(ctx), scope, unit, s); err != nil {
		log.Warn("cache write failed", "unit", unit, "err", err)
	}
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
