// Package summarize drives the provider: it builds the book-level plan and
// then summarizes every chapter on a bounded worker pool, retrying transient
// failures under a declared Policy.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/felipepimentel/aibook/internal/ai"
	"github.com/felipepimentel/aibook/internal/book"
	"github.com/felipepimentel/aibook/internal/progress"
)

// DefaultWorkers is the pool size used when Summarizer.Workers is unset.
func DefaultWorkers() int {
	return min(runtime.GOMAXPROCS(0), 8)
}

type Summarizer struct {
	Provider    ai.Provider
	Policy      Policy
	Workers     int
	Language    string
	DetailLevel string
	Cache       Cache
	Scope       string
	Tracker     *progress.Tracker
	Logger      *slog.Logger
}

// Run summarizes every chapter of b and returns one outcome per chapter,
// indexed by chapter number. A failing chapter never stops the others. Once
// ctx is done no new provider call is started and the chapters not yet
// attempted are recorded as canceled.
func (s *Summarizer) Run(ctx context.Context, b *book.Book, plan book.SummaryPlan) []book.Outcome {
	out := make([]book.Outcome, len(b.Chapters))
	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	workers = min(workers, max(len(b.Chapters), 1))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				ch := &b.Chapters[i]
				out[i] = s.chapter(ctx, ch, plan)
				s.Tracker.Done(ch.Title)
			}
		}()
	}

feed:
	for i := range b.Chapters {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < len(b.Chapters); j++ {
				out[j] = failed(j, book.FailureCanceled, "run canceled before the chapter was attempted")
				s.Tracker.Done(b.Chapters[j].Title)
			}
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return out
}

func (s *Summarizer) chapter(ctx context.Context, ch *book.Chapter, plan book.SummaryPlan) book.Outcome {
	log := logger(s.Logger).With("chapter", ch.Index, "title", ch.Title)
	if strings.TrimSpace(ch.Text) == "" {
		return failed(ch.Index, book.FailureEmpty, "chapter has no text")
	}
	if sum, ok := lookup(ctx, s.Cache, s.Scope, ch.Index, log); ok {
		return book.Outcome{Summary: &book.ChapterSummary{Index: ch.Index, Summary: sum}}
	}

	req := ai.Request{
		System:   systemPrompt,
		User:     chapterPrompt(plan, ch.Text, s.Language, s.DetailLevel),
		Language: s.Language,
	}
	corrected := false
	for {
		resp, err := s.Policy.call(ctx, s.Provider, req, log)
		if err != nil {
			if errors.Is(err, errStopped) {
				return failed(ch.Index, book.FailureCanceled, err.Error())
			}
			log.Warn("chapter failed", "kind", ai.KindOf(err).String(), "err", err)
			return failed(ch.Index, book.FailureProvider, err.Error())
		}
		sum, err := parseSummary(resp.Text)
		if err == nil {
			store(ctx, s.Cache, s.Scope, ch.Index, sum, log)
			return book.Outcome{Summary: &book.ChapterSummary{Index: ch.Index, Summary: sum}}
		}
		if corrected {
			log.Warn("chapter reply still malformed after correction", "err", err)
			return failed(ch.Index, book.FailureMalformed, err.Error())
		}
		log.Debug("malformed chapter reply, retrying with correction", "err", err)
		corrected = true
		req.User += correction
	}
}

func failed(index int, kind book.FailureKind, reason string) book.Outcome {
	return book.Outcome{Failure: &book.Failure{Index: index, Kind: kind, Reason: reason}}
}

// Split separates outcomes into succeeded indices and failures, both in
// chapter order.
func Split(outcomes []book.Outcome) (succeeded []int, failures []book.Failure) {
	for i, o := range outcomes {
		switch {
		case o.Summary != nil:
			succeeded = append(succeeded, i)
		case o.Failure != nil:
			failures = append(failures, *o.Failure)
		default:
			failures = append(failures, book.Failure{Index: i, Kind: book.FailureProvider, Reason: fmt.Sprintf("chapter %d has no result", i)})
		}
	}
	return succeeded, failures
}
