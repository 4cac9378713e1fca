package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felipepimentel/aibook/internal/ai"
	"github.com/felipepimentel/aibook/internal/book"
	"github.com/felipepimentel/aibook/internal/progress"
)

const validReply = `{"summary":"S","keywords":["k"],"glossary":[],"references":[],"additional_resources":[]}`

// scripted answers each call with the next entry of its script; the last
// entry repeats.
type scripted struct {
	mu     sync.Mutex
	script []func(ai.Request) (ai.Response, error)
	reqs   []ai.Request
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Summarize(ctx context.Context, req ai.Request) (ai.Response, error) {
	s.mu.Lock()
	n := len(s.reqs)
	s.reqs = append(s.reqs, req)
	step := s.script[min(n, len(s.script)-1)]
	s.mu.Unlock()
	return step(req)
}

func (s *scripted) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

func reply(text string) func(ai.Request) (ai.Response, error) {
	return func(ai.Request) (ai.Response, error) { return ai.Response{Text: text}, nil }
}

func fail(kind ai.Kind) func(ai.Request) (ai.Response, error) {
	return func(ai.Request) (ai.Response, error) {
		return ai.Response{}, &ai.Error{Provider: "scripted", Kind: kind}
	}
}

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func testBook(texts ...string) *book.Book {
	b := &book.Book{Title: "T", Language: book.LangEnglish}
	for i, t := range texts {
		b.Chapters = append(b.Chapters, book.Chapter{Index: i, Title: "Chapter", Text: t})
	}
	return b
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
	tests := []struct {
		n    int
		hint time.Duration
		want time.Duration
	}{
		{1, 0, 2 * time.Second},
		{2, 0, 4 * time.Second},
		{3, 0, 8 * time.Second},
		{6, 0, 30 * time.Second},
		{1, 10 * time.Second, 10 * time.Second},
		{3, time.Second, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.n, tt.hint); got != tt.want {
			t.Errorf("Delay(%d, %v) = %v, want %v", tt.n, tt.hint, got, tt.want)
		}
	}
}

func TestRateLimitedExhaustsAttempts(t *testing.T) {
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){fail(ai.RateLimited)}}
	s := &Summarizer{Provider: prov, Policy: fastPolicy(), Workers: 1}
	out := s.Run(context.Background(), testBook("some text"), book.SummaryPlan{Summary: "plan"})

	if got := prov.calls(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if out[0].Failure == nil || out[0].Failure.Kind != book.FailureProvider {
		t.Fatalf("outcome = %+v, want provider failure", out[0])
	}
}

func TestPermanentErrorsFailImmediately(t *testing.T) {
	for _, kind := range []ai.Kind{ai.AuthenticationFailed, ai.InvalidModel} {
		prov := &scripted{script: []func(ai.Request) (ai.Response, error){fail(kind)}}
		s := &Summarizer{Provider: prov, Policy: fastPolicy(), Workers: 1}
		out := s.Run(context.Background(), testBook("text"), book.SummaryPlan{})
		if prov.calls() != 1 {
			t.Fatalf("%v: calls = %d, want 1", kind, prov.calls())
		}
		if out[0].OK() {
			t.Fatalf("%v: chapter should fail", kind)
		}
	}
}

func TestTransientThenSuccess(t *testing.T) {
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){fail(ai.Timeout), fail(ai.Transport), reply(validReply)}}
	s := &Summarizer{Provider: prov, Policy: fastPolicy(), Workers: 1}
	out := s.Run(context.Background(), testBook("text"), book.SummaryPlan{})
	if !out[0].OK() || out[0].Summary.Summary.Summary != "S" {
		t.Fatalf("outcome = %+v", out[0])
	}
	if prov.calls() != 3 {
		t.Fatalf("calls = %d, want 3", prov.calls())
	}
}

func TestMalformedGetsOneCorrectiveRetry(t *testing.T) {
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){reply("not json"), reply(validReply)}}
	s := &Summarizer{Provider: prov, Policy: fastPolicy(), Workers: 1}
	out := s.Run(context.Background(), testBook("text"), book.SummaryPlan{})
	if !out[0].OK() {
		t.Fatalf("outcome = %+v, want success", out[0])
	}
	if prov.calls() != 2 {
		t.Fatalf("calls = %d, want 2", prov.calls())
	}
	if !strings.HasSuffix(prov.reqs[1].User, correction) {
		t.Fatalf("second request lacks the correction")
	}

	prov = &scripted{script: []func(ai.Request) (ai.Response, error){reply("still not json")}}
	s.Provider = prov
	out = s.Run(context.Background(), testBook("text"), book.SummaryPlan{})
	if out[0].Failure == nil || out[0].Failure.Kind != book.FailureMalformed {
		t.Fatalf("outcome = %+v, want malformed failure", out[0])
	}
	if prov.calls() != 2 {
		t.Fatalf("calls = %d, want 2", prov.calls())
	}
}

func TestEmptyChapterSkipsProvider(t *testing.T) {
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){reply(validReply)}}
	s := &Summarizer{Provider: prov, Policy: fastPolicy(), Workers: 2}
	out := s.Run(context.Background(), testBook("  \n ", "text"), book.SummaryPlan{})
	if out[0].Failure == nil || out[0].Failure.Kind != book.FailureEmpty {
		t.Fatalf("outcome[0] = %+v", out[0])
	}
	if !out[1].OK() || prov.calls() != 1 {
		t.Fatalf("outcome[1] = %+v, calls = %d", out[1], prov.calls())
	}
}

func TestOutcomesKeepChapterOrder(t *testing.T) {
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){func(req ai.Request) (ai.Response, error) {
		// Later chapters answer first.
		if strings.Contains(req.User, "chapter-0") {
			time.Sleep(20 * time.Millisecond)
		}
		return ai.Response{Text: validReply}, nil
	}}}
	tr := progress.NewTracker(4, nil)
	s := &Summarizer{Provider: prov, Policy: fastPolicy(), Workers: 4, Tracker: tr}
	out := s.Run(context.Background(), testBook("chapter-0", "chapter-1", "chapter-2", "chapter-3"), book.SummaryPlan{})
	for i, o := range out {
		if !o.OK() || o.Summary.Index != i {
			t.Fatalf("outcome[%d] = %+v", i, o)
		}
	}
	if tr.Completed() != 4 {
		t.Fatalf("tracker = %d, want 4", tr.Completed())
	}
}

func TestCancelStopsNewCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int32
	release := make(chan struct{})
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){func(req ai.Request) (ai.Response, error) {
		started.Add(1)
		cancel()
		<-release
		return ai.Response{Text: validReply}, nil
	}}}
	s := &Summarizer{Provider: prov, Policy: fastPolicy(), Workers: 1}
	done := make(chan []book.Outcome)
	go func() { done <- s.Run(ctx, testBook("a", "b", "c"), book.SummaryPlan{}) }()

	// Let the in-flight call finish after cancellation.
	time.Sleep(10 * time.Millisecond)
	close(release)
	out := <-done

	if got := started.Load(); got != 1 {
		t.Fatalf("calls started = %d, want 1", got)
	}
	if !out[0].OK() {
		t.Fatalf("in-flight chapter should complete, got %+v", out[0])
	}
	for _, o := range out[1:] {
		if o.Failure == nil || o.Failure.Kind != book.FailureCanceled {
			t.Fatalf("outcome = %+v, want canceled", o)
		}
	}
}

func TestPlanBuild(t *testing.T) {
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){reply("```json\n" + validReply + "\n```")}}
	tr := progress.NewTracker(2, nil)
	p := &Planner{Provider: prov, Policy: fastPolicy(), Language: book.LangPtBR, Tracker: tr}
	b := testBook("x", "y")
	b.Chapters[1].Title = "Second"
	plan, err := p.Build(context.Background(), b)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if plan.Summary != "S" || len(plan.Keywords) != 1 {
		t.Fatalf("plan = %+v", plan)
	}
	if got := prov.reqs[0].Language; got != book.LangPtBR {
		t.Errorf("request language = %q, want %q", got, book.LangPtBR)
	}
	user := prov.reqs[0].User
	if !strings.Contains(user, "2. Second") || !strings.Contains(user, "Brazilian Portuguese") {
		t.Fatalf("plan prompt missing toc or language:\n%s", user)
	}
	if tr.Completed() != 1 {
		t.Fatalf("tracker = %d, want 1", tr.Completed())
	}
}

func TestPlanMalformedIsFatal(t *testing.T) {
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){reply("I cannot do that")}}
	p := &Planner{Provider: prov, Policy: fastPolicy()}
	_, err := p.Build(context.Background(), testBook("x"))
	var pe *PlanError
	if !errors.As(err, &pe) || pe.Kind != PlanMalformedResponse || !IsMalformed(err) {
		t.Fatalf("err = %v, want malformed PlanError", err)
	}
	if prov.calls() != 1 {
		t.Fatalf("calls = %d, want 1", prov.calls())
	}
}

func TestPlanProviderFailure(t *testing.T) {
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){fail(ai.AuthenticationFailed)}}
	p := &Planner{Provider: prov, Policy: fastPolicy()}
	_, err := p.Build(context.Background(), testBook("x"))
	var pe *PlanError
	if !errors.As(err, &pe) || pe.Kind != PlanProviderFailed {
		t.Fatalf("err = %v, want provider PlanError", err)
	}
	if ai.KindOf(err) != ai.AuthenticationFailed {
		t.Fatalf("KindOf = %v", ai.KindOf(err))
	}
}

type memCache map[int]book.Summary

func (m memCache) Get(_ context.Context, _ string, unit int) (book.Summary, bool, error) {
	s, ok := m[unit]
	return s, ok, nil
}

func (m memCache) Put(_ context.Context, _ string, unit int, s book.Summary) error {
	m[unit] = s
	return nil
}

func TestCacheShortCircuitsCalls(t *testing.T) {
	cache := memCache{}
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){reply(validReply)}}
	s := &Summarizer{Provider: prov, Policy: fastPolicy(), Workers: 1, Cache: cache}
	s.Run(context.Background(), testBook("a"), book.SummaryPlan{})
	s.Run(context.Background(), testBook("a"), book.SummaryPlan{})
	if prov.calls() != 1 {
		t.Fatalf("calls = %d, want 1", prov.calls())
	}
}

func TestParseSummary(t *testing.T) {
	got, err := parseSummary(`Sure! {"summary":" body ","keywords":"go, Go, channels","glossary":null,"references":["r"],"additional_resources":[]}`)
	if err != nil {
		t.Fatalf("parseSummary: %v", err)
	}
	if got.Summary != "body" || len(got.Keywords) != 2 || got.Keywords[1] != "channels" {
		t.Fatalf("summary = %+v", got)
	}
	for _, bad := range []string{"", "{}", `{"summary":""}`, `{"summary":"x","keywords":[1]}`} {
		if _, err := parseSummary(bad); !errors.Is(err, errMalformed) {
			t.Errorf("parseSummary(%q) err = %v, want malformed", bad, err)
		}
	}
}

func TestSplit(t *testing.T) {
	out := []book.Outcome{
		{Summary: &book.ChapterSummary{Index: 0}},
		{Failure: &book.Failure{Index: 1, Kind: book.FailureProvider}},
		{Summary: &book.ChapterSummary{Index: 2}},
	}
	ok, failed := Split(out)
	if len(ok) != 2 || ok[0] != 0 || ok[1] != 2 || len(failed) != 1 || failed[0].Index != 1 {
		t.Fatalf("Split = %v %v", ok, failed)
	}
}

func TestChapterRequestCarriesLanguage(t *testing.T) {
	prov := &scripted{script: []func(ai.Request) (ai.Response, error){reply(validReply)}}
	s := &Summarizer{Provider: prov, Policy: fastPolicy(), Workers: 1, Language: book.LangPtBR, DetailLevel: DetailShort}
	s.Run(context.Background(), testBook("texto"), book.SummaryPlan{Summary: "plan"})
	if prov.calls() != 1 {
		t.Fatalf("calls = %d, want 1", prov.calls())
	}
	if got := prov.reqs[0].Language; got != book.LangPtBR {
		t.Fatalf("request language = %q, want %q", got, book.LangPtBR)
	}
}
