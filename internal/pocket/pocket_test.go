package pocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felipepimentel/aibook/internal/ai"
	"github.com/felipepimentel/aibook/internal/config"
	"github.com/felipepimentel/aibook/internal/epub"
	"github.com/felipepimentel/aibook/internal/output"
	"github.com/felipepimentel/aibook/internal/summarize"
)

// writeBook packages chapter bodies into an EPUB under dir.
func writeBook(t *testing.T, dir, name string, chapters ...string) string {
	t.Helper()
	pkg := &epub.Package{
		Identifier: "urn:uuid:test",
		Title:      "Test Book",
		Language:   "en",
		Nav:        epub.Resource{Href: "nav.xhtml", Data: []byte(`<html><body><nav></nav></body></html>`)},
		Resources:  []epub.Resource{{Href: "img/fig.png", MediaType: "image/png", Data: []byte("PNG")}},
	}
	for i, body := range chapters {
		pkg.Spine = append(pkg.Spine, epub.Resource{
			Href:  fmt.Sprintf("c%d.xhtml", i),
			Title: fmt.Sprintf("Chapter Title %d", i),
			Data:  []byte(`<html><body><p>` + body + `</p><img src="img/fig.png"/></body></html>`),
		})
	}
	var buf bytes.Buffer
	if err := epub.Write(&buf, pkg); err != nil {
		t.Fatalf("epub.Write: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeProvider answers plan and chapter prompts deterministically. Chapters
// whose text contains a key of fail get that error on every call.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	plan  string
	fail  map[string]ai.Kind
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Summarize(_ context.Context, req ai.Request) (ai.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if strings.Contains(req.User, "Table of Contents:") {
		if f.plan != "" {
			return ai.Response{Text: f.plan}, nil
		}
		return ai.Response{Text: `{"summary":"Book plan","keywords":["plan"],"glossary":["term: meaning"],"references":[],"additional_resources":[]}`}, nil
	}
	text := req.User[strings.LastIndex(req.User, "Text:\n")+len("Text:\n"):]
	for key, kind := range f.fail {
		if strings.Contains(text, key) {
			return ai.Response{}, &ai.Error{Provider: "fake", Kind: kind}
		}
	}
	body, _ := json.Marshal(map[string]any{
		"summary":  "Summary of " + strings.TrimSpace(text),
		"keywords": []string{"Summary"},
	})
	return ai.Response{Text: string(body)}, nil
}

func (f *fakeProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig(inputs ...string) *config.JobConfig {
	return &config.JobConfig{
		Inputs:       inputs,
		Provider:     "fake",
		Language:     "en",
		DetailLevel:  summarize.DetailMedium,
		OutputFormat: output.FormatMarkdown,
		Workers:      2,
		MaxAttempts:  3,
	}
}

func fastDeps(p ai.Provider) Deps {
	pol := summarize.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	return Deps{Provider: p, Policy: &pol}
}

func TestChapterTimeoutScenario(t *testing.T) {
	dir := t.TempDir()
	input := writeBook(t, dir, "book.epub", "alpha text", "beta text", "gamma text")
	prov := &fakeProvider{fail: map[string]ai.Kind{"beta": ai.Timeout}}
	out := filepath.Join(dir, "out")

	rep, err := SummarizeBook(context.Background(), testConfig(input), input, out, fastDeps(prov))
	if err != nil {
		t.Fatalf("SummarizeBook: %v", err)
	}
	if fmt.Sprint(rep.Succeeded) != "[0 2]" || len(rep.Failed) != 1 || rep.Failed[0].Index != 1 {
		t.Fatalf("report = %+v", rep)
	}
	// plan + chapters 0 and 2 + three attempts for chapter 1
	if got := prov.count(); got != 6 {
		t.Fatalf("provider calls = %d, want 6", got)
	}

	md, err := os.ReadFile(filepath.Join(out, output.MarkdownFile))
	if err != nil {
		t.Fatal(err)
	}
	text := string(md)
	a := strings.Index(text, "alpha text")
	gap := strings.Index(text, output.Placeholder)
	g := strings.Index(text, "gamma text")
	if a < 0 || gap < 0 || g < 0 || !(a < gap && gap < g) {
		t.Fatalf("placeholder not between chapters 0 and 2:\n%s", text)
	}
	for _, name := range []string{output.EPUBFile, "images/fig.png"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestMalformedPlanWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input := writeBook(t, dir, "book.epub", "alpha")
	prov := &fakeProvider{plan: "Sorry, here is a plan in prose."}
	out := filepath.Join(dir, "out")

	_, err := SummarizeBook(context.Background(), testConfig(input), input, out, fastDeps(prov))
	var pe *summarize.PlanError
	if !errors.As(err, &pe) || pe.Kind != summarize.PlanMalformedResponse {
		t.Fatalf("err = %v, want malformed PlanError", err)
	}
	if prov.count() != 1 {
		t.Fatalf("calls = %d, want 1", prov.count())
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output dir exists after a failed plan: %v", err)
	}
}

func TestEmptyBookMakesNoCalls(t *testing.T) {
	dir := t.TempDir()
	input := writeBook(t, dir, "empty.epub")
	prov := &fakeProvider{}

	_, err := SummarizeBook(context.Background(), testConfig(input), input, filepath.Join(dir, "out"), fastDeps(prov))
	if !errors.Is(err, epub.ErrEmptyBook) {
		t.Fatalf("err = %v, want ErrEmptyBook", err)
	}
	if prov.count() != 0 {
		t.Fatalf("calls = %d, want 0", prov.count())
	}
}

func TestAllChaptersFailing(t *testing.T) {
	dir := t.TempDir()
	input := writeBook(t, dir, "book.epub", "alpha", "beta")
	prov := &fakeProvider{fail: map[string]ai.Kind{"alpha": ai.AuthenticationFailed, "beta": ai.InvalidModel}}
	out := filepath.Join(dir, "out")

	_, err := SummarizeBook(context.Background(), testConfig(input), input, out, fastDeps(prov))
	if !errors.Is(err, ErrNothingSummarized) {
		t.Fatalf("err = %v, want ErrNothingSummarized", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("outputs written for a run with no summaries")
	}
}

func TestCanceledRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input := writeBook(t, dir, "book.epub", "alpha")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	prov := &fakeProvider{}
	out := filepath.Join(dir, "out")

	if _, err := SummarizeBook(ctx, testConfig(input), input, out, fastDeps(prov)); err == nil {
		t.Fatal("expected an error for a canceled run")
	}
	if prov.count() != 0 {
		t.Fatalf("calls = %d after cancel", prov.count())
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("outputs written for a canceled run")
	}
}

func TestRunsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	input := writeBook(t, dir, "book.epub", "alpha", "beta", "gamma", "delta")
	cfg := testConfig(input)
	cfg.OutputFormat = output.FormatHTML
	cfg.Workers = 4

	var dirs []string
	for i := 0; i < 2; i++ {
		out := filepath.Join(dir, fmt.Sprintf("run%d", i))
		if _, err := SummarizeBook(context.Background(), cfg, input, out, fastDeps(&fakeProvider{})); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		dirs = append(dirs, out)
	}
	for _, name := range []string{output.MarkdownFile, output.EPUBFile, output.HTMLFile} {
		a, err := os.ReadFile(filepath.Join(dirs[0], name))
		if err != nil {
			t.Fatal(err)
		}
		b, err := os.ReadFile(filepath.Join(dirs[1], name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s differs between runs", name)
		}
	}
}

func TestSummarizeMultipleInputs(t *testing.T) {
	dir := t.TempDir()
	first := writeBook(t, dir, "First Book.epub", "alpha")
	second := writeBook(t, dir, "second.epub", "beta")
	cfg := testConfig(first, second)
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.CachePath = filepath.Join(dir, "cache.db")

	prov := &fakeProvider{}
	reports, err := Summarize(context.Background(), cfg, fastDeps(prov))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(reports) != 2 || reports[0].OutputDir != filepath.Join(cfg.OutputDir, "First-Book") {
		t.Fatalf("reports = %+v", reports)
	}

	// Everything is cached now.
	calls := prov.count()
	if _, err := Summarize(context.Background(), cfg, fastDeps(prov)); err != nil {
		t.Fatalf("second Summarize: %v", err)
	}
	if prov.count() != calls {
		t.Fatalf("cached run made %d new calls", prov.count()-calls)
	}
}

func TestOutputDir(t *testing.T) {
	tests := []struct {
		cfg  *config.JobConfig
		in   string
		want string
	}{
		{&config.JobConfig{Inputs: []string{"a/My Book.epub"}}, "a/My Book.epub", "My-Book"},
		{&config.JobConfig{Inputs: []string{"a/b.epub"}, OutputDir: "out"}, "a/b.epub", "out"},
		{&config.JobConfig{Inputs: []string{"a.epub", "b.epub"}, OutputDir: "out"}, "b.epub", filepath.Join("out", "b")},
		{&config.JobConfig{Inputs: []string{"a.epub", "b.epub"}}, "a.epub", "a"},
	}
	for _, tt := range tests {
		if got := OutputDir(tt.cfg, tt.in); got != tt.want {
			t.Errorf("OutputDir(%v, %q) = %q, want %q", tt.cfg.Inputs, tt.in, got, tt.want)
		}
	}
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	input := writeBook(t, dir, "book.epub", "alpha", "beta")
	cfg := testConfig(input)
	cfg.OutputDir = filepath.Join(dir, "out")

	reports, err := Process(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(reports) != 1 || reports[0].Chapters != 2 || reports[0].Images != 1 {
		t.Fatalf("reports = %+v", reports[0])
	}
	text, err := os.ReadFile(filepath.Join(cfg.OutputDir, "chapters", "002-chapter-title-1.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(text)) != "beta" {
		t.Fatalf("chapter text = %q", text)
	}
	var m bookManifest
	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "book.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Chapters) != 2 || m.Chapters[0].Images[0] != "images/fig.png" {
		t.Fatalf("manifest = %+v", m)
	}
}
