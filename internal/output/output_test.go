package output

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felipepimentel/aibook/internal/book"
	"github.com/felipepimentel/aibook/internal/epub"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake-image-data")

func fixture() Document {
	shared := book.ImageRef{Path: "OEBPS/images/fig.png", MediaType: "image/png", Data: pngBytes}
	b := &book.Book{
		Title:    "Go & Friends",
		Author:   "A. Author",
		Language: book.LangEnglish,
		Chapters: []book.Chapter{
			{Index: 0, Title: "Intro", Text: "x", Images: []book.ImageRef{shared}},
			{Index: 1, Title: "Middle", Text: "y", Images: []book.ImageRef{{Path: "OEBPS/other/fig.png", MediaType: "image/png", Data: []byte("second")}}},
			{Index: 2, Title: "End", Text: "z", Images: []book.ImageRef{shared, {Path: "OEBPS/images/pic.jpg", MediaType: "image/jpeg", Data: []byte("jpeg")}}},
		},
	}
	return Document{
		Book: b,
		Plan: book.SummaryPlan{Summary: "The plan.", Keywords: []string{"go"}, Glossary: []string{"goroutine: a lightweight thread"}},
		Outcomes: []book.Outcome{
			{Summary: &book.ChapterSummary{Index: 0, Summary: book.Summary{Summary: "About goroutines and go.", Keywords: []string{"go", "goroutines"}}}},
			{Failure: &book.Failure{Index: 1, Kind: book.FailureProvider, Reason: "timeout"}},
			{Summary: &book.ChapterSummary{Index: 2, Summary: book.Summary{Summary: "The end <b>.", References: []string{"ref"}}}},
		},
		Format: FormatHTML,
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	a1, err := Assemble(fixture())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	a2, err := Assemble(fixture())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(a1.Markdown, a2.Markdown) || !bytes.Equal(a1.EPUB, a2.EPUB) || !bytes.Equal(a1.HTML, a2.HTML) {
		t.Fatal("artifacts differ between identical runs")
	}
}

func TestMarkdownPlaceholderOrder(t *testing.T) {
	a, err := Assemble(fixture())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	md := string(a.Markdown)
	first := strings.Index(md, "**goroutines**")
	gap := strings.Index(md, Placeholder)
	last := strings.Index(md, "The end")
	if first < 0 || gap < 0 || last < 0 || !(first < gap && gap < last) {
		t.Fatalf("unexpected order: %d %d %d\n%s", first, gap, last, md)
	}
	if !strings.Contains(md, "About **goroutines** and **go**.") {
		t.Fatalf("keywords not highlighted:\n%s", md)
	}
	for _, want := range []string{"# Go & Friends", "## Overview", "## Glossary", "- goroutine: a lightweight thread", "![Image from Intro](./images/fig.png)", "### References"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestImageNames(t *testing.T) {
	a, err := Assemble(fixture())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var names []string
	for _, img := range a.Images {
		names = append(names, img.Name)
	}
	want := []string{"fig.png", "fig-2.png", "pic.jpg"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("names = %v, want %v", names, want)
	}
	if !bytes.Equal(a.Images[0].Data, pngBytes) {
		t.Fatal("image bytes were altered")
	}
}

func TestEPUBRoundTrip(t *testing.T) {
	doc := fixture()
	a, err := Assemble(doc)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	path := filepath.Join(t.TempDir(), "summary.epub")
	if err := os.WriteFile(path, a.EPUB, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := epub.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got.Chapters) != len(doc.Book.Chapters) {
		t.Fatalf("chapters = %d, want %d", len(got.Chapters), len(doc.Book.Chapters))
	}
	if n, want := len(got.Images()), len(doc.Book.Images()); n != want {
		t.Fatalf("images = %d, want %d", n, want)
	}
	if got.Title != doc.Book.Title || got.Chapters[1].Title != "Middle" {
		t.Fatalf("metadata = %q / %q", got.Title, got.Chapters[1].Title)
	}
	if !strings.Contains(got.Chapters[1].Text, Placeholder) {
		t.Fatalf("failed chapter text = %q", got.Chapters[1].Text)
	}
	for _, img := range got.Images() {
		if img.Path == "OEBPS/images/fig.png" && !bytes.Equal(img.Data, pngBytes) {
			t.Fatal("image bytes changed in the EPUB")
		}
	}
}

func TestHTMLEscapesAndHighlights(t *testing.T) {
	a, err := Assemble(fixture())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	page := string(a.HTML)
	if !strings.Contains(page, "The end &lt;b&gt;.") {
		t.Fatalf("summary not escaped:\n%s", page)
	}
	if !strings.Contains(page, "<strong>goroutines</strong>") {
		t.Fatalf("keyword not highlighted:\n%s", page)
	}
	if !strings.Contains(page, `class="failed"`) {
		t.Fatal("missing failure placeholder")
	}

	doc := fixture()
	doc.Format = FormatMarkdown
	a, err = Assemble(doc)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if a.HTML != nil {
		t.Fatal("HTML rendered for markdown format")
	}
}

func TestAssembleValidates(t *testing.T) {
	doc := fixture()
	doc.Outcomes = doc.Outcomes[:2]
	_, err := Assemble(doc)
	var ae *AssemblyError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want AssemblyError", err)
	}

	doc = fixture()
	doc.Outcomes[0] = book.Outcome{}
	if _, err := Assemble(doc); err == nil {
		t.Fatal("empty outcome accepted")
	}
}

func TestWrite(t *testing.T) {
	a, err := Assemble(fixture())
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := a.Write(dir)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(paths) != 6 {
		t.Fatalf("paths = %v", paths)
	}
	for _, name := range []string{MarkdownFile, EPUBFile, HTMLFile, "images/fig-2.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestHighlighterWordBoundaries(t *testing.T) {
	hl := newHighlighter([]string{"go", "go routines", "ação"})
	mark := func(k string) string { return "[" + k + "]" }
	tests := []struct{ in, want string }{
		{"go is good", "[go] is good"},
		{"go routines run", "[go routines] run"},
		{"a ação, ações", "a [ação], ações"},
		{"ago", "ago"},
	}
	for _, tt := range tests {
		if got := hl.apply(tt.in, identity, mark); got != tt.want {
			t.Errorf("apply(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Hello, World!", "hello-world"},
		{"  The Go_Programming/Language.epub ", "the-go-programming-language-epub"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := SafeName("../../etc/passwd"); strings.Contains(got, "/") {
		t.Errorf("SafeName kept a separator: %q", got)
	}
	if got := SafeName(".."); got != "untitled" {
		t.Errorf("SafeName(..) = %q", got)
	}
}

func TestMarkdownImageAltEscapesBrackets(t *testing.T) {
	doc := fixture()
	doc.Book.Chapters[0].Title = `Arrays [part 1 "basics"`
	a, err := Assemble(doc)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := `![Image from Arrays \[part 1 "basics"](./images/fig.png)`
	if !strings.Contains(string(a.Markdown), want) {
		t.Fatalf("markdown missing %q:\n%s", want, a.Markdown)
	}
}
