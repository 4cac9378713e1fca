// Package output renders the plan and chapter outcomes into the pocket
// edition: summary.md, summary.epub, an optional summary.html and the images
// both documents reference. Everything is rendered in memory first and the
// bytes depend only on the inputs.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felipepimentel/aibook/internal/book"
)

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

const (
	MarkdownFile = "summary.md"
	EPUBFile     = "summary.epub"
	HTMLFile     = "summary.html"
	ImagesDir    = "images"
)

// Document is everything the assembler needs. Outcomes holds one entry per
// chapter of Book, indexed by chapter number.
type Document struct {
	Book     *book.Book
	Plan     book.SummaryPlan
	Outcomes []book.Outcome
	Format   string
}

type Image struct {
	Name      string // file name under images/
	MediaType string
	Data      []byte
}

type Artifacts struct {
	Markdown []byte
	EPUB     []byte
	HTML     []byte // nil unless the html format was requested
	Images   []Image
}

// AssemblyError is fatal: nothing, or not everything, was written.
type AssemblyError struct {
	Op   string
	Path string
	Err  error
}

func (e *AssemblyError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("assemble: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("assemble: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Assemble renders every artifact in memory.
func Assemble(doc Document) (*Artifacts, error) {
	if err := validate(doc); err != nil {
		return nil, &AssemblyError{Op: "validate", Err: err}
	}
	imgs, names := ImageFiles(doc.Book.Images())
	r := &renderer{doc: doc, images: names}

	a := &Artifacts{Images: imgs, Markdown: r.markdown()}
	epubBytes, err := r.epub(identifier(a.Markdown, imgs))
	if err != nil {
		return nil, &AssemblyError{Op: "epub", Err: err}
	}
	a.EPUB = epubBytes
	if doc.Format == FormatHTML {
		if a.HTML, err = r.html(); err != nil {
			return nil, &AssemblyError{Op: "html", Err: err}
		}
	}
	return a, nil
}

func validate(doc Document) error {
	if doc.Book == nil {
		return errors.New("no book")
	}
	if len(doc.Outcomes) != len(doc.Book.Chapters) {
		return fmt.Errorf("%d outcomes for %d chapters", len(doc.Outcomes), len(doc.Book.Chapters))
	}
	for i, o := range doc.Outcomes {
		switch {
		case (o.Summary == nil) == (o.Failure == nil):
			return fmt.Errorf("chapter %d must have exactly one of summary or failure", i)
		case o.Summary != nil && o.Summary.Index != i:
			return fmt.Errorf("summary for chapter %d stored at slot %d", o.Summary.Index, i)
		case o.Failure != nil && o.Failure.Index != i:
			return fmt.Errorf("failure for chapter %d stored at slot %d", o.Failure.Index, i)
		}
	}
	return nil
}

// Write stores the artifacts under dir and returns the written paths.
func (a *Artifacts) Write(dir string) ([]string, error) {
	imgDir := filepath.Join(dir, ImagesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &AssemblyError{Op: "mkdir", Path: dir, Err: err}
	}
	if len(a.Images) > 0 {
		if err := os.MkdirAll(imgDir, 0o755); err != nil {
			return nil, &AssemblyError{Op: "mkdir", Path: imgDir, Err: err}
		}
	}

	type file struct {
		path string
		data []byte
	}
	files := []file{
		{filepath.Join(dir, MarkdownFile), a.Markdown},
		{filepath.Join(dir, EPUBFile), a.EPUB},
	}
	if a.HTML != nil {
		files = append(files, file{filepath.Join(dir, HTMLFile), a.HTML})
	}
	for _, img := range a.Images {
		files = append(files, file{filepath.Join(imgDir, img.Name), img.Data})
	}

	var written []string
	for _, f := range files {
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return written, &AssemblyError{Op: "write", Path: f.path, Err: err}
		}
		written = append(written, f.path)
	}
	return written, nil
}
