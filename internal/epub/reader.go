// Package epub reads EPUB 2/3 archives into a book.Book and packages
// generated content back into an EPUB container.
package epub

import (
	"archive/zip"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/felipepimentel/aibook/internal/book"
)

type options struct {
	language string
}

type Option func(*options)

// WithLanguage forces the book language instead of deriving it from
// dc:language.
func WithLanguage(lang string) Option {
	return func(o *options) { o.language = lang }
}

// Extract parses the EPUB at path. Chapters follow the spine, one chapter per
// spine item, so the chapter count always equals the spine length.
func Extract(path string, opts ...Option) (*book.Book, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	zrc, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, newError(ErrNotAnEpub, path, err)
		}
		return nil, newError(ErrCorruptArchive, path, err)
	}
	defer zrc.Close()

	a := newArchive(&zrc.Reader)
	opfPath, err := findPackage(a)
	if err != nil {
		return nil, classify(path, ErrMissingManifest, err)
	}
	opfData, err := a.read(opfPath)
	if err != nil {
		return nil, newError(ErrMissingManifest, path, err)
	}
	pkg, err := parsePackage(opfData)
	if err != nil {
		return nil, classify(path, ErrCorruptArchive, err)
	}
	if len(pkg.Spine.ItemRefs) == 0 {
		return nil, newError(ErrEmptyBook, path, nil)
	}

	manifest := make(map[string]manifestItem, len(pkg.Manifest.Items))
	byPath := make(map[string]manifestItem, len(pkg.Manifest.Items))
	for _, it := range pkg.Manifest.Items {
		manifest[it.ID] = it
		byPath[resolveRelativePath(opfPath, it.Href)] = it
	}
	titles := readTitles(a, opfPath, pkg)

	b := &book.Book{
		Title:    first(pkg.Metadata.Titles),
		Author:   first(pkg.Metadata.Creators),
		Language: languageTag(first(pkg.Metadata.Languages)),
		Source:   path,
		Chapters: make([]book.Chapter, 0, len(pkg.Spine.ItemRefs)),
	}
	if b.Title == "" {
		b.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if o.language != "" {
		b.Language = o.language
	}

	items := make([]manifestItem, len(pkg.Spine.ItemRefs))
	for i, ref := range pkg.Spine.ItemRefs {
		item, ok := manifest[ref.IDRef]
		if !ok {
			return nil, newError(ErrMissingManifest, path, fmt.Errorf("spine item %q is not in the manifest", ref.IDRef))
		}
		items[i] = item
	}

	for i, item := range items {
		docPath := resolveRelativePath(opfPath, item.Href)
		ch, err := readChapter(a, byPath, i, docPath, item.MediaType)
		if err != nil {
			return nil, classify(path, ErrCorruptArchive, err)
		}
		ch.Title = titles[docPath]
		if ch.Title == "" {
			ch.Title = fmt.Sprintf("Chapter %d", i+1)
		}
		b.Chapters = append(b.Chapters, ch)
	}
	return b, nil
}

func readChapter(a *archive, byPath map[string]manifestItem, index int, docPath, mediaType string) (book.Chapter, error) {
	ch := book.Chapter{Index: index}
	if docPath == "" {
		return ch, errors.New("spine item has an invalid href")
	}
	raw, err := a.read(docPath)
	if err != nil {
		return ch, err
	}
	if !isMarkup(mediaType) {
		return ch, nil
	}
	doc, err := toUTF8(raw)
	if err != nil {
		return ch, fmt.Errorf("%s: %w", docPath, err)
	}
	doc = expandRawText(doc)
	if ch.Text, err = extractText(doc); err != nil {
		return ch, fmt.Errorf("%s: %w", docPath, err)
	}
	for _, p := range imageRefs(docPath, doc) {
		mt, ok := imageMediaType(byPath[p].MediaType, p)
		if !ok {
			continue
		}
		data, err := a.read(p)
		if err != nil {
			// A dangling image reference is not worth failing the book.
			continue
		}
		ch.Images = append(ch.Images, book.ImageRef{Path: p, MediaType: mt, Data: data})
	}
	return ch, nil
}

func isMarkup(mediaType string) bool {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/xhtml+xml", "text/html", "application/x-dtbook+xml", "":
		return true
	}
	return false
}

// classify maps charset failures to ErrUnsupportedEncoding and everything
// else to the given kind.
func classify(path string, kind error, err error) error {
	if errors.Is(err, errEncoding) {
		return newError(ErrUnsupportedEncoding, path, err)
	}
	return newError(kind, path, err)
}

func languageTag(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if strings.HasPrefix(lang, "pt") {
		return book.LangPtBR
	}
	return book.LangEnglish
}
