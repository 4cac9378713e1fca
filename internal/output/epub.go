package output

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"github.com/felipepimentel/aibook/internal/book"
	"github.com/felipepimentel/aibook/internal/epub"
)

const stylesheet = `body { font-family: serif; line-height: 1.5; margin: 0 5%; }
h1, h2, h3 { font-family: sans-serif; }
img { max-width: 100%; }
.failed { font-style: italic; color: #8a1c1c; border-left: 3px solid #8a1c1c; padding-left: 0.8em; }
.keywords { font-size: 0.9em; }
`

// identifier derives a stable urn:uuid from the rendered content.
func identifier(markdown []byte, imgs []Image) string {
	data := bytes.Clone(markdown)
	for _, img := range imgs {
		data = append(data, img.Name...)
		data = append(data, img.Data...)
	}
	return "urn:uuid:" + uuid.NewSHA1(uuid.NameSpaceURL, data).String()
}

func epubLanguage(lang string) string {
	if lang == book.LangPtBR {
		return "pt-BR"
	}
	return "en"
}

func chapterHref(i int) string { return fmt.Sprintf("chapter-%03d.xhtml", i+1) }

func (r *renderer) epub(id string) ([]byte, error) {
	b := r.doc.Book
	lang := epubLanguage(b.Language)
	pkg := &epub.Package{
		Identifier: id,
		Title:      b.Title,
		Author:     b.Author,
		Language:   lang,
		Nav:        epub.Resource{Href: "nav.xhtml", Title: b.Title, Data: r.navDocument(lang)},
	}
	for i, ch := range b.Chapters {
		pkg.Spine = append(pkg.Spine, epub.Resource{
			Href:  chapterHref(i),
			Title: ch.Title,
			Data:  r.chapterDocument(i, lang),
		})
	}
	pkg.Resources = append(pkg.Resources, epub.Resource{Href: "style.css", MediaType: "text/css", Data: []byte(stylesheet)})
	for _, ref := range b.Images() {
		name := r.images[ref.Path]
		pkg.Resources = append(pkg.Resources, epub.Resource{Href: ImagesDir + "/" + name, MediaType: ref.MediaType, Data: ref.Data})
	}

	var buf bytes.Buffer
	if err := epub.Write(&buf, pkg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func xhtmlHead(sb *strings.Builder, lang, title string) {
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<!DOCTYPE html>\n")
	fmt.Fprintf(sb, `<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" lang="%s" xml:lang="%s">`+"\n", lang, lang)
	fmt.Fprintf(sb, "<head>\n<meta charset=\"UTF-8\"/>\n<title>%s</title>\n<link rel=\"stylesheet\" type=\"text/css\" href=\"style.css\"/>\n</head>\n<body>\n", html.EscapeString(title))
}

// navDocument carries the plan overview next to the table of contents. It
// is not part of the spine.
func (r *renderer) navDocument(lang string) []byte {
	b := r.doc.Book
	plan := r.doc.Plan
	var sb strings.Builder
	xhtmlHead(&sb, lang, b.Title)
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(b.Title))
	if b.Author != "" {
		fmt.Fprintf(&sb, "<p><em>%s</em></p>\n", html.EscapeString(b.Author))
	}
	if s := stripMarkdownCodeFences(plan.Summary); s != "" {
		sb.WriteString("<section>\n<h2>Overview</h2>\n")
		writeParagraphs(&sb, s, newHighlighter(nil))
		sb.WriteString("</section>\n")
	}
	if len(plan.Keywords) > 0 {
		fmt.Fprintf(&sb, "<p class=\"keywords\"><strong>Keywords:</strong> %s</p>\n", html.EscapeString(strings.Join(plan.Keywords, ", ")))
	}
	writeXHTMLList(&sb, "h2", "Glossary", plan.Glossary)
	writeXHTMLList(&sb, "h2", "References", plan.References)
	writeXHTMLList(&sb, "h2", "Additional Resources", plan.AdditionalResources)

	sb.WriteString("<nav epub:type=\"toc\" id=\"toc\">\n<h2>Contents</h2>\n<ol>\n")
	for i, ch := range b.Chapters {
		fmt.Fprintf(&sb, "<li><a href=\"%s\">%s</a></li>\n", chapterHref(i), html.EscapeString(ch.Title))
	}
	sb.WriteString("</ol>\n</nav>\n</body>\n</html>\n")
	return []byte(sb.String())
}

func (r *renderer) chapterDocument(i int, lang string) []byte {
	ch := r.doc.Book.Chapters[i]
	var sb strings.Builder
	xhtmlHead(&sb, lang, ch.Title)
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(ch.Title))
	for _, img := range ch.Images {
		fmt.Fprintf(&sb, "<p><img src=\"%s/%s\" alt=\"%s\"/></p>\n", ImagesDir, html.EscapeString(r.images[img.Path]), html.EscapeString(imageAlt(ch.Title)))
	}
	o := r.doc.Outcomes[i]
	if o.Failure != nil {
		fmt.Fprintf(&sb, "<p class=\"failed\">%s</p>\n", html.EscapeString(failureText(o.Failure)))
	} else {
		s := o.Summary
		writeParagraphs(&sb, stripMarkdownCodeFences(s.Summary.Summary), newHighlighter(s.Keywords))
		if len(s.Keywords) > 0 {
			fmt.Fprintf(&sb, "<p class=\"keywords\"><strong>Keywords:</strong> %s</p>\n", html.EscapeString(strings.Join(s.Keywords, ", ")))
		}
		writeXHTMLList(&sb, "h2", "Glossary", s.Glossary)
		writeXHTMLList(&sb, "h2", "References", s.References)
		writeXHTMLList(&sb, "h2", "Additional Resources", s.AdditionalResources)
	}
	sb.WriteString("</body>\n</html>\n")
	return []byte(sb.String())
}

// writeParagraphs splits text on blank lines. Keywords become <strong>.
func writeParagraphs(sb *strings.Builder, text string, hl *highlighter) {
	for _, p := range paragraphs(text) {
		sb.WriteString("<p>")
		sb.WriteString(hl.apply(p, html.EscapeString, func(k string) string {
			return "<strong>" + html.EscapeString(k) + "</strong>"
		}))
		sb.WriteString("</p>\n")
	}
}

func writeXHTMLList(sb *strings.Builder, tag, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "<%s>%s</%s>\n<ul>\n", tag, heading, tag)
	for _, it := range items {
		fmt.Fprintf(sb, "<li>%s</li>\n", html.EscapeString(it))
	}
	sb.WriteString("</ul>\n")
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
