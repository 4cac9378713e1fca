package output

import (
	"fmt"
	"strings"

	"github.com/felipepimentel/aibook/internal/book"
)

type renderer struct {
	doc    Document
	images map[string]string // archive path -> file name
}

// Placeholder is the visible notice rendered in place of a chapter summary
// that could not be produced.
const Placeholder = "Summary unavailable"

func failureText(f *book.Failure) string {
	var why string
	switch f.Kind {
	case book.FailureEmpty:
		why = "the chapter has no text"
	case book.FailureMalformed:
		why = "the AI response could not be parsed"
	case book.FailureCanceled:
		why = "the run was canceled"
	default:
		why = "the AI provider returned an error"
	}
	return fmt.Sprintf("%s: chapter %d could not be summarized because %s.", Placeholder, f.Index+1, why)
}

func (r *renderer) markdown() []byte {
	b := r.doc.Book
	var sb strings.Builder
	fmt.Fprintf(&sb, "---\ntitle: \"%s\"\n", escapeQuotes(b.Title))
	if b.Author != "" {
		fmt.Fprintf(&sb, "author: \"%s\"\n", escapeQuotes(b.Author))
	}
	fmt.Fprintf(&sb, "language: %s\n---\n\n", b.Language)
	fmt.Fprintf(&sb, "# %s\n\n", b.Title)

	plan := r.doc.Plan
	if s := stripMarkdownCodeFences(plan.Summary); s != "" {
		sb.WriteString("## Overview\n\n" + s + "\n\n")
	}
	if len(plan.Keywords) > 0 {
		sb.WriteString("## Keywords\n\n" + strings.Join(plan.Keywords, ", ") + "\n\n")
	}
	writeList(&sb, "## Glossary", plan.Glossary)
	writeList(&sb, "## References", plan.References)
	writeList(&sb, "## Additional Resources", plan.AdditionalResources)

	for i, ch := range b.Chapters {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, ch.Title)
		for _, img := range ch.Images {
			fmt.Fprintf(&sb, "![%s](./%s/%s)\n\n", escapeAlt(imageAlt(ch.Title)), ImagesDir, r.images[img.Path])
		}
		o := r.doc.Outcomes[i]
		if o.Failure != nil {
			sb.WriteString("> **" + failureText(o.Failure) + "**\n\n")
			continue
		}
		s := o.Summary
		hl := newHighlighter(s.Keywords)
		text := hl.apply(stripMarkdownCodeFences(s.Summary.Summary), identity, func(k string) string { return "**" + k + "**" })
		sb.WriteString(text + "\n\n")
		if len(s.Keywords) > 0 {
			sb.WriteString("**Keywords:** " + strings.Join(s.Keywords, ", ") + "\n\n")
		}
		writeList(&sb, "### Glossary", s.Glossary)
		writeList(&sb, "### References", s.References)
		writeList(&sb, "### Additional Resources", s.AdditionalResources)
	}
	return []byte(strings.TrimRight(sb.String(), "\n") + "\n")
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + "\n\n")
	for _, it := range items {
		sb.WriteString("- " + it + "\n")
	}
	sb.WriteString("\n")
}

func imageAlt(chapterTitle string) string { return "Image from " + chapterTitle }

func escapeQuotes(s string) string { return strings.ReplaceAll(s, "\"", "\\\"") }

var altEscaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`)

// escapeAlt escapes the characters that would end the alt text of an image
// link early.
func escapeAlt(s string) string { return altEscaper.Replace(s) }

// stripMarkdownCodeFences removes a fence wrapped around a whole reply.
func stripMarkdownCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
