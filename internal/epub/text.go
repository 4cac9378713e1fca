package epub

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockTags end a paragraph when opened or closed.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Pre:        true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Hr:         true,
	atom.Figcaption: true,
	atom.Dd:         true,
	atom.Dt:         true,
}

var skipTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
	atom.Head:   true,
}

// selfClosingRawText matches XML self-closing forms of the elements the
// HTML tokenizer reads as raw text up to their end tag.
var selfClosingRawText = regexp.MustCompile(`(?is)<(script|style|title|textarea|iframe|noscript|noembed|noframes|xmp)\b([^>]*?)\s*/>`)

// expandRawText rewrites <title/> and friends into explicit open and close
// tags. Without it the tokenizer swallows the rest of the document.
func expandRawText(doc []byte) []byte {
	return selfClosingRawText.ReplaceAll(doc, []byte(`<$1$2></$1>`))
}

// extractText converts an XHTML document to plain text. Block elements become
// paragraphs separated by one blank line and <br> becomes a line break.
func extractText(doc []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(doc))

	var (
		paras []string
		cur   strings.Builder
		skip  int
	)
	flush := func() {
		if p := strings.TrimSpace(cur.String()); p != "" {
			paras = append(paras, p)
		}
		cur.Reset()
	}
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			flush()
			return strings.Join(paras, "\n\n"), nil
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skipTags[a] {
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 {
				continue
			}
			switch {
			case a == atom.Br:
				trimLineEnd(&cur)
				cur.WriteByte('\n')
			case blockTags[a]:
				flush()
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			writeCollapsed(&cur, string(z.Text()))
		}
	}
}

// writeCollapsed appends s with whitespace runs folded to one space.
func writeCollapsed(b *strings.Builder, s string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s != "" && b.Len() > 0 && !endsWithSpace(b) {
			b.WriteByte(' ')
		}
		return
	}
	if isSpace(s[0]) && b.Len() > 0 && !endsWithSpace(b) {
		b.WriteByte(' ')
	}
	b.WriteString(strings.Join(fields, " "))
	if isSpace(s[len(s)-1]) {
		b.WriteByte(' ')
	}
}

func trimLineEnd(b *strings.Builder) {
	s := strings.TrimRight(b.String(), " ")
	b.Reset()
	b.WriteString(s)
}

func endsWithSpace(b *strings.Builder) bool {
	s := b.String()
	return s[len(s)-1] == ' ' || s[len(s)-1] == '\n'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
