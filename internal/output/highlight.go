package output

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// highlighter marks whole-word keyword occurrences. Longer keywords win over
// keywords they contain.
type highlighter struct {
	re *regexp.Regexp
}

func newHighlighter(keywords []string) *highlighter {
	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return &highlighter{}
	}
	slices.SortStableFunc(kws, func(a, b string) int { return len(b) - len(a) })
	quoted := make([]string, len(kws))
	for i, k := range kws {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return &highlighter{re: regexp.MustCompile(strings.Join(quoted, "|"))}
}

// apply copies text through esc and passes each keyword occurrence through
// mark instead.
func (h *highlighter) apply(text string, esc, mark func(string) string) string {
	if h.re == nil {
		return esc(text)
	}
	var b strings.Builder
	last := 0
	for _, loc := range h.re.FindAllStringIndex(text, -1) {
		if !wordBoundary(text, loc[0], loc[1]) {
			continue
		}
		b.WriteString(esc(text[last:loc[0]]))
		b.WriteString(mark(text[loc[0]:loc[1]]))
		last = loc[1]
	}
	b.WriteString(esc(text[last:]))
	return b.String()
}

func wordBoundary(s string, start, end int) bool {
	if r, _ := utf8.DecodeLastRuneInString(s[:start]); start > 0 && isWord(r) {
		return false
	}
	if r, _ := utf8.DecodeRuneInString(s[end:]); end < len(s) && isWord(r) {
		return false
	}
	return true
}

func isWord(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' }

func identity(s string) string { return s }
