package summarize

import (
	"strings"

	"github.com/felipepimentel/aibook/internal/book"
)

// Detail levels accepted for chapter summaries.
const (
	DetailShort  = "short"
	DetailMedium = "medium"
	DetailLong   = "long"
)

const systemPrompt = `You are an assistant that condenses books into pocket editions. ` +
	`Reply with a single JSON object and nothing else: no prose, no code fences.`

const jsonShape = `Reply with a JSON object with exactly these fields:
{"summary": string, "keywords": [string], "glossary": [string], "references": [string], "additional_resources": [string]}
Glossary entries are "term: definition" strings.`

const planTemplate = `You are an expert at creating detailed and content-rich summary plans for e-books. ` +
	`Based on the following table of contents, create a comprehensive summary plan that focuses on the main content ` +
	`and key learnings of each chapter. Exclude any sections like dedications, forewords, author biographies, ` +
	`or any meta-information. Include citations and references, additional resources and any other content ` +
	`that would enrich the summary. Use a direct, note-taking style in {{language}}.

` + jsonShape + `

Table of Contents:
{{toc}}`

const chapterTemplate = `Using the following summary plan, summarize the text below. Focus on key points, important insights, ` +
	`technical terms and main learnings. Include citations and references and additional resources when the text ` +
	`supports them. Use a direct, note-taking style, and avoid phrases like 'the text discusses' or 'this chapter explains'. ` +
	`Do not include sections such as dedications, forewords, or author biographies. ` +
	`The summary should be in {{language}}, and the level of detail should be {{detail_level}}.

` + jsonShape + `

Summary Plan:
{{plan}}

Text:
{{text}}`

const correction = `

Your previous reply could not be parsed. Reply again with only the JSON object described above.`

func fill(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// LanguageName is the language as written into prompts.
func LanguageName(lang string) string {
	if lang == book.LangPtBR {
		return "Brazilian Portuguese"
	}
	return "English"
}

func detailDescription(level string) string {
	switch level {
	case DetailShort:
		return "short (a single concise paragraph)"
	case DetailLong:
		return "long (several paragraphs covering every important point)"
	}
	return "medium (two or three paragraphs)"
}

func planPrompt(toc, lang string) string {
	return fill(planTemplate, map[string]string{"toc": toc, "language": LanguageName(lang)})
}

func chapterPrompt(plan book.SummaryPlan, text, lang, detail string) string {
	return fill(chapterTemplate, map[string]string{
		"plan":         planText(plan),
		"text":         text,
		"language":     LanguageName(lang),
		"detail_level": detailDescription(detail),
	})
}

// planText renders the plan the way it is fed back into chapter prompts.
func planText(p book.SummaryPlan) string {
	var b strings.Builder
	b.WriteString(p.Summary)
	section := func(name string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n\n" + name + ":\n- ")
		b.WriteString(strings.Join(items, "\n- "))
	}
	section("Keywords", p.Keywords)
	section("Glossary", p.Glossary)
	section("References", p.References)
	section("Additional Resources", p.AdditionalResources)
	return b.String()
}
