package output

import (
	"bytes"
	"html/template"
	"strings"
)

var pageTemplate = template.Must(template.New("summary").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, serif; max-width: 46em; margin: 2em auto; padding: 0 1em; line-height: 1.55; }
img { max-width: 100%; }
.failed { font-style: italic; color: #8a1c1c; border-left: 3px solid #8a1c1c; padding-left: 0.8em; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{with .Author}}<p><em>{{.}}</em></p>
{{end}}{{with .Overview}}<h2>Overview</h2>
{{range .}}<p>{{.}}</p>
{{end}}{{end}}{{with .Keywords}}<p><strong>Keywords:</strong> {{.}}</p>
{{end}}{{template "lists" .Lists}}{{range .Chapters}}<section id="chapter-{{.Number}}">
<h2>{{.Number}}. {{.Title}}</h2>
{{range .Images}}<p><img src="{{.Src}}" alt="{{.Alt}}"></p>
{{end}}{{if .Failure}}<p class="failed">{{.Failure}}</p>
{{else}}{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{with .Keywords}}<p><strong>Keywords:</strong> {{.}}</p>
{{end}}{{template "lists" .Lists}}{{end}}</section>
{{end}}</body>
</html>
{{define "lists"}}{{range .}}{{if .Items}}<h3>{{.Heading}}</h3>
<ul>
{{range .Items}}<li>{{.}}</li>
{{end}}</ul>
{{end}}{{end}}{{end}}`))

type htmlList struct {
	Heading string
	Items   []string
}

type htmlImage struct {
	Src string
	Alt string
}

type htmlChapter struct {
	Number     int
	Title      string
	Images     []htmlImage
	Failure    string
	Paragraphs []template.HTML
	Keywords   string
	Lists      []htmlList
}

type htmlPage struct {
	Lang     string
	Title    string
	Author   string
	Overview []string
	Keywords string
	Lists    []htmlList
	Chapters []htmlChapter
}

func (r *renderer) html() ([]byte, error) {
	b := r.doc.Book
	plan := r.doc.Plan
	page := htmlPage{
		Lang:     epubLanguage(b.Language),
		Title:    b.Title,
		Author:   b.Author,
		Overview: paragraphs(stripMarkdownCodeFences(plan.Summary)),
		Keywords: strings.Join(plan.Keywords, ", "),
		Lists:    lists(plan.Glossary, plan.References, plan.AdditionalResources),
	}
	for i, ch := range b.Chapters {
		hc := htmlChapter{Number: i + 1, Title: ch.Title}
		for _, img := range ch.Images {
			hc.Images = append(hc.Images, htmlImage{Src: ImagesDir + "/" + r.images[img.Path], Alt: imageAlt(ch.Title)})
		}
		o := r.doc.Outcomes[i]
		if o.Failure != nil {
			hc.Failure = failureText(o.Failure)
		} else {
			s := o.Summary
			hl := newHighlighter(s.Keywords)
			for _, p := range paragraphs(stripMarkdownCodeFences(s.Summary.Summary)) {
				// Segments are escaped by the highlighter before marking.
				hc.Paragraphs = append(hc.Paragraphs, template.HTML(hl.apply(p, template.HTMLEscapeString, func(k string) string {
					return "<strong>" + template.HTMLEscapeString(k) + "</strong>"
				})))
			}
			hc.Keywords = strings.Join(s.Keywords, ", ")
			hc.Lists = lists(s.Glossary, s.References, s.AdditionalResources)
		}
		page.Chapters = append(page.Chapters, hc)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lists(glossary, references, resources []string) []htmlList {
	return []htmlList{
		{Heading: "Glossary", Items: glossary},
		{Heading: "References", Items: references},
		{Heading: "Additional Resources", Items: resources},
	}
}
