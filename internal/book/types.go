// Package book holds the data model shared by every stage of the pocket-book
// pipeline: the extracted book, the summary plan and the per-chapter results.
package book

import (
	"fmt"
	"strings"
)

// Languages accepted as a book or target language.
const (
	LangEnglish = "en"
	LangPtBR    = "ptbr"
)

type Book struct {
	Title    string    `json:"title"`
	Author   string    `json:"author,omitempty"`
	Language string    `json:"language"`
	Source   string    `json:"source"`
	Chapters []Chapter `json:"chapters"`
}

type Chapter struct {
	Index  int        `json:"index"`
	Title  string     `json:"title"`
	Text   string     `json:"-"`
	Images []ImageRef `json:"images,omitempty"`
}

// ImageRef is an image resource referenced by a chapter. Data is the exact
// archive content and is never re-encoded.
type ImageRef struct {
	Path      string `json:"path"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
}

// TOC renders the table of contents sent to the plan prompt: one numbered
// chapter title per line, in book order.
func (b *Book) TOC() string {
	var sb strings.Builder
	for _, ch := range b.Chapters {
		fmt.Fprintf(&sb, "%d. %s\n", ch.Index+1, ch.Title)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Images returns every image of the book once, ordered by chapter index and
// then by first appearance inside the chapter.
func (b *Book) Images() []ImageRef {
	seen := make(map[string]bool)
	var out []ImageRef
	for _, ch := range b.Chapters {
		for _, img := range ch.Images {
			if seen[img.Path] {
				continue
			}
			seen[img.Path] = true
			out = append(out, img)
		}
	}
	return out
}

// Summary is the five-field structure both the plan and each chapter summary
// are returned in.
type Summary struct {
	Summary             string   `json:"summary"`
	Keywords            []string `json:"keywords"`
	Glossary            []string `json:"glossary"`
	References          []string `json:"references"`
	AdditionalResources []string `json:"additional_resources"`
}

// SummaryPlan is the book-level summary built from the table of contents.
type SummaryPlan = Summary

// Normalize trims every field, drops blank entries and deduplicates keywords
// case-insensitively, keeping the first spelling.
func (s Summary) Normalize() Summary {
	out := Summary{
		Summary:             strings.TrimSpace(s.Summary),
		Glossary:            compact(s.Glossary),
		References:          compact(s.References),
		AdditionalResources: compact(s.AdditionalResources),
	}
	seen := make(map[string]bool)
	for _, kw := range compact(s.Keywords) {
		key := strings.ToLower(kw)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Keywords = append(out.Keywords, kw)
	}
	return out
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type ChapterSummary struct {
	Index int `json:"index"`
	Summary
}

// FailureKind classifies why a chapter has no summary.
type FailureKind string

const (
	FailureProvider  FailureKind = "provider"
	FailureMalformed FailureKind = "malformed_response"
	FailureEmpty     FailureKind = "empty_chapter"
	FailureCanceled  FailureKind = "canceled"
)

type Failure struct {
	Index  int         `json:"index"`
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// Outcome is the result slot of one chapter. Exactly one field is set.
type Outcome struct {
	Summary *ChapterSummary `json:"summary,omitempty"`
	Failure *Failure        `json:"failure,omitempty"`
}

func (o Outcome) OK() bool { return o.Summary != nil }
