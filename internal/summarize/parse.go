package summarize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/felipepimentel/aibook/internal/ai"
	"github.com/felipepimentel/aibook/internal/book"
)

var errMalformed = errors.New("malformed response")

// stringList accepts a JSON array of strings, a single string or null.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = stringList{s}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

type summaryWire struct {
	Summary             *string    `json:"summary"`
	Keywords            stringList `json:"keywords"`
	Glossary            stringList `json:"glossary"`
	References          stringList `json:"references"`
	AdditionalResources stringList `json:"additional_resources"`
}

// parseSummary decodes a model reply into the five-field shape. A reply
// without a JSON object, or without a non-empty summary, is malformed.
func parseSummary(text string) (book.Summary, error) {
	raw := ai.ExtractJSON(text)
	if raw == "" {
		return book.Summary{}, fmt.Errorf("%w: no JSON object in reply", errMalformed)
	}
	var w summaryWire
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return book.Summary{}, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if w.Summary == nil || strings.TrimSpace(*w.Summary) == "" {
		return book.Summary{}, fmt.Errorf("%w: missing summary", errMalformed)
	}
	s := book.Summary{
		Summary:             *w.Summary,
		Keywords:            splitKeywords(w.Keywords),
		Glossary:            w.Glossary,
		References:          w.References,
		AdditionalResources: w.AdditionalResources,
	}
	return s.Normalize(), nil
}

// splitKeywords also accepts a single comma-separated string.
func splitKeywords(in []string) []string {
	if len(in) != 1 || !strings.Contains(in[0], ",") {
		return in
	}
	return strings.Split(in[0], ",")
}
