package ai

import (
	"context"
	"net/http"
)

const DefaultStackSpotURL = "https://ai.stackspot.com/api/summarize"

// StackSpot calls the StackSpot summarize endpoint. The endpoint takes the
// chapter text and language; the system prompt travels as instructions.
type StackSpot struct {
	client *http.Client
	url    string
	apiKey string
}

func NewStackSpot(client *http.Client, url, apiKey string) *StackSpot {
	if url == "" {
		url = DefaultStackSpotURL
	}
	return &StackSpot{client: client, url: url, apiKey: apiKey}
}

func (s *StackSpot) Name() string { return "stackspot" }

type stackSpotRequest struct {
	Chapter      string `json:"chapter"`
	Language     string `json:"language"`
	Instructions string `json:"instructions,omitempty"`
}

type stackSpotResponse struct {
	Summary string `json:"summary"`
}

// Summarize sends the user prompt as the chapter together with the target
// language.
func (s *StackSpot) Summarize(ctx context.Context, req Request) (Response, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.apiKey)

	var out stackSpotResponse
	in := stackSpotRequest{Chapter: req.User, Language: req.Language, Instructions: req.System}
	if err := postJSON(ctx, s.client, s.Name(), s.url, header, in, &out); err != nil {
		return Response{}, err
	}
	return Response{Text: out.Summary}, nil
}
