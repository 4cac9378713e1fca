package ai

import (
	"context"
	"errors"
	"net/http"
)

const (
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1/chat/completions"
	DefaultOpenRouterModel = "openai/gpt-4o-mini"
)

// OpenRouter talks to the OpenRouter chat completions API.
type OpenRouter struct {
	client *http.Client
	url    string
	apiKey string
	model  string
}

func NewOpenRouter(client *http.Client, url, apiKey, model string) *OpenRouter {
	if url == "" {
		url = DefaultOpenRouterURL
	}
	if model == "" {
		model = DefaultOpenRouterModel
	}
	return &OpenRouter{client: client, url: url, apiKey: apiKey, model: model}
}

func (o *OpenRouter) Name() string { return "openrouter" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenRouter) Summarize(ctx context.Context, req Request) (Response, error) {
	in := chatRequest{Model: o.model, Temperature: 0.7}
	if req.System != "" {
		in.Messages = append(in.Messages, chatMessage{Role: "system", Content: req.System})
	}
	in.Messages = append(in.Messages, chatMessage{Role: "user", Content: req.User})

	header := http.Header{}
	header.Set("Authorization", "Bearer "+o.apiKey)
	header.Set("X-Title", "AIBook Summarizer")
	header.Set("HTTP-Referer", "https://github.com/felipepimentel/aibook")

	var out chatResponse
	if err := postJSON(ctx, o.client, o.Name(), o.url, header, in, &out); err != nil {
		return Response{}, err
	}
	if len(out.Choices) == 0 {
		return Response{}, &Error{Provider: o.Name(), Kind: Transport, Err: errors.New("no choices in response")}
	}
	return Response{Text: out.Choices[0].Message.Content}, nil
}
