package provider

import (
	"context"
	"net/http"

	"github.com/relialab/evalpipe/internal/llm"
)

// OpenAIResponder answers prompts through an OpenAI-compatible chat API.
type OpenAIResponder struct {
	client      llm.Client
	model       string
	temperature *float64
}

func newOpenAIResponder(cfg Config) *OpenAIResponder {
	opts := []llm.Option{
		llm.WithModel(cfg.Model),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, llm.WithBaseURL(cfg.Endpoint))
	}
	if cfg.APIKey != "" {
		opts = append(opts, llm.WithAPIKey(cfg.APIKey))
	}
	return &OpenAIResponder{
		client:      llm.NewOpenAIClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

func (r *OpenAIResponder) Name() string { return "openai" }

func (r *OpenAIResponder) Invoke(ctx context.Context, prompt string, _ map[string]any) (string, error) {
	resp, err := r.client.ChatCompletion(ctx, llm.ChatRequest{
		Model:       r.model,
		UserMessage: prompt,
		Temperature: r.temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
