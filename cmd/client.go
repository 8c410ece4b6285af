package cmd

import (
	"os"

	"github.com/relialab/evalpipe/internal/llm"
)

// newLLMClientFromFlags creates an OpenAI-compatible client from common CLI
// flags. It checks the endpoint and apiKey flags, falling back to the
// OPENAI_API_KEY environment variable when no explicit key is provided.
// The returned client serves as both chat client and embedder.
func newLLMClientFromFlags(endpoint, apiKey, embeddingModel string) *llm.OpenAIClient {
	var opts []llm.Option
	if endpoint != "" {
		opts = append(opts, llm.WithBaseURL(endpoint))
	}
	if apiKey != "" {
		opts = append(opts, llm.WithAPIKey(apiKey))
	} else if envKey := os.Getenv("OPENAI_API_KEY"); envKey != "" {
		opts = append(opts, llm.WithAPIKey(envKey))
	}
	if embeddingModel != "" {
		opts = append(opts, llm.WithEmbeddingModel(embeddingModel))
	}
	return llm.NewOpenAIClient(opts...)
}
