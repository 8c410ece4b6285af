package llm

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOpenAIClientDefaults(t *testing.T) {
	client := NewOpenAIClient()
	assert.Empty(t, client.model)
	assert.Nil(t, client.temperature)
	assert.Equal(t, DefaultEmbeddingModel, client.embeddingModel)
}

func TestNewOpenAIClientWithModel(t *testing.T) {
	client := NewOpenAIClient(WithModel("gpt-4o"))
	assert.Equal(t, "gpt-4o", client.model)
}

func TestNewOpenAIClientWithTemperature(t *testing.T) {
	client := NewOpenAIClient(WithTemperature(0.7))
	assert.NotNil(t, client.temperature)
	assert.Equal(t, 0.7, *client.temperature)
}

func TestNewOpenAIClientWithAllOptions(t *testing.T) {
	client := NewOpenAIClient(
		WithBaseURL("https://api.example.com/v1"),
		WithAPIKey("sk-test"),
		WithModel("gpt-4o"),
		WithEmbeddingModel("text-embedding-3-large"),
		WithTemperature(0.5),
		WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	assert.Equal(t, "gpt-4o", client.model)
	assert.Equal(t, "text-embedding-3-large", client.embeddingModel)
	assert.NotNil(t, client.temperature)
	assert.Equal(t, 0.5, *client.temperature)
}

func TestWithEmbeddingModelIgnoresEmpty(t *testing.T) {
	client := NewOpenAIClient(WithEmbeddingModel(""))
	assert.Equal(t, DefaultEmbeddingModel, client.embeddingModel)
}

func TestApplyDefaultsUsesClientModel(t *testing.T) {
	client := NewOpenAIClient(WithModel("gpt-4o"))

	req := client.applyDefaults(ChatRequest{
		SystemMessage: "test",
		UserMessage:   "hello",
	})
	assert.Equal(t, "gpt-4o", req.Model)
}

func TestApplyDefaultsRequestModelTakesPrecedence(t *testing.T) {
	client := NewOpenAIClient(WithModel("gpt-4o"))

	req := client.applyDefaults(ChatRequest{
		Model:         "gpt-4o-mini",
		SystemMessage: "test",
		UserMessage:   "hello",
	})
	assert.Equal(t, "gpt-4o-mini", req.Model)
}

func TestApplyDefaultsUsesClientTemperature(t *testing.T) {
	client := NewOpenAIClient(WithTemperature(0.8))

	req := client.applyDefaults(ChatRequest{
		Model:       "test",
		UserMessage: "hello",
	})
	assert.NotNil(t, req.Temperature)
	assert.Equal(t, 0.8, *req.Temperature)
}

func TestApplyDefaultsRequestTemperatureTakesPrecedence(t *testing.T) {
	client := NewOpenAIClient(WithTemperature(0.8))

	req := client.applyDefaults(ChatRequest{
		Model:       "test",
		UserMessage: "hello",
		Temperature: Float64Ptr(0),
	})
	assert.NotNil(t, req.Temperature)
	assert.Zero(t, *req.Temperature)
}
