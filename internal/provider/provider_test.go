package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/relialab/evalpipe/internal/config"
	"github.com/relialab/evalpipe/internal/llm"
	"github.com/relialab/evalpipe/internal/testutil"
)

func TestForName(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{
			name:     "openai",
			provider: "openai",
			cfg:      Config{Model: "gpt-4o"},
			wantName: "openai",
		},
		{
			name:     "empty defaults to openai",
			provider: "",
			cfg:      Config{Model: "gpt-4o"},
			wantName: "openai",
		},
		{
			name:     "gateway",
			provider: "gateway",
			cfg:      Config{Gateway: appconfig.Gateway{URL: "https://gw.internal/run"}},
			wantName: "gateway",
		},
		{
			name:     "dataiku alias",
			provider: "dataiku",
			cfg:      Config{Gateway: appconfig.Gateway{URL: "https://gw.internal/run"}},
			wantName: "gateway",
		},
		{
			name:     "case insensitive",
			provider: "OpenAI",
			cfg:      Config{Model: "gpt-4o"},
			wantName: "openai",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ForName(tt.provider, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, r.Name())
		})
	}
}

func TestForNameUnknown(t *testing.T) {
	_, err := ForName("mystery", Config{})
	require.Error(t, err)

	var unsupported *UnsupportedProviderError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "mystery", unsupported.Name)
	assert.Contains(t, err.Error(), "unsupported answer provider")
}

func TestForNameGatewayRequiresURL(t *testing.T) {
	_, err := ForName("gateway", Config{})
	require.Error(t, err)

	var cfgErr *appconfig.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "GATEWAY_API_URL", cfgErr.Field)
}

func TestForNameGatewayRejectsUnknownAuthMode(t *testing.T) {
	cfg := Config{Gateway: appconfig.Gateway{URL: "https://gw.internal/run", AuthMode: "cookie"}}
	_, err := ForName("gateway", cfg)
	require.Error(t, err)

	var cfgErr *appconfig.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "GATEWAY_AUTH_MODE", cfgErr.Field)
	assert.Contains(t, err.Error(), "cookie")
}

func TestForNameKServeRequiresModelURI(t *testing.T) {
	_, err := ForName("kserve", Config{Model: "mistral-7b"})
	require.Error(t, err)

	var cfgErr *appconfig.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "model-uri", cfgErr.Field)
}

func TestOpenAIResponderInvoke(t *testing.T) {
	mock := &testutil.MockLLMClient{DefaultResponse: "the answer"}
	r := &OpenAIResponder{client: mock, model: "gpt-4o", temperature: llm.Float64Ptr(0.3)}

	answer, err := r.Invoke(context.Background(), "the question", nil)
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	assert.Equal(t, "gpt-4o", mock.LastRequest.Model)
	require.NotNil(t, mock.LastRequest.Temperature)
	assert.Equal(t, 0.3, *mock.LastRequest.Temperature)
	assert.Equal(t, "the question", mock.LastRequest.UserMessage)
}

func TestOpenAIResponderInvokeError(t *testing.T) {
	mock := &testutil.MockLLMClient{Err: errors.New("upstream unavailable")}
	r := &OpenAIResponder{client: mock, model: "gpt-4o"}

	_, err := r.Invoke(context.Background(), "the question", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")
}
