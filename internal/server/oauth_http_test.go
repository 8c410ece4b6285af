package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHTTPSRequirement(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr string
	}{
		{name: "https", baseURL: "https://evalpipe.example.com"},
		{name: "http localhost", baseURL: "http://localhost:8080"},
		{name: "http loopback v4", baseURL: "http://127.0.0.1:8080"},
		{name: "http loopback v6", baseURL: "http://[::1]:8080"},
		{name: "http public host", baseURL: "http://evalpipe.example.com", wantErr: "loopback"},
		{name: "empty", baseURL: "", wantErr: "cannot be empty"},
		{name: "other scheme", baseURL: "ftp://example.com", wantErr: "invalid URL scheme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTTPSRequirement(tt.baseURL)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewOAuthHTTPServerRejectsUnknownProvider(t *testing.T) {
	_, err := NewOAuthHTTPServer(nil, "/mcp", OAuthConfig{
		BaseURL:  "https://evalpipe.example.com",
		Provider: "github",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported OAuth provider")
}

func TestNewOAuthHTTPServerRejectsPlainHTTP(t *testing.T) {
	_, err := NewOAuthHTTPServer(nil, "/mcp", OAuthConfig{
		BaseURL:  "http://evalpipe.example.com",
		Provider: OAuthProviderDex,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OAuth base URL")
}
