package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/relialab/evalpipe/internal/config"
)

type capturedRequest struct {
	headers http.Header
	body    map[string]any
}

func gatewayServer(t *testing.T, status int, respBody string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.headers = r.Header.Clone()
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &captured.body))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
}

func newTestGateway(t *testing.T, gw appconfig.Gateway) *GatewayResponder {
	t.Helper()
	r, err := newGatewayResponder(Config{Gateway: gw, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return r
}

func TestGatewayAuthModes(t *testing.T) {
	tests := []struct {
		mode       string
		header     string
		wantValue  string
	}{
		{"bearer", "Authorization", "Bearer secret-key"},
		{"authorization", "Authorization", "secret-key"},
		{"x-api-key", "X-Api-Key", "secret-key"},
		{"", "Authorization", "Bearer secret-key"},
	}

	for _, tt := range tests {
		t.Run("mode "+tt.mode, func(t *testing.T) {
			var captured capturedRequest
			srv := gatewayServer(t, http.StatusOK, `{"output":"ok"}`, &captured)
			defer srv.Close()

			r := newTestGateway(t, appconfig.Gateway{
				URL: srv.URL, APIKey: "secret-key", AuthMode: tt.mode,
			})
			answer, err := r.Invoke(context.Background(), "hello", nil)
			require.NoError(t, err)
			assert.Equal(t, "ok", answer)
			assert.Equal(t, tt.wantValue, captured.headers.Get(tt.header))
		})
	}
}

func TestGatewayRequestBody(t *testing.T) {
	var captured capturedRequest
	srv := gatewayServer(t, http.StatusOK, `{"answer":"fine"}`, &captured)
	defer srv.Close()

	r := newTestGateway(t, appconfig.Gateway{
		URL:            srv.URL,
		PromptParam:    "query",
		ThresholdParam: "cutoff",
		ThresholdValue: "0.75",
	})

	metadata := map[string]any{
		"gateway_params": map[string]any{"dataset": "mini", "top_k": 3.0},
	}
	_, err := r.Invoke(context.Background(), "the prompt", metadata)
	require.NoError(t, err)

	assert.Equal(t, "the prompt", captured.body["query"])
	assert.Equal(t, 0.75, captured.body["cutoff"])
	assert.Equal(t, "mini", captured.body["dataset"])
	assert.Equal(t, 3.0, captured.body["top_k"])
}

func TestGatewayThresholdKeepsRawString(t *testing.T) {
	var captured capturedRequest
	srv := gatewayServer(t, http.StatusOK, `{"answer":"fine"}`, &captured)
	defer srv.Close()

	r := newTestGateway(t, appconfig.Gateway{
		URL:            srv.URL,
		ThresholdParam: "mode",
		ThresholdValue: "strict",
	})
	_, err := r.Invoke(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "strict", captured.body["mode"])
	assert.Equal(t, "p", captured.body["input"])
}

func TestGatewayForbiddenDiagnostic(t *testing.T) {
	var captured capturedRequest
	srv := gatewayServer(t, http.StatusForbidden, `{"detail":"denied"}`, &captured)
	defer srv.Close()

	r := newTestGateway(t, appconfig.Gateway{URL: srv.URL, APIKey: "k", AuthMode: "x-api-key"})
	_, err := r.Invoke(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403 Forbidden")
	assert.Contains(t, err.Error(), `"x-api-key"`)
	assert.Contains(t, err.Error(), srv.URL)
	assert.Contains(t, err.Error(), "denied")
}

func TestGatewayOtherHTTPError(t *testing.T) {
	var captured capturedRequest
	srv := gatewayServer(t, http.StatusBadGateway, "upstream exploded", &captured)
	defer srv.Close()

	r := newTestGateway(t, appconfig.Gateway{URL: srv.URL})
	_, err := r.Invoke(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestGatewayResponseKeyFallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"output", `{"output":"from output"}`, "from output"},
		{"answer", `{"answer":"from answer"}`, "from answer"},
		{"response", `{"response":"from response"}`, "from response"},
		{"result", `{"result":"from result"}`, "from result"},
		{"output wins over answer", `{"answer":"second","output":"first"}`, "first"},
		{"non-json body", `plain text answer`, "plain text answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured capturedRequest
			srv := gatewayServer(t, http.StatusOK, tt.body, &captured)
			defer srv.Close()

			r := newTestGateway(t, appconfig.Gateway{URL: srv.URL})
			answer, err := r.Invoke(context.Background(), "p", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, answer)
		})
	}
}

func TestGatewayUnrecognizedJSONIsPrettyPrinted(t *testing.T) {
	var captured capturedRequest
	srv := gatewayServer(t, http.StatusOK, `{"status":"done","items":[1,2]}`, &captured)
	defer srv.Close()

	r := newTestGateway(t, appconfig.Gateway{URL: srv.URL})
	answer, err := r.Invoke(context.Background(), "p", nil)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(answer), &decoded))
	assert.Equal(t, "done", decoded["status"])
	assert.Contains(t, answer, "\n") // indented, not compact
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 300))
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	got := truncate(string(long), 300)
	assert.Len(t, got, 303)
	assert.Equal(t, "...", got[300:])
}
