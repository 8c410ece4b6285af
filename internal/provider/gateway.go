package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/relialab/evalpipe/internal/config"
)

// responseKeys are tried in order against a JSON gateway response to find
// the answer text.
var responseKeys = []string{"output", "answer", "response", "result"}

// GatewayResponder answers prompts through a plain HTTP JSON endpoint, such
// as a Dataiku agent deployment. The prompt is posted under a configurable
// body key and the answer is dug out of whichever response key holds it.
type GatewayResponder struct {
	url            string
	apiKey         string
	authMode       string
	promptParam    string
	thresholdParam string
	thresholdValue any
	client         *http.Client
}

func newGatewayResponder(cfg Config) (*GatewayResponder, error) {
	gw := cfg.Gateway
	if gw.URL == "" {
		return nil, &config.ConfigurationError{Field: "GATEWAY_API_URL", Reason: "not set"}
	}

	mode := strings.ToLower(strings.TrimSpace(gw.AuthMode))
	if mode == "" {
		mode = "bearer"
	}
	switch mode {
	case "bearer", "authorization", "x-api-key":
	default:
		return nil, &config.ConfigurationError{
			Field:  "GATEWAY_AUTH_MODE",
			Reason: fmt.Sprintf("unknown mode %q (want bearer, authorization or x-api-key)", gw.AuthMode),
		}
	}

	r := &GatewayResponder{
		url:         gw.URL,
		apiKey:      gw.APIKey,
		authMode:    mode,
		promptParam: gw.PromptParam,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
	if r.promptParam == "" {
		r.promptParam = "input"
	}
	if gw.ThresholdParam != "" && gw.ThresholdValue != "" {
		r.thresholdParam = gw.ThresholdParam
		if f, err := strconv.ParseFloat(gw.ThresholdValue, 64); err == nil {
			r.thresholdValue = f
		} else {
			r.thresholdValue = gw.ThresholdValue
		}
	}
	return r, nil
}

func (r *GatewayResponder) Name() string { return "gateway" }

func (r *GatewayResponder) Invoke(ctx context.Context, prompt string, metadata map[string]any) (string, error) {
	body := map[string]any{r.promptParam: prompt}
	if r.thresholdParam != "" {
		body[r.thresholdParam] = r.thresholdValue
	}
	// Per-scenario extras ride along in the scenario metadata.
	if extras, ok := metadata["gateway_params"].(map[string]any); ok {
		for k, v := range extras {
			body[k] = v
		}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("building gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch r.authMode {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	case "authorization":
		req.Header.Set("Authorization", r.apiKey)
	case "x-api-key":
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading gateway response: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf(
			"gateway returned 403 Forbidden: check the auth mode (using %q), the API key, and the endpoint URL %s; request body keys %v; response: %s",
			r.authMode, r.url, bodyKeys(body), truncate(string(data), 300))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, truncate(string(data), 300))
	}

	return decodeGatewayAnswer(data), nil
}

// decodeGatewayAnswer digs the answer text out of a gateway response body.
// Non-JSON bodies are returned as-is; JSON objects are searched for the
// well-known answer keys; anything else is pretty-printed. This never fails:
// a response we cannot interpret becomes the answer text verbatim.
func decodeGatewayAnswer(data []byte) string {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}

	if obj, ok := payload.(map[string]any); ok {
		for _, key := range responseKeys {
			if text, ok := obj[key].(string); ok {
				return ExtractEnvelope(text)
			}
		}
	}

	pretty, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return strings.TrimSpace(string(data))
	}
	return string(pretty)
}

func bodyKeys(body map[string]any) []string {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
