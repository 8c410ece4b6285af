// Package provider implements the answer generators the pipeline can run
// scenarios against. A Responder turns one prompt into one answer; the
// registry maps provider names to constructors.
package provider

import (
	"context"
	"strings"
	"time"

	"github.com/relialab/evalpipe/internal/config"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 120 * time.Second

// Responder generates an answer for a single prompt. Metadata is the
// scenario's metadata block; providers may read per-scenario settings from
// it.
type Responder interface {
	// Name returns the provider identifier (e.g. "openai").
	Name() string

	// Invoke sends one prompt and returns the answer text.
	Invoke(ctx context.Context, prompt string, metadata map[string]any) (string, error)
}

// Lifecycle is implemented by responders that need setup before the first
// prompt and teardown after the last, such as the KServe provider deploying
// the candidate model.
type Lifecycle interface {
	Setup(ctx context.Context) error
	Teardown(ctx context.Context) error
}

// KServeSettings configures the kserve provider.
type KServeSettings struct {
	Namespace    string
	Kubeconfig   string
	InCluster    bool
	ModelURI     string
	Runtime      string
	GPUCount     int
	ReadyTimeout time.Duration
}

// Config carries everything a responder constructor may need. Providers read
// only their own fields.
type Config struct {
	Model       string
	Endpoint    string
	APIKey      string
	Temperature *float64
	Timeout     time.Duration

	Gateway config.Gateway
	KServe  KServeSettings
}

// ForName returns the Responder for a provider name. Unknown names fail with
// UnsupportedProviderError before any scenario is processed.
func ForName(name string, cfg Config) (Responder, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch strings.ToLower(name) {
	case "openai", "":
		return newOpenAIResponder(cfg), nil
	case "gateway", "dataiku":
		return newGatewayResponder(cfg)
	case "kserve":
		return newKServeResponder(cfg)
	default:
		return nil, &UnsupportedProviderError{Name: name}
	}
}

// UnsupportedProviderError is returned when an unknown provider is requested.
type UnsupportedProviderError struct {
	Name string
}

func (e *UnsupportedProviderError) Error() string {
	return "unsupported answer provider: " + e.Name
}
