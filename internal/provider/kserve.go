package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/relialab/evalpipe/internal/config"
	"github.com/relialab/evalpipe/internal/kserve"
	"github.com/relialab/evalpipe/internal/llm"
)

// KServeResponder serves the candidate model itself: Setup deploys it as a
// KServe InferenceService (or reuses one that is already ready under the
// same name), Invoke answers through its OpenAI-compatible endpoint, and
// Teardown deletes the service after the run.
type KServeResponder struct {
	manager     *kserve.Manager
	modelCfg    kserve.ModelConfig
	temperature *float64
	timeout     time.Duration
	client      llm.Client
}

func newKServeResponder(cfg Config) (*KServeResponder, error) {
	if cfg.KServe.ModelURI == "" {
		return nil, &config.ConfigurationError{Field: "model-uri", Reason: "kserve provider requires a model storage URI"}
	}
	if cfg.Model == "" {
		return nil, &config.ConfigurationError{Field: "model", Reason: "kserve provider requires a model name"}
	}

	namespace := cfg.KServe.Namespace
	if namespace == "" {
		namespace = "default"
	}
	manager, err := kserve.NewManager(namespace, cfg.KServe.Kubeconfig, cfg.KServe.InCluster)
	if err != nil {
		return nil, err
	}

	modelCfg := kserve.DefaultModelConfig(cfg.Model, cfg.KServe.ModelURI)
	if cfg.KServe.Runtime != "" {
		modelCfg.Runtime = cfg.KServe.Runtime
	}
	if cfg.KServe.GPUCount > 0 {
		modelCfg.GPUCount = cfg.KServe.GPUCount
	}
	if cfg.KServe.ReadyTimeout > 0 {
		modelCfg.ReadyTimeout = cfg.KServe.ReadyTimeout
	}

	return &KServeResponder{
		manager:     manager,
		modelCfg:    modelCfg,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
	}, nil
}

func (r *KServeResponder) Name() string { return "kserve" }

// Setup makes the candidate model reachable, deploying it when no ready
// service with the same name exists yet.
func (r *KServeResponder) Setup(ctx context.Context) error {
	if err := r.manager.CheckCRDAvailable(ctx); err != nil {
		return err
	}

	var endpoint string
	if status, err := r.manager.Get(ctx, r.modelCfg.Name); err == nil && status.Ready {
		slog.Info("reusing ready candidate model", "name", status.Name, "endpoint", status.EndpointURL)
		endpoint = status.EndpointURL
	} else {
		status, err := r.manager.Deploy(ctx, r.modelCfg)
		if err != nil {
			return fmt.Errorf("deploying candidate model: %w", err)
		}
		endpoint = status.EndpointURL
	}

	r.client = r.newClient(endpoint)
	return nil
}

// Teardown removes the candidate model's InferenceService.
func (r *KServeResponder) Teardown(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.manager.Teardown(ctx, r.modelCfg.Name)
}

func (r *KServeResponder) Invoke(ctx context.Context, prompt string, _ map[string]any) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("kserve responder used before Setup")
	}
	resp, err := r.client.ChatCompletion(ctx, llm.ChatRequest{
		Model:       r.modelCfg.Name,
		UserMessage: prompt,
		Temperature: r.temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (r *KServeResponder) newClient(endpoint string) llm.Client {
	timeout := r.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return llm.NewOpenAIClient(
		llm.WithBaseURL(endpoint),
		llm.WithModel(r.modelCfg.Name),
		llm.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}
