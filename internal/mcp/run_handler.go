package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relialab/evalpipe/internal/pipeline"
	"github.com/relialab/evalpipe/internal/provider"
	"github.com/relialab/evalpipe/internal/server"
)

func handleRunEvaluation(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	datasetName, ok := args["dataset"].(string)
	if !ok || datasetName == "" {
		return mcp.NewToolResultError("dataset is required"), nil
	}
	if sc.Embedder == nil {
		return mcp.NewToolResultError("embedding client is not configured"), nil
	}

	judge, _ := args["judge"].(bool)
	grounding, _ := args["grounding"].(bool)
	if (judge || grounding) && sc.JudgeClient == nil {
		return mcp.NewToolResultError("judge client is not configured"), nil
	}

	provName := sc.ProviderName
	if v, ok := args["provider"].(string); ok && v != "" {
		provName = v
	}
	provCfg := sc.ProviderConfig
	if v, ok := args["model"].(string); ok && v != "" {
		provCfg.Model = v
	}

	if v, ok := args["endpoint"].(string); ok && v != "" {
		// Explicit endpoint overrides everything.
		provCfg.Endpoint = v
	} else if isOpenAICompatible(provName) && sc.KServeManager != nil && provCfg.Model != "" {
		// Try KServe auto-discovery: answer through an already-served model.
		status, err := sc.KServeManager.Get(ctx, provCfg.Model)
		if err == nil && status.Ready && status.EndpointURL != "" {
			slog.Info("auto-discovered KServe endpoint for model",
				"model", provCfg.Model,
				"endpoint", status.EndpointURL,
			)
			provCfg.Endpoint = status.EndpointURL
		}
	}

	responder, err := provider.ForName(provName, provCfg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build provider: %v", err)), nil
	}

	opts := pipeline.Options{
		Dataset:     datasetName,
		DatasetsDir: sc.DatasetsDir,
		OutputDir:   sc.OutputDir,
		Provider:    responder.Name(),
		Model:       provCfg.Model,
		Judge:       judge,
		Grounding:   grounding,
	}
	if v, ok := args["threshold"].(float64); ok && v > 0 {
		opts.Threshold = v
	}
	if v, ok := args["judge_model"].(string); ok && v != "" {
		opts.JudgeModel = v
	}
	// Judge threshold follows the similarity threshold unless set explicitly.
	opts.DeepevalThreshold = opts.Threshold
	if v, ok := args["deepeval_threshold"].(float64); ok && v > 0 {
		opts.DeepevalThreshold = v
	}

	man, err := pipeline.New(opts, responder, sc.Embedder, sc.JudgeClient).Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("evaluation run failed: %v", err)), nil
	}

	summary := map[string]interface{}{
		"run_id":    man.ID,
		"dataset":   man.Dataset,
		"provider":  man.Provider,
		"model":     man.Model,
		"scenarios": man.Scenarios,
		"stages":    man.Stages,
		"duration":  fmt.Sprintf("%.1fs", man.DurationSec),
		"report":    filepath.Join(sc.OutputDir, man.ID, pipeline.ReportFile),
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// isOpenAICompatible reports whether the provider talks to a plain
// OpenAI-compatible endpoint, which is what KServe serves.
func isOpenAICompatible(name string) bool {
	name = strings.ToLower(name)
	return name == "" || name == "openai"
}
