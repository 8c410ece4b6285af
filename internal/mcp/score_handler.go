package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relialab/evalpipe/internal/pipeline"
	"github.com/relialab/evalpipe/internal/server"
)

func handleScoreResults(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Embedder == nil {
		return mcp.NewToolResultError("embedding client is not configured"), nil
	}

	args := request.GetArguments()

	runID, _ := args["run_id"].(string)
	runPath, err := resolveRunPath(sc.OutputDir, runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	judge, _ := args["judge"].(bool)
	grounding, _ := args["grounding"].(bool)
	if (judge || grounding) && sc.JudgeClient == nil {
		return mcp.NewToolResultError("judge client is not configured"), nil
	}

	opts := pipeline.Options{
		OutputDir: sc.OutputDir,
		Judge:     judge,
		Grounding: grounding,
	}
	if v, ok := args["threshold"].(float64); ok && v > 0 {
		opts.Threshold = v
	}
	opts.DeepevalThreshold = opts.Threshold
	if v, ok := args["judge_model"].(string); ok && v != "" {
		opts.JudgeModel = v
	}

	man, err := pipeline.New(opts, nil, sc.Embedder, sc.JudgeClient).Score(ctx, runPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scoring failed: %v", err)), nil
	}

	summary := map[string]interface{}{
		"run_id":    man.ID,
		"threshold": man.Threshold,
		"stages":    man.Stages,
		"results":   joinRunFile(runPath, pipeline.ResultsFile),
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal summary: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
