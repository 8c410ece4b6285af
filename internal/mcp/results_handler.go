package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relialab/evalpipe/internal/pipeline"
	"github.com/relialab/evalpipe/internal/report"
	"github.com/relialab/evalpipe/internal/result"
	"github.com/relialab/evalpipe/internal/server"
)

func handleGetResults(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	runID, _ := args["run_id"].(string)

	if runID != "" {
		return getSpecificRun(sc.OutputDir, runID)
	}
	return listAllRuns(sc.OutputDir)
}

func listAllRuns(outputDir string) (*mcp.CallToolResult, error) {
	runs, err := pipeline.ListRuns(outputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mcp.NewToolResultText("[]"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("[]"), nil
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal runs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func getSpecificRun(outputDir, runID string) (*mcp.CallToolResult, error) {
	runPath, err := resolveRunPath(outputDir, runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	man, err := pipeline.ReadManifest(runPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run %q not found: %v", runID, err)), nil
	}

	detail := map[string]interface{}{
		"manifest": man,
	}
	// Include the KPI summary when the run has scored results.
	if rows, err := readRunResults(runPath); err == nil {
		detail["kpis"] = kpiSummary(rows)
	}

	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleRenderReport(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	runID, _ := args["run_id"].(string)

	runPath, err := resolveRunPath(sc.OutputDir, runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reportPath, err := pipeline.RenderReport(runPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render report: %v", err)), nil
	}

	payload := map[string]interface{}{
		"run_id": runID,
		"report": reportPath,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func readRunResults(runPath string) ([]result.Result, error) {
	rows, err := result.ReadResults(joinRunFile(runPath, pipeline.ResultsFile))
	if err == nil {
		return rows, nil
	}
	return result.ReadResults(joinRunFile(runPath, pipeline.ResultsFlatFile))
}

// kpiSummary flattens the report aggregation into a compact JSON object.
// Unavailable groups and unscored values are left out entirely.
func kpiSummary(rows []result.Result) map[string]interface{} {
	sum := report.Aggregate(rows)

	kpis := map[string]interface{}{
		"total":  sum.Total,
		"scored": sum.Embedding.Scored,
	}
	put := func(key string, v *float64) {
		if v != nil {
			kpis[key] = *v
		}
	}
	put("avg_similarity", sum.Embedding.Avg)
	put("p95_similarity", sum.Embedding.P95)
	put("pass_rate", sum.Embedding.PassRate)
	put("avg_generation_ms", sum.Latency.AvgGen)
	put("clarifying_rate", sum.Behavior.ClarifyingRate)
	put("deflection_rate", sum.Behavior.DeflectionRate)
	if sum.Judge.Available {
		put("judge_avg", sum.Judge.Avg)
		put("judge_pass_rate", sum.Judge.PassRate)
	}
	if sum.Grounding.Available {
		put("hallucination_rate", sum.Grounding.HallucinationRate)
		put("traceability_rate", sum.Grounding.TraceabilityRate)
	}
	return kpis
}
