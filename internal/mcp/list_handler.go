package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/relialab/evalpipe/internal/dataset"
	"github.com/relialab/evalpipe/internal/server"
)

func registerEvaluationTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// list_datasets
	listTool := mcp.NewTool("list_datasets",
		mcp.WithDescription("List available evaluation datasets with metadata"),
	)
	s.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListDatasets(ctx, request, sc)
	})

	// run_evaluation
	runTool := mcp.NewTool("run_evaluation",
		mcp.WithDescription("Run the evaluation pipeline over a dataset: generate answers, score them and render the HTML report. If the model is deployed via KServe, the run connects to its endpoint automatically."),
		mcp.WithString("dataset",
			mcp.Required(),
			mcp.Description("Name of the dataset to evaluate (see list_datasets)"),
		),
		mcp.WithString("provider",
			mcp.Description("Answer provider: openai, gateway or kserve (default: server configuration)"),
		),
		mcp.WithString("model",
			mcp.Description("Model to generate answers with (overrides server configuration)"),
		),
		mcp.WithString("endpoint",
			mcp.Description("OpenAI-compatible endpoint URL (overrides auto-discovery from KServe)"),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Similarity pass threshold (default: 0.8)"),
		),
		mcp.WithBoolean("judge",
			mcp.Description("Run the LLM judge scoring stage"),
		),
		mcp.WithBoolean("grounding",
			mcp.Description("Run the hallucination and traceability judgments"),
		),
		mcp.WithString("judge_model",
			mcp.Description("Model to judge with (default: from config)"),
		),
		mcp.WithNumber("deepeval_threshold",
			mcp.Description("Judge pass threshold (defaults to the similarity threshold)"),
		),
	)
	s.AddTool(runTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRunEvaluation(ctx, request, sc)
	})

	// score_results
	scoreTool := mcp.NewTool("score_results",
		mcp.WithDescription("Re-run the scoring stages over an existing run directory, rebuilding its results files"),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run directory name under the output directory"),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Similarity pass threshold (default: 0.8)"),
		),
		mcp.WithBoolean("judge",
			mcp.Description("Run the LLM judge scoring stage"),
		),
		mcp.WithBoolean("grounding",
			mcp.Description("Run the hallucination and traceability judgments"),
		),
		mcp.WithString("judge_model",
			mcp.Description("Model to judge with (default: from config)"),
		),
	)
	s.AddTool(scoreTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleScoreResults(ctx, request, sc)
	})

	// get_results
	getResultsTool := mcp.NewTool("get_results",
		mcp.WithDescription("Retrieve the manifest and KPI summary for past evaluation runs"),
		mcp.WithString("run_id",
			mcp.Description("Specific run to retrieve (optional, lists all if omitted)"),
		),
	)
	s.AddTool(getResultsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetResults(ctx, request, sc)
	})

	// render_report
	reportTool := mcp.NewTool("render_report",
		mcp.WithDescription("Re-render the HTML report of a run from its results file"),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run directory name under the output directory"),
		),
	)
	s.AddTool(reportTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRenderReport(ctx, request, sc)
	})

	return nil
}

func handleListDatasets(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	names, err := dataset.List(sc.DatasetsDir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list datasets: %v", err)), nil
	}

	type datasetInfo struct {
		Name        string `json:"name"`
		Title       string `json:"title,omitempty"`
		Description string `json:"description"`
		Version     string `json:"version"`
		Source      string `json:"source"`
		RowCount    int    `json:"row_count"`
	}

	var infos []datasetInfo
	for _, name := range names {
		ds, err := dataset.Load(name, sc.DatasetsDir)
		if err != nil {
			continue
		}
		infos = append(infos, datasetInfo{
			Name:        ds.Name,
			Title:       ds.Config.Name,
			Description: ds.Config.Description,
			Version:     ds.Config.Version,
			Source:      ds.Config.Source,
			RowCount:    len(ds.Rows),
		})
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal datasets: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
