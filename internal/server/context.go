package server

import (
	"github.com/relialab/evalpipe/internal/kserve"
	"github.com/relialab/evalpipe/internal/llm"
	"github.com/relialab/evalpipe/internal/provider"
)

// ServerContext holds shared dependencies for MCP tool handlers.
type ServerContext struct {
	KServeManager *kserve.Manager

	// Embedder scores similarity; required for run_evaluation and
	// score_results.
	Embedder llm.Embedder

	// JudgeClient backs the judge and grounding stages; optional.
	JudgeClient llm.Client

	// ProviderName and ProviderConfig are the server-wide answer provider
	// defaults. run_evaluation arguments overlay provider, model and
	// endpoint per call.
	ProviderName   string
	ProviderConfig provider.Config

	Namespace   string
	OutputDir   string
	DatasetsDir string // external datasets directory (optional)
}
