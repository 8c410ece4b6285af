package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/relialab/evalpipe/internal/config"
	"github.com/relialab/evalpipe/internal/llm"
	"github.com/relialab/evalpipe/internal/pipeline"
	"github.com/relialab/evalpipe/internal/report"
	"github.com/relialab/evalpipe/internal/result"
	"github.com/relialab/evalpipe/internal/scoring"
)

func newScoreCmd() *cobra.Command {
	var (
		threshold         float64
		judge             bool
		judgeModel        string
		deepevalThreshold float64
		grounding         bool
		metricsFile       string
		promptColumn      string
		apiKey            string
		embeddingModel    string
		concurrency       int
		projectFolder     string
	)

	cmd := &cobra.Command{
		Use:   "score <run-dir>",
		Short: "Re-run the scoring stages over an existing run directory",
		Long: `Rebuild the results files of a run from its persisted responses and
scenarios: embedding similarity, optional LLM judge and grounding judgments,
optional external metrics merge, and a fresh HTML report.

Generation is not repeated; only the scoring stages run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runDir := args[0]
			if _, err := os.Stat(runDir); os.IsNotExist(err) {
				return fmt.Errorf("run directory not found: %s", runDir)
			}

			config.LoadEnv(projectFolder)
			if !cmd.Flags().Changed("deepeval-threshold") {
				deepevalThreshold = threshold
			}

			client := newLLMClientFromFlags("", apiKey, embeddingModel)
			var judgeClient llm.Client
			if judge || grounding {
				judgeClient = client
			}

			opts := pipeline.Options{
				OutputDir:         filepath.Dir(runDir),
				Threshold:         threshold,
				Judge:             judge,
				JudgeModel:        judgeModel,
				DeepevalThreshold: deepevalThreshold,
				Grounding:         grounding,
				MetricsFile:       metricsFile,
				PromptColumn:      promptColumn,
				Concurrency:       concurrency,
			}

			p := pipeline.New(opts, nil, client, judgeClient)
			p.SetProgressFunc(func(stage string, done, total int) {
				if done > 0 {
					fmt.Printf("\r  [%s] %d/%d...", stage, done, total)
					return
				}
				fmt.Printf("\n  [%s] %d rows...", stage, total)
			})

			fmt.Printf("Scoring: %s\n", runDir)
			fmt.Printf("Similarity threshold: %.2f\n", threshold)

			man, err := p.Score(cmd.Context(), runDir)
			if err != nil {
				return err
			}

			fmt.Printf("\n\nScoring completed.\n")
			fmt.Printf("Run ID: %s\n", man.ID)
			fmt.Printf("Results: %s\n", filepath.Join(runDir, pipeline.ResultsFile))

			rows, err := result.ReadResults(filepath.Join(runDir, pipeline.ResultsFile))
			if err != nil {
				return nil
			}
			printSummary(report.Aggregate(rows))
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", scoring.DefaultThreshold, "Similarity pass threshold")
	cmd.Flags().BoolVar(&judge, "judge", false, "Run the LLM judge scoring stage")
	cmd.Flags().StringVar(&judgeModel, "judge-model", scoring.DefaultJudgeModel, "Model used for judge and grounding stages")
	cmd.Flags().Float64Var(&deepevalThreshold, "deepeval-threshold", 0, "Judge pass threshold (defaults to --threshold)")
	cmd.Flags().BoolVar(&grounding, "grounding", false, "Run the hallucination and traceability judgments")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Auxiliary metrics spreadsheet merged into the results")
	cmd.Flags().StringVar(&promptColumn, "prompt-column", "", "Prompt column in the metrics spreadsheet (default: autodetect)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or set OPENAI_API_KEY)")
	cmd.Flags().StringVar(&embeddingModel, "embedding-model", "", "Embedding model for similarity scoring")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Judge and grounding request concurrency (0 uses the default)")
	cmd.Flags().StringVar(&projectFolder, "project-folder", "", "Directory whose .env is loaded before scoring")

	return cmd
}

// printSummary prints the KPI groups that have scored rows.
func printSummary(sum *report.Summary) {
	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Scenarios: %d\n", sum.Total)
	if sum.Embedding.Avg != nil {
		fmt.Printf("  Avg similarity: %.4f\n", *sum.Embedding.Avg)
	}
	if sum.Embedding.PassRate != nil {
		fmt.Printf("  Pass rate: %.1f%%\n", *sum.Embedding.PassRate*100)
	}
	if sum.Judge.Available && sum.Judge.Avg != nil {
		fmt.Printf("  Judge avg: %.4f\n", *sum.Judge.Avg)
	}
	if sum.Judge.Available && sum.Judge.PassRate != nil {
		fmt.Printf("  Judge pass rate: %.1f%%\n", *sum.Judge.PassRate*100)
	}
	if sum.Grounding.Available && sum.Grounding.HallucinationRate != nil {
		fmt.Printf("  Hallucination rate: %.1f%%\n", *sum.Grounding.HallucinationRate*100)
	}
	if sum.Grounding.Available && sum.Grounding.TraceabilityRate != nil {
		fmt.Printf("  Traceability rate: %.1f%%\n", *sum.Grounding.TraceabilityRate*100)
	}
}
