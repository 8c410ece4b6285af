package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/relialab/evalpipe/internal/config"
	"github.com/relialab/evalpipe/internal/dataset"
	"github.com/relialab/evalpipe/internal/llm"
	"github.com/relialab/evalpipe/internal/notify"
	"github.com/relialab/evalpipe/internal/pipeline"
	"github.com/relialab/evalpipe/internal/provider"
	"github.com/relialab/evalpipe/internal/scoring"
)

func newRunCmd() *cobra.Command {
	var (
		providerName      string
		model             string
		endpoint          string
		apiKey            string
		temperature       float64
		threshold         float64
		judge             bool
		judgeModel        string
		deepevalThreshold float64
		grounding         bool
		metricsFile       string
		promptColumn      string
		outputDir         string
		datasetsDir       string
		projectFolder     string
		email             bool
		timeout           time.Duration
		concurrency       int
		embeddingModel    string
		modelURI          string
		gpuCount          int
		inCluster         bool
	)

	cmd := &cobra.Command{
		Use:   "run <dataset>",
		Short: "Run the full evaluation pipeline on a dataset",
		Long: `Build scenarios from a dataset, generate answers through the selected
provider, score them by embedding similarity (plus optional LLM judge and
grounding judgments), and render an offline HTML report.

Every stage persists its output into the run directory before the next stage
starts, so a partial run can be re-scored later with 'evalpipe score'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			// .env is best effort and never overrides real environment.
			config.LoadEnv(projectFolder)

			if !cmd.Flags().Changed("provider") {
				providerName = config.EnvOr("PROVIDER", providerName)
			}
			if !cmd.Flags().Changed("deepeval-threshold") {
				deepevalThreshold = threshold
			}

			kubeconfig, _ := cmd.Flags().GetString("kubeconfig")
			namespace, _ := cmd.Flags().GetString("namespace")

			provCfg := provider.Config{
				Model:    model,
				Endpoint: endpoint,
				APIKey:   apiKey,
				Timeout:  provider.DefaultTimeout,
				Gateway:  config.GatewayFromEnv(),
				KServe: provider.KServeSettings{
					Namespace:  namespace,
					Kubeconfig: kubeconfig,
					InCluster:  inCluster,
					ModelURI:   modelURI,
					GPUCount:   gpuCount,
				},
			}
			// Changed() so an explicit --temperature 0 still pins the value.
			if cmd.Flags().Changed("temperature") {
				provCfg.Temperature = llm.Float64Ptr(temperature)
			}

			responder, err := provider.ForName(providerName, provCfg)
			if err != nil {
				return err
			}

			// Scoring always goes through the OpenAI-compatible client,
			// independent of which provider generates the answers.
			client := newLLMClientFromFlags("", apiKey, embeddingModel)

			ds, err := dataset.Load(args[0], datasetsDir)
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}

			opts := pipeline.Options{
				Dataset:           args[0],
				DatasetsDir:       datasetsDir,
				OutputDir:         outputDir,
				Provider:          responder.Name(),
				Model:             model,
				Threshold:         threshold,
				Judge:             judge,
				JudgeModel:        judgeModel,
				DeepevalThreshold: deepevalThreshold,
				Grounding:         grounding,
				MetricsFile:       metricsFile,
				PromptColumn:      promptColumn,
				Concurrency:       concurrency,
			}

			var judgeClient llm.Client
			if judge || grounding {
				judgeClient = client
			}

			p := pipeline.New(opts, responder, client, judgeClient)
			p.SetProgressFunc(func(stage string, done, total int) {
				if done > 0 {
					fmt.Printf("\r  [%s] %d/%d...", stage, done, total)
					return
				}
				fmt.Printf("\n  [%s] %d rows...", stage, total)
			})

			fmt.Printf("Dataset: %s\n", ds.Config.Name)
			if ds.Config.Description != "" {
				fmt.Printf("Description: %s\n", ds.Config.Description)
			}
			fmt.Printf("Provider: %s\n", responder.Name())
			if model != "" {
				fmt.Printf("Model: %s\n", model)
			}
			fmt.Printf("Similarity threshold: %.2f\n", threshold)
			fmt.Println()

			man, err := p.Run(ctx)
			if err != nil {
				return err
			}

			runDir := filepath.Join(outputDir, man.ID)
			fmt.Printf("\n\nEvaluation completed.\n")
			fmt.Printf("Run ID: %s\n", man.ID)
			fmt.Printf("Scenarios: %d\n", man.Scenarios)
			fmt.Printf("Duration: %.1fs\n", man.DurationSec)
			fmt.Printf("Report: %s\n", filepath.Join(runDir, pipeline.ReportFile))

			if email {
				smtpCfg, err := config.SMTPFromEnv()
				if err != nil {
					return fmt.Errorf("email notification requested: %w", err)
				}
				info := notify.RunInfo{
					Model:     man.Model,
					Threshold: man.Threshold,
					RunDir:    runDir,
				}
				if err := notify.Send(ctx, smtpCfg, info); err != nil {
					return fmt.Errorf("email notification: %w", err)
				}
				fmt.Printf("Notification sent to %s\n", strings.Join(smtpCfg.To, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "openai", "Answer provider: openai, gateway or kserve (or set PROVIDER)")
	cmd.Flags().StringVar(&model, "model", "", "Model name passed to the provider")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Answer endpoint URL (overrides the provider default)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (or set OPENAI_API_KEY)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.0, "Temperature for answer generation")
	cmd.Flags().Float64Var(&threshold, "threshold", scoring.DefaultThreshold, "Similarity pass threshold")
	cmd.Flags().BoolVar(&judge, "judge", false, "Run the LLM judge scoring stage")
	cmd.Flags().StringVar(&judgeModel, "judge-model", scoring.DefaultJudgeModel, "Model used for judge and grounding stages")
	cmd.Flags().Float64Var(&deepevalThreshold, "deepeval-threshold", 0, "Judge pass threshold (defaults to --threshold)")
	cmd.Flags().BoolVar(&grounding, "grounding", false, "Run the hallucination and traceability judgments")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Auxiliary metrics spreadsheet merged into the results")
	cmd.Flags().StringVar(&promptColumn, "prompt-column", "", "Prompt column in the metrics spreadsheet (default: autodetect)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "output", "Base directory for run directories")
	cmd.Flags().StringVar(&datasetsDir, "datasets-dir", "", "External datasets directory (searched before embedded datasets)")
	cmd.Flags().StringVar(&projectFolder, "project-folder", "", "Directory whose .env is loaded before the run")
	cmd.Flags().BoolVar(&email, "email", false, "Email the report once the run finishes (requires SMTP_* settings)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall timeout for the run (e.g. 30m, 1h). 0 means no timeout")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Judge and grounding request concurrency (0 uses the default)")
	cmd.Flags().StringVar(&embeddingModel, "embedding-model", "", "Embedding model for similarity scoring")
	cmd.Flags().StringVar(&modelURI, "model-uri", "", "Model storage URI for the kserve provider (e.g. hf://org/model)")
	cmd.Flags().IntVar(&gpuCount, "gpu-count", 0, "GPUs for the kserve provider (0 uses the runtime default)")
	cmd.Flags().BoolVar(&inCluster, "in-cluster", false, "Use in-cluster Kubernetes configuration")

	return cmd
}
