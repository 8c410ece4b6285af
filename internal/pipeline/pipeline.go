// Package pipeline sequences the evaluation stages over a run directory,
// from scenario building through report rendering. Every stage persists its
// full output before the next starts, so a run directory is always
// inspectable and the scoring stages can be re-run from files alone.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/relialab/evalpipe/internal/config"
	"github.com/relialab/evalpipe/internal/dataset"
	"github.com/relialab/evalpipe/internal/llm"
	"github.com/relialab/evalpipe/internal/metrics"
	"github.com/relialab/evalpipe/internal/provider"
	"github.com/relialab/evalpipe/internal/report"
	"github.com/relialab/evalpipe/internal/result"
	"github.com/relialab/evalpipe/internal/scoring"
)

// ProgressFunc is called as stages advance. Generation reports once per
// scenario; the other stages report once when they start, with done = 0.
type ProgressFunc func(stage string, done, total int)

// Options configures a run. Provider construction (endpoints, credentials,
// timeouts) happens in the caller; the pipeline records only the names.
type Options struct {
	Dataset     string
	DatasetsDir string
	OutputDir   string

	Provider string
	Model    string

	// Threshold is the similarity pass threshold.
	Threshold float64

	Judge             bool
	JudgeModel        string
	DeepevalThreshold float64

	Grounding bool

	MetricsFile  string
	PromptColumn string

	Concurrency int
}

// Pipeline runs the evaluation stages strictly in order, persisting every
// stage's full output into the run directory before the next stage starts.
type Pipeline struct {
	opts      Options
	responder provider.Responder
	embedder  llm.Embedder
	judge     llm.Client
	progress  ProgressFunc
}

// New creates a Pipeline. The responder answers prompts during generation
// and may be nil when only Score is used; the embedder serves the similarity
// stage; the judge client serves the judge and grounding stages and may be
// nil when both are disabled.
func New(opts Options, responder provider.Responder, embedder llm.Embedder, judge llm.Client) *Pipeline {
	return &Pipeline{opts: opts, responder: responder, embedder: embedder, judge: judge}
}

// SetProgressFunc sets the progress callback.
func (p *Pipeline) SetProgressFunc(fn ProgressFunc) {
	p.progress = fn
}

// Run executes the full pipeline for the configured dataset and returns the
// manifest of the new run directory.
func (p *Pipeline) Run(ctx context.Context) (*Manifest, error) {
	if err := p.validate(true); err != nil {
		return nil, err
	}

	ds, err := dataset.Load(p.opts.Dataset, p.opts.DatasetsDir)
	if err != nil {
		return nil, err
	}
	set, err := dataset.Build(ds)
	if err != nil {
		return nil, err
	}

	// A broken metrics source must surface before the first provider call.
	lookup, err := p.buildLookup()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	runID := fmt.Sprintf("%s_%s", set.DatasetType, start.Format("20060102-150405"))
	runDir := filepath.Join(p.opts.OutputDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}

	slog.Info("starting evaluation run",
		"run", runID,
		"dataset", p.opts.Dataset,
		"provider", p.opts.Provider,
		"scenarios", len(set.Scenarios),
	)

	man := &Manifest{
		ID:          runID,
		Dataset:     p.opts.Dataset,
		DatasetType: set.DatasetType,
		Provider:    p.opts.Provider,
		Model:       p.opts.Model,
		Threshold:   p.threshold(),
		Timestamp:   start,
		Scenarios:   len(set.Scenarios),
	}

	if err := dataset.WriteSet(filepath.Join(runDir, ScenariosFile), set); err != nil {
		return nil, err
	}
	man.addStage(StageScenarios)
	man.addFile("scenarios", ScenariosFile)

	if err := dataset.WriteFlat(filepath.Join(runDir, ScenariosFlatFile), dataset.Flatten(set)); err != nil {
		return nil, err
	}
	man.addStage(StageFlatten)
	man.addFile("scenarios_flat", ScenariosFlatFile)

	responses, genErr := p.generate(ctx, set.Scenarios)
	if len(responses) > 0 || genErr == nil {
		// A cancelled run still leaves whatever was generated on disk.
		if err := result.WriteResponses(filepath.Join(runDir, ResponsesFlatFile), filepath.Join(runDir, ResponsesFile), responses); err != nil {
			return nil, err
		}
		man.addStage(StageGenerate)
		man.addFile("responses", ResponsesFlatFile)
	}
	if genErr != nil {
		return nil, genErr
	}

	if err := p.enrich(ctx, runDir, responses, indexScenarios(set.Scenarios), lookup, man); err != nil {
		return nil, err
	}

	man.DurationSec = time.Since(start).Seconds()
	if err := WriteManifest(runDir, man); err != nil {
		return nil, err
	}

	slog.Info("evaluation run complete",
		"run", runID,
		"duration", time.Since(start).Round(time.Millisecond),
		"dir", runDir,
	)
	return man, nil
}

// Score re-runs the scoring stages and the report over an existing run
// directory. The result rows are rebuilt from the persisted responses and
// scenarios, then enriched by the enabled stages, so the results files end
// up reflecting exactly this scoring pass.
func (p *Pipeline) Score(ctx context.Context, runDir string) (*Manifest, error) {
	if err := p.validate(false); err != nil {
		return nil, err
	}
	lookup, err := p.buildLookup()
	if err != nil {
		return nil, err
	}

	index, err := readScenarioIndex(runDir)
	if err != nil {
		return nil, err
	}
	responses, err := readResponses(runDir)
	if err != nil {
		return nil, err
	}

	man, err := ReadManifest(runDir)
	if err != nil {
		man = &Manifest{ID: filepath.Base(runDir), Scenarios: len(responses)}
	}
	man.Threshold = p.threshold()
	if man.Timestamp.IsZero() {
		man.Timestamp = time.Now()
	}

	slog.Info("re-scoring run", "run", man.ID, "rows", len(responses))

	if err := p.enrich(ctx, runDir, responses, index, lookup, man); err != nil {
		return nil, err
	}
	if err := WriteManifest(runDir, man); err != nil {
		return nil, err
	}
	return man, nil
}

// validate catches configuration gaps before any stage touches a row.
func (p *Pipeline) validate(withGeneration bool) error {
	if withGeneration && p.responder == nil {
		return &config.ConfigurationError{Field: "provider", Reason: "no responder configured"}
	}
	if p.embedder == nil {
		return &config.ConfigurationError{Field: "embeddings", Reason: "no embedding client configured"}
	}
	if (p.opts.Judge || p.opts.Grounding) && p.judge == nil {
		return &config.ConfigurationError{Field: "judge", Reason: "judge scoring enabled without a chat client"}
	}
	return nil
}

func (p *Pipeline) threshold() float64 {
	if p.opts.Threshold <= 0 {
		return scoring.DefaultThreshold
	}
	return p.opts.Threshold
}

// buildLookup loads the external metrics source when one is configured.
func (p *Pipeline) buildLookup() (*metrics.Lookup, error) {
	if p.opts.MetricsFile == "" {
		return nil, nil
	}
	table, err := metrics.LoadTable(p.opts.MetricsFile)
	if err != nil {
		return nil, err
	}
	return metrics.NewLookup(table, p.opts.PromptColumn)
}

// generate answers every scenario sequentially. A provider failure on one
// row is logged and recorded as an empty answer; the row survives so the
// scoring stages see the full scenario set.
func (p *Pipeline) generate(ctx context.Context, scenarios []dataset.Scenario) ([]result.Response, error) {
	if lc, ok := p.responder.(provider.Lifecycle); ok {
		if err := lc.Setup(ctx); err != nil {
			return nil, fmt.Errorf("provider setup: %w", err)
		}
		defer func() {
			if err := lc.Teardown(context.WithoutCancel(ctx)); err != nil {
				slog.Error("provider teardown failed", "provider", p.responder.Name(), "error", err)
			}
		}()
	}

	slog.Info("generating answers", "provider", p.responder.Name(), "scenarios", len(scenarios))

	responses := make([]result.Response, 0, len(scenarios))
	answered := 0
	for i, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			slog.Warn("generation cancelled", "completed", i, "total", len(scenarios))
			return responses, err
		}
		if p.progress != nil {
			p.progress(StageGenerate, i+1, len(scenarios))
		}

		callStart := time.Now()
		answer, err := p.responder.Invoke(ctx, sc.Prompt, sc.Metadata)
		elapsed := time.Since(callStart).Milliseconds()
		if err != nil {
			slog.Warn("provider call failed", "id", sc.ID, "error", err)
			answer = ""
		} else {
			answered++
		}

		responses = append(responses, result.Response{
			ID:       sc.ID,
			Prompt:   sc.Prompt,
			Answer:   answer,
			Timing:   &result.Timing{Generation: &elapsed},
			Metadata: sc.Metadata,
		})
	}

	slog.Info("generation complete", "answered", answered, "total", len(scenarios))
	return responses, nil
}

// enrich runs the scoring stages over generated responses, rewriting the
// results files after every stage so the run directory always holds the
// union of enrichment applied so far.
func (p *Pipeline) enrich(ctx context.Context, runDir string, responses []result.Response, index map[string]dataset.Scenario, lookup *metrics.Lookup, man *Manifest) error {
	resultsPath := filepath.Join(runDir, ResultsFile)
	resultsFlat := filepath.Join(runDir, ResultsFlatFile)
	writeRows := func(rows []result.Result) error {
		return result.WriteResults(resultsPath, resultsFlat, rows)
	}

	p.stageStart(StageSimilarity, len(responses))
	sim := scoring.NewSimilarityScorer(p.embedder, p.opts.Threshold)
	rows, simErr := sim.Score(ctx, responses, index)
	if err := writeRows(rows); err != nil {
		return err
	}
	if simErr != nil {
		return fmt.Errorf("similarity scoring: %w", simErr)
	}
	man.addStage(StageSimilarity)
	man.addFile("results", ResultsFile)

	if p.opts.Judge {
		p.stageStart(StageJudge, len(rows))
		judge := scoring.NewJudgeScorer(p.judge, scoring.JudgeConfig{
			Model:       p.opts.JudgeModel,
			Threshold:   p.opts.DeepevalThreshold,
			Concurrency: p.opts.Concurrency,
		})
		judgeErr := judge.Score(ctx, rows)
		if err := writeRows(rows); err != nil {
			return err
		}
		if judgeErr != nil {
			return fmt.Errorf("judge scoring: %w", judgeErr)
		}
		man.addStage(StageJudge)
	}

	if p.opts.Grounding {
		p.stageStart(StageGrounding, len(rows))
		grounding := scoring.NewGroundingJudge(p.judge, scoring.GroundingConfig{
			Model:       p.opts.JudgeModel,
			Concurrency: p.opts.Concurrency,
		})
		groundErr := grounding.Score(ctx, rows)
		if err := writeRows(rows); err != nil {
			return err
		}
		if groundErr != nil {
			return fmt.Errorf("grounding judgment: %w", groundErr)
		}
		man.addStage(StageGrounding)
	}

	if lookup != nil {
		p.stageStart(StageMerge, len(rows))
		merged := lookup.Merge(rows, index)
		slog.Info("external metrics merged", "merged", merged, "total", len(rows))
		if err := writeRows(rows); err != nil {
			return err
		}
		man.addStage(StageMerge)
	}

	p.stageStart(StageReport, len(rows))
	if err := report.WriteReport(filepath.Join(runDir, ReportFile), report.Aggregate(rows)); err != nil {
		return err
	}
	man.addStage(StageReport)
	man.addFile("report", ReportFile)

	return nil
}

func (p *Pipeline) stageStart(stage string, total int) {
	if p.progress != nil {
		p.progress(stage, 0, total)
	}
}

func indexScenarios(scenarios []dataset.Scenario) map[string]dataset.Scenario {
	index := make(map[string]dataset.Scenario, len(scenarios))
	for _, sc := range scenarios {
		index[sc.ID] = sc
	}
	return index
}

// readScenarioIndex loads a run's persisted scenarios, accepting either
// artifact form.
func readScenarioIndex(runDir string) (map[string]dataset.Scenario, error) {
	index, err := dataset.ReadIndex(filepath.Join(runDir, ScenariosFile))
	if err == nil {
		return index, nil
	}
	index, flatErr := dataset.ReadIndex(filepath.Join(runDir, ScenariosFlatFile))
	if flatErr != nil {
		return nil, fmt.Errorf("loading scenarios from %s: %w", runDir, err)
	}
	return index, nil
}

func readResponses(runDir string) ([]result.Response, error) {
	responses, err := result.ReadResponses(filepath.Join(runDir, ResponsesFlatFile))
	if err == nil {
		return responses, nil
	}
	responses, jsonErr := result.ReadResponses(filepath.Join(runDir, ResponsesFile))
	if jsonErr != nil {
		return nil, fmt.Errorf("loading responses from %s: %w", runDir, err)
	}
	return responses, nil
}

func readResults(runDir string) ([]result.Result, error) {
	rows, err := result.ReadResults(filepath.Join(runDir, ResultsFile))
	if err == nil {
		return rows, nil
	}
	rows, flatErr := result.ReadResults(filepath.Join(runDir, ResultsFlatFile))
	if flatErr != nil {
		return nil, fmt.Errorf("loading results from %s: %w", runDir, err)
	}
	return rows, nil
}

// RenderReport rebuilds report.html from a run directory's results files and
// returns the report path.
func RenderReport(runDir string) (string, error) {
	rows, err := readResults(runDir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(runDir, ReportFile)
	if err := report.WriteReport(path, report.Aggregate(rows)); err != nil {
		return "", err
	}
	slog.Info("report rendered", "rows", len(rows), "path", path)
	return path, nil
}

// MergeMetrics joins an external metrics spreadsheet onto a run's results in
// place and reports how many rows matched.
func MergeMetrics(runDir, metricsFile, promptColumn string) (int, int, error) {
	rows, err := readResults(runDir)
	if err != nil {
		return 0, 0, err
	}
	table, err := metrics.LoadTable(metricsFile)
	if err != nil {
		return 0, 0, err
	}
	lookup, err := metrics.NewLookup(table, promptColumn)
	if err != nil {
		return 0, 0, err
	}

	index, err := readScenarioIndex(runDir)
	if err != nil {
		// Merging joins by each row's own prompt; the index only backfills
		// rows whose prompt is empty.
		slog.Debug("no scenario index for merge", "error", err)
		index = nil
	}

	merged := lookup.Merge(rows, index)
	if err := result.WriteResults(filepath.Join(runDir, ResultsFile), filepath.Join(runDir, ResultsFlatFile), rows); err != nil {
		return 0, 0, err
	}
	slog.Info("external metrics merged", "merged", merged, "total", len(rows))
	return merged, len(rows), nil
}
