package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Artifact names inside a run directory.
const (
	ScenariosFile     = "scenarios.json"
	ScenariosFlatFile = "scenarios.jsonl"
	ResponsesFlatFile = "responses.jsonl"
	ResponsesFile     = "responses.json"
	ResultsFile       = "results.json"
	ResultsFlatFile   = "results.jsonl"
	ReportFile        = "report.html"
	ManifestFile      = "run.json"
)

// Stage names, in pipeline order.
const (
	StageScenarios  = "scenarios"
	StageFlatten    = "flatten"
	StageGenerate   = "generate"
	StageSimilarity = "similarity"
	StageJudge      = "judge"
	StageGrounding  = "grounding"
	StageMerge      = "merge"
	StageReport     = "report"
)

// Manifest is the run.json record describing one evaluation run: what was
// evaluated, which stages completed, and where their artifacts live relative
// to the run directory.
type Manifest struct {
	ID          string            `json:"id"`
	Dataset     string            `json:"dataset"`
	DatasetType string            `json:"dataset_type"`
	Provider    string            `json:"provider"`
	Model       string            `json:"model,omitempty"`
	Threshold   float64           `json:"threshold"`
	Timestamp   time.Time         `json:"timestamp"`
	DurationSec float64           `json:"duration_seconds"`
	Scenarios   int               `json:"scenarios"`
	Stages      []string          `json:"stages"`
	Files       map[string]string `json:"files,omitempty"`
}

// addStage records a completed stage once, in order of first completion.
func (m *Manifest) addStage(stage string) {
	if !slices.Contains(m.Stages, stage) {
		m.Stages = append(m.Stages, stage)
	}
}

func (m *Manifest) addFile(role, name string) {
	if m.Files == nil {
		m.Files = make(map[string]string)
	}
	m.Files[role] = name
}

// WriteManifest persists the manifest as the run directory's run.json.
func WriteManifest(dir string, m *Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadManifest loads a run directory's run.json.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}

// ListRuns scans an output directory for run directories with a readable
// manifest, oldest first. Directories without one are skipped silently; they
// may be half-written runs or unrelated clutter.
func ListRuns(outputDir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", outputDir, err)
	}

	var runs []*Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := ReadManifest(filepath.Join(outputDir, e.Name()))
		if err != nil {
			continue
		}
		runs = append(runs, m)
	}

	slices.SortFunc(runs, func(a, b *Manifest) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return runs, nil
}
