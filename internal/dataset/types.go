package dataset

// Config describes a dataset directory's config.yaml. The tabular source file
// referenced by Source lives next to it.
type Config struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Version     string  `yaml:"version"`
	Source      string  `yaml:"source"`    // tabular file, .csv or .xlsx (default questions.csv)
	Sheet       string  `yaml:"sheet"`     // xlsx worksheet; empty means first sheet
	Columns     Columns `yaml:"columns"`   // explicit column names, all optional
	IDPrefix    string  `yaml:"id_prefix"` // scenario id prefix (default Q_)
}

// Columns names source columns explicitly. Prompt and Reference fall back to
// synonym matching when unset; ID falls back to the row ordinal.
type Columns struct {
	ID        string `yaml:"id"`
	Prompt    string `yaml:"prompt"`
	Reference string `yaml:"reference"`
}

// Dataset is a loaded dataset: its parsed config plus the raw source table.
type Dataset struct {
	Name   string // directory name the dataset was loaded from
	Config Config
	Header []string
	Rows   [][]string
	Sheet  string // worksheet actually read, or the source file stem for CSV
}

// Scenario is one evaluation case extracted from the source table.
type Scenario struct {
	ID        string         `json:"id"`
	Prompt    string         `json:"prompt"`
	Reference string         `json:"reference"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Set is the scenarios.json envelope.
type Set struct {
	DatasetType string     `json:"dataset_type"`
	Scenarios   []Scenario `json:"scenarios"`
}

// FlatScenario is the scenarios.jsonl line form. The prompt travels under the
// key "input" there; readers accept both spellings.
type FlatScenario struct {
	ID        string         `json:"id"`
	Input     string         `json:"input"`
	Reference string         `json:"reference"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
