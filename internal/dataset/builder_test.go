package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSkipsEmptyPrompts(t *testing.T) {
	ds := &Dataset{
		Name:   "sample",
		Config: Config{Name: "Sample", IDPrefix: "Q_"},
		Header: []string{"Prompt", "Expected Response"},
		Rows: [][]string{
			{"first question", "first answer"},
			{"   ", "orphan answer"},
			{"", ""},
			{"second question", "second answer"},
		},
		Sheet: "questions",
	}

	set, err := Build(ds)
	require.NoError(t, err)
	require.Len(t, set.Scenarios, 2)

	// Ids number the kept scenarios, not the source rows.
	assert.Equal(t, "Q_1", set.Scenarios[0].ID)
	assert.Equal(t, "Q_2", set.Scenarios[1].ID)
	assert.Equal(t, "second question", set.Scenarios[1].Prompt)

	// Metadata rows still point at the source row index.
	assert.Equal(t, 0, set.Scenarios[0].Metadata["row"])
	assert.Equal(t, 3, set.Scenarios[1].Metadata["row"])
	assert.Equal(t, "questions", set.Scenarios[0].Metadata["sheet"])
}

func TestBuildNaturalIDColumn(t *testing.T) {
	ds := &Dataset{
		Name:   "sample",
		Config: Config{Name: "Sample", IDPrefix: "MCP_", Columns: Columns{ID: "No."}},
		Header: []string{"No.", "Prompt", "Expected Response"},
		Rows: [][]string{
			{"12", "alpha", "a"},
			{"", "beta", "b"},
			{"14", "gamma", "c"},
		},
		Sheet: "SVA-Mini",
	}

	set, err := Build(ds)
	require.NoError(t, err)
	require.Len(t, set.Scenarios, 3)
	assert.Equal(t, "MCP_12", set.Scenarios[0].ID)
	// An empty id cell falls back to the 1-based source row ordinal.
	assert.Equal(t, "MCP_2", set.Scenarios[1].ID)
	assert.Equal(t, "MCP_14", set.Scenarios[2].ID)
}

func TestBuildTrimsValues(t *testing.T) {
	ds := &Dataset{
		Config: Config{IDPrefix: "Q_"},
		Header: []string{"Prompt", "Expected"},
		Rows:   [][]string{{"  padded question  ", "  padded answer  "}},
	}
	set, err := Build(ds)
	require.NoError(t, err)
	require.Len(t, set.Scenarios, 1)
	assert.Equal(t, "padded question", set.Scenarios[0].Prompt)
	assert.Equal(t, "padded answer", set.Scenarios[0].Reference)
}

func TestBuildShortRows(t *testing.T) {
	// XLSX readers drop trailing empty cells; short rows must not panic and
	// the missing reference reads as empty.
	ds := &Dataset{
		Config: Config{IDPrefix: "Q_"},
		Header: []string{"Prompt", "Expected Response"},
		Rows:   [][]string{{"lonely question"}},
	}
	set, err := Build(ds)
	require.NoError(t, err)
	require.Len(t, set.Scenarios, 1)
	assert.Equal(t, "", set.Scenarios[0].Reference)
}

func TestBuildColumnResolutionFailureIsFatal(t *testing.T) {
	ds := &Dataset{
		Config: Config{IDPrefix: "Q_"},
		Header: []string{"Foo", "Bar"},
		Rows:   [][]string{{"a", "b"}},
	}
	set, err := Build(ds)
	assert.Nil(t, set)
	var colErr *ColumnResolutionError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, []string{"Foo", "Bar"}, colErr.Headers)
}

func TestTypeSlug(t *testing.T) {
	tests := []struct {
		cfgName string
		dirName string
		want    string
	}{
		{"Email Transfer QA", "email-transfer-qa", "email_transfer_qa"},
		{"", "email-transfer-qa", "email_transfer_qa"},
		{"RAG (v2) Eval!", "", "rag_v2_eval"},
		{"", "", "eval"},
	}
	for _, tt := range tests {
		ds := &Dataset{Name: tt.dirName, Config: Config{Name: tt.cfgName}}
		assert.Equal(t, tt.want, typeSlug(ds), "config %q dir %q", tt.cfgName, tt.dirName)
	}
}

func TestBuildEmbeddedDataset(t *testing.T) {
	ds, err := Load("email-transfer-qa", "")
	require.NoError(t, err)

	set, err := Build(ds)
	require.NoError(t, err)
	assert.Equal(t, "email_transfer_qa", set.DatasetType)
	require.Len(t, set.Scenarios, 8)
	assert.Equal(t, "MCP_1", set.Scenarios[0].ID)
	assert.NotEmpty(t, set.Scenarios[0].Reference)
}

func TestFlattenRenamesPromptToInput(t *testing.T) {
	set := &Set{
		DatasetType: "sample",
		Scenarios: []Scenario{
			{ID: "Q_1", Prompt: "the prompt", Reference: "the reference",
				Metadata: map[string]any{"sheet": "s", "row": 0}},
		},
	}
	flats := Flatten(set)
	require.Len(t, flats, 1)
	assert.Equal(t, "the prompt", flats[0].Input)
	assert.Equal(t, "the reference", flats[0].Reference)
	assert.Equal(t, set.Scenarios[0].Metadata, flats[0].Metadata)
}

func TestReadIndexAllFormats(t *testing.T) {
	dir := t.TempDir()
	set := &Set{
		DatasetType: "sample",
		Scenarios: []Scenario{
			{ID: "Q_1", Prompt: "alpha", Reference: "ref a"},
			{ID: "Q_2", Prompt: "beta", Reference: ""},
		},
	}

	envelope := filepath.Join(dir, "scenarios.json")
	require.NoError(t, WriteSet(envelope, set))
	flat := filepath.Join(dir, "scenarios.jsonl")
	require.NoError(t, WriteFlat(flat, Flatten(set)))

	fromEnvelope, err := ReadIndex(envelope)
	require.NoError(t, err)
	fromFlat, err := ReadIndex(flat)
	require.NoError(t, err)

	for name, index := range map[string]map[string]Scenario{"envelope": fromEnvelope, "flat": fromFlat} {
		require.Len(t, index, 2, name)
		assert.Equal(t, "alpha", index["Q_1"].Prompt, name)
		assert.Equal(t, "ref a", index["Q_1"].Reference, name)
		assert.Equal(t, "", index["Q_2"].Reference, name)
	}
}
