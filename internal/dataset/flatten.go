package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Flatten converts a scenario set into its line-oriented form, renaming
// prompt to input.
func Flatten(set *Set) []FlatScenario {
	flats := make([]FlatScenario, 0, len(set.Scenarios))
	for _, s := range set.Scenarios {
		flats = append(flats, FlatScenario{
			ID:        s.ID,
			Input:     s.Prompt,
			Reference: s.Reference,
			Metadata:  s.Metadata,
		})
	}
	return flats
}

// WriteSet writes the scenarios.json envelope.
func WriteSet(path string, set *Set) error {
	b, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteFlat writes scenarios.jsonl, one flattened scenario per line.
func WriteFlat(path string, flats []FlatScenario) error {
	var buf bytes.Buffer
	for _, f := range flats {
		b, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// indexRecord tolerates every shape scenarios are persisted in: the envelope
// entries use "prompt", the flattened lines use "input".
type indexRecord struct {
	ID        string `json:"id"`
	Prompt    string `json:"prompt"`
	Input     string `json:"input"`
	Reference string `json:"reference"`
}

func (rec indexRecord) scenario() Scenario {
	prompt := rec.Prompt
	if prompt == "" {
		prompt = rec.Input
	}
	return Scenario{ID: rec.ID, Prompt: prompt, Reference: rec.Reference}
}

// ReadIndex loads scenarios from scenarios.json (envelope or bare array) or
// scenarios.jsonl and indexes them by id for joining with generated answers.
func ReadIndex(path string) (map[string]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	trimmed := bytes.TrimSpace(data)
	index := make(map[string]Scenario)

	add := func(rec indexRecord) {
		if rec.ID != "" {
			index[rec.ID] = rec.scenario()
		}
	}

	if len(trimmed) == 0 {
		return index, nil
	}

	if trimmed[0] == '[' {
		var recs []indexRecord
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		for _, rec := range recs {
			add(rec)
		}
		return index, nil
	}

	if trimmed[0] == '{' {
		var envelope struct {
			Scenarios []indexRecord `json:"scenarios"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.Scenarios != nil {
			for _, rec := range envelope.Scenarios {
				add(rec)
			}
			return index, nil
		}
	}

	for i, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec indexRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing %s line %d: %w", path, i+1, err)
		}
		add(rec)
	}
	return index, nil
}
