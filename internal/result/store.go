package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Stages persist both shapes of every artifact: a pretty-printed JSON array
// for humans and tooling, and JSONL for line-oriented consumers. Readers
// accept either and sniff the format from the first byte.

func writeJSON[T any](path string, rows []T) error {
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func writeJSONL[T any](path string, rows []T) error {
	var buf bytes.Buffer
	for _, row := range rows {
		b, err := json.Marshal(row)
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

func readAuto[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var rows []T
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return rows, nil
	}
	var rows []T
	for i, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("parsing %s line %d: %w", path, i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteResponses persists generated answers as a JSONL file plus a mirrored
// JSON array next to it.
func WriteResponses(jsonlPath, jsonPath string, rows []Response) error {
	if err := writeJSONL(jsonlPath, rows); err != nil {
		return err
	}
	return writeJSON(jsonPath, rows)
}

// ReadResponses loads responses from either a JSON array or a JSONL file.
func ReadResponses(path string) ([]Response, error) {
	return readAuto[Response](path)
}

// WriteResults persists enriched rows as a JSON array plus a mirrored JSONL
// file. Every stage rewrites both after it finishes, so the files always hold
// the union of all enrichment applied so far.
func WriteResults(jsonPath, jsonlPath string, rows []Result) error {
	if err := writeJSON(jsonPath, rows); err != nil {
		return err
	}
	return writeJSONL(jsonlPath, rows)
}

// ReadResults loads enriched rows from either a JSON array or a JSONL file.
func ReadResults(path string) ([]Result, error) {
	return readAuto[Result](path)
}
