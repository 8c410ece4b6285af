// Package metrics merges externally computed quality metrics from an
// auxiliary spreadsheet into result rows. Rows are joined to spreadsheet
// lines by normalized prompt text with exact matching only; a miss leaves
// the row untouched.
package metrics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relialab/evalpipe/internal/config"
	"github.com/relialab/evalpipe/internal/dataset"
	"github.com/relialab/evalpipe/internal/result"
)

// DefaultPromptColumn is the spreadsheet column holding the prompt text.
const DefaultPromptColumn = "Input"

// Columns is the catalog of metric columns picked up from the source, under
// their business-friendly spreadsheet names. Columns absent from the source
// are simply not merged.
var Columns = []string{
	// Scores.
	"Contextual Precision_Score",
	"Contextual Recall_Score",
	"Contextual Relevancy_Score",
	"Answer Relevancy_Score",
	"Faithfulness_Score",
	"Hallucination_Score",
	"metric_1",
	"Traceability (GEval)_Score",
	// Success flags.
	"Contextual Precision_Success",
	"Contextual Recall_Success",
	"Contextual Relevancy_Success",
	"Answer Relevancy_Success",
	"Faithfulness_Success",
	"Hallucination_Success",
	"Traceability (GEval)_Success",
	// Reasons.
	"Contextual Precision_Reason",
	"Contextual Recall_Reason",
	"Contextual Relevancy_Reason",
	"Answer Relevancy_Reason",
	"Faithfulness_Reason",
	"Hallucination_Reason",
	"Traceability (GEval)_Reason",
}

// toKey converts a spreadsheet column name to its JSON key.
func toKey(col string) string {
	key := strings.ToLower(col)
	key = strings.ReplaceAll(key, " (geval)", "_geval")
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "__", "_")
	key = strings.ReplaceAll(key, "(", "")
	key = strings.ReplaceAll(key, ")", "")
	key = strings.ReplaceAll(key, "-", "_")
	return key
}

// coerce interprets a raw cell by its column family. Scores become float64
// when parseable and stay raw strings otherwise; success flags must coerce
// to a boolean or the cell is skipped; reasons pass through. Empty cells are
// always skipped.
func coerce(col, raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	switch {
	case strings.HasSuffix(col, "_Success"):
		if b := parseBool(raw); b != nil {
			return *b, true
		}
		return nil, false
	case strings.HasSuffix(col, "_Reason"):
		return raw, true
	default:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, true
		}
		return raw, true
	}
}

func parseBool(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1":
		b := true
		return &b
	case "false", "no", "n", "0":
		b := false
		return &b
	}
	return nil
}

// Lookup indexes metric payloads by normalized prompt text.
type Lookup struct {
	prompts map[string]map[string]any
}

// NewLookup builds a Lookup from a loaded table. The prompt column must be
// present; cataloged columns are optional. On duplicate prompts the last
// spreadsheet line wins.
func NewLookup(table *Table, promptCol string) (*Lookup, error) {
	if promptCol == "" {
		promptCol = DefaultPromptColumn
	}

	colIdx := make(map[string]int, len(table.Header))
	for i, h := range table.Header {
		colIdx[strings.TrimSpace(h)] = i
	}
	promptIdx, ok := colIdx[promptCol]
	if !ok {
		return nil, &config.ConfigurationError{
			Field: "prompt column",
			Reason: fmt.Sprintf("%q not found in metrics source; available columns: %s",
				promptCol, strings.Join(table.Header, ", ")),
		}
	}

	prompts := make(map[string]map[string]any)
	for _, row := range table.Rows {
		p := dataset.NormalizeKey(cell(row, promptIdx))
		if p == "" {
			continue
		}
		payload := make(map[string]any)
		for _, col := range Columns {
			idx, ok := colIdx[col]
			if !ok {
				continue
			}
			if v, ok := coerce(col, cell(row, idx)); ok {
				payload[toKey(col)] = v
			}
		}
		prompts[p] = payload
	}
	return &Lookup{prompts: prompts}, nil
}

// Merge unions matching metric payloads into the rows in place and returns
// how many rows matched. A row's own prompt is used for the join, falling
// back to its scenario's prompt when empty; misses are not an error.
func (l *Lookup) Merge(rows []result.Result, scenarios map[string]dataset.Scenario) int {
	merged := 0
	for i := range rows {
		prompt := rows[i].Prompt
		if prompt == "" {
			if sc, ok := scenarios[rows[i].ID]; ok {
				prompt = sc.Prompt
			}
		}
		payload, ok := l.prompts[dataset.NormalizeKey(prompt)]
		if !ok || len(payload) == 0 {
			continue
		}
		for k, v := range payload {
			rows[i].Set(k, v)
		}
		merged++
	}
	return merged
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
