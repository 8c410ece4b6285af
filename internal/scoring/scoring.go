// Package scoring enriches generated answers with evaluation verdicts. The
// similarity stage embeds each answer and its reference and scores their
// cosine similarity against a threshold; the judge stages ask an LLM to grade
// answer correctness and grounding. Rows are enriched independently, so a
// failed call leaves the affected fields unset rather than aborting the run.
package scoring

import (
	"encoding/json"
	"strings"
)

const (
	// DefaultThreshold is the pass threshold shared by the similarity and
	// judge stages.
	DefaultThreshold = 0.80

	// DefaultJudgeModel is used for judge calls when no model is configured.
	DefaultJudgeModel = "gpt-4o-mini"

	// DefaultConcurrency bounds simultaneous judge calls within a stage.
	DefaultConcurrency = 4
)

// extractJSON pulls a JSON object out of judge output, tolerating prose
// around it: a whole-text parse is tried first, then the span between the
// first "{" and the last "}". Returns nil when neither parses to an object.
func extractJSON(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var whole map[string]any
	if err := json.Unmarshal([]byte(text), &whole); err == nil {
		return whole
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var sub map[string]any
		if err := json.Unmarshal([]byte(text[start:end+1]), &sub); err == nil {
			return sub
		}
	}
	return nil
}
