package dataset

import (
	"fmt"
	"strings"
)

// Synonym tables for locating the prompt and reference columns when the
// config does not name them. Order matters: earlier entries win.
var (
	promptSynonyms    = []string{"prompt", "question", "query", "user question", "input"}
	referenceSynonyms = []string{"expected response", "expected", "reference", "gold", "ground truth"}
)

// ColumnResolutionError reports that a required column could not be located.
// It carries the raw headers so the caller can print them for diagnosis. This
// is a fatal, pre-row error: no scenarios are built when it occurs.
type ColumnResolutionError struct {
	Role    string   // "prompt" or "reference"
	Tried   []string // names attempted, in order
	Headers []string // raw headers as found in the source
}

func (e *ColumnResolutionError) Error() string {
	return fmt.Sprintf("could not locate %s column (tried %s); available columns: %s",
		e.Role, strings.Join(e.Tried, ", "), strings.Join(e.Headers, ", "))
}

// NormalizeKey collapses all whitespace runs (including embedded newlines)
// to single spaces, trims, and lowercases. Used for header matching here and
// for the prompt keys the external metrics merge joins on.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// resolveColumn finds the index of the column for a role. The explicit
// configured name is tried first, then the synonyms, each in two passes:
// exact normalized match, then substring match.
func resolveColumn(headers []string, explicit string, synonyms []string) (int, bool) {
	candidates := synonyms
	if explicit != "" {
		candidates = append([]string{explicit}, synonyms...)
	}
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = NormalizeKey(h)
	}
	for _, cand := range candidates {
		want := NormalizeKey(cand)
		for i, h := range norm {
			if h == want {
				return i, true
			}
		}
	}
	for _, cand := range candidates {
		want := NormalizeKey(cand)
		if want == "" {
			continue
		}
		for i, h := range norm {
			if strings.Contains(h, want) {
				return i, true
			}
		}
	}
	return 0, false
}

// resolution holds the column indexes picked for one dataset.
type resolution struct {
	prompt    int
	reference int
	id        int // -1 when no id column is available
}

// resolveColumns locates the prompt, reference and optional id columns.
// Prompt and reference are required; the id column is best effort and absent
// ids fall back to row ordinals.
func resolveColumns(headers []string, cols Columns) (resolution, error) {
	res := resolution{id: -1}

	idx, ok := resolveColumn(headers, cols.Prompt, promptSynonyms)
	if !ok {
		tried := promptSynonyms
		if cols.Prompt != "" {
			tried = append([]string{cols.Prompt}, promptSynonyms...)
		}
		return res, &ColumnResolutionError{Role: "prompt", Tried: tried, Headers: headers}
	}
	res.prompt = idx

	idx, ok = resolveColumn(headers, cols.Reference, referenceSynonyms)
	if !ok {
		tried := referenceSynonyms
		if cols.Reference != "" {
			tried = append([]string{cols.Reference}, referenceSynonyms...)
		}
		return res, &ColumnResolutionError{Role: "reference", Tried: tried, Headers: headers}
	}
	res.reference = idx

	if cols.ID != "" {
		if idx, ok := resolveColumn(headers, cols.ID, nil); ok {
			res.id = idx
		}
	}
	return res, nil
}
