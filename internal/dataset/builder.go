package dataset

import (
	"strconv"
	"strings"
)

// Build extracts scenarios from the loaded source table. Rows whose prompt
// cell is empty or whitespace are skipped entirely. Returns a
// ColumnResolutionError before touching any row when the prompt or reference
// column cannot be located.
func Build(ds *Dataset) (*Set, error) {
	res, err := resolveColumns(ds.Header, ds.Config.Columns)
	if err != nil {
		return nil, err
	}

	set := &Set{DatasetType: typeSlug(ds)}
	for i, row := range ds.Rows {
		prompt := strings.TrimSpace(cell(row, res.prompt))
		if prompt == "" {
			continue
		}

		var id string
		if res.id >= 0 {
			id = strings.TrimSpace(cell(row, res.id))
			if id == "" {
				id = strconv.Itoa(i + 1)
			}
		} else {
			id = strconv.Itoa(len(set.Scenarios) + 1)
		}

		set.Scenarios = append(set.Scenarios, Scenario{
			ID:        ds.Config.IDPrefix + id,
			Prompt:    prompt,
			Reference: strings.TrimSpace(cell(row, res.reference)),
			Metadata:  map[string]any{"sheet": ds.Sheet, "row": i},
		})
	}
	return set, nil
}

// cell reads a column from a row, tolerating rows shorter than the header.
// XLSX readers drop trailing empty cells, so short rows are normal there.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// typeSlug derives the dataset_type tag written to scenarios.json from the
// dataset's display name.
func typeSlug(ds *Dataset) string {
	name := ds.Config.Name
	if name == "" {
		name = ds.Name
	}
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	slug := strings.Trim(b.String(), "_")
	if slug == "" {
		return "eval"
	}
	return slug
}
