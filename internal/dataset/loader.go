// Package dataset loads evaluation datasets and turns their spreadsheet rows
// into scenarios. A dataset is a directory holding a config.yaml and a
// tabular source file (CSV or XLSX); datasets ship embedded as defaults and
// can be overridden from an external directory.
package dataset

import (
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

//go:embed all:testdata
var embeddedDatasets embed.FS

// Load loads a dataset by name, searching first in the external directory
// (if provided), then in the embedded datasets.
func Load(name string, externalDir string) (*Dataset, error) {
	// Try external directory first.
	if externalDir != "" {
		path := filepath.Join(externalDir, name)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return loadFromFS(os.DirFS(path), name)
		}
	}

	// Fall back to embedded datasets.
	// Use path.Join (not filepath.Join) because embed.FS always uses forward slashes.
	subFS, err := fs.Sub(embeddedDatasets, path.Join("testdata", name))
	if err != nil {
		return nil, fmt.Errorf("dataset %q not found: %w", name, err)
	}
	return loadFromFS(subFS, name)
}

// List returns the names of all available datasets.
func List(externalDir string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string

	// List embedded datasets.
	entries, err := fs.ReadDir(embeddedDatasets, "testdata")
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				seen[e.Name()] = true
				names = append(names, e.Name())
			}
		}
	}

	// List external datasets.
	if externalDir != "" {
		entries, err := os.ReadDir(externalDir)
		if err == nil {
			for _, e := range entries {
				if e.IsDir() && !seen[e.Name()] {
					names = append(names, e.Name())
				}
			}
		}
	}

	return names, nil
}

func loadFromFS(fsys fs.FS, name string) (*Dataset, error) {
	configData, err := fs.ReadFile(fsys, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read config.yaml for dataset %q: %w", name, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(configData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config.yaml for dataset %q: %w", name, err)
	}

	if cfg.Source == "" {
		cfg.Source = "questions.csv"
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "Q_"
	}

	ds := &Dataset{Name: name, Config: cfg}
	if err := loadSource(fsys, ds); err != nil {
		return nil, fmt.Errorf("failed to load source for dataset %q: %w", name, err)
	}
	return ds, nil
}

func loadSource(fsys fs.FS, ds *Dataset) error {
	ext := strings.ToLower(filepath.Ext(ds.Config.Source))
	switch ext {
	case ".xlsx", ".xlsm":
		return loadXLSX(fsys, ds)
	case ".csv", "":
		return loadCSV(fsys, ds)
	default:
		return fmt.Errorf("unsupported source file type %q", ext)
	}
}

func loadCSV(fsys fs.FS, ds *Dataset) error {
	f, err := fsys.Open(ds.Config.Source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", ds.Config.Source, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // Allow variable field counts.

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for lineNum := 2; ; lineNum++ { // lineNum starts at 2 (1-indexed, after header).
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV row %d: %w", lineNum, err)
		}
		rows = append(rows, record)
	}

	ds.Header = header
	ds.Rows = rows
	ds.Sheet = strings.TrimSuffix(filepath.Base(ds.Config.Source), filepath.Ext(ds.Config.Source))
	return nil
}

func loadXLSX(fsys fs.FS, ds *Dataset) error {
	f, err := fsys.Open(ds.Config.Source)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", ds.Config.Source, err)
	}
	defer f.Close()

	wb, err := excelize.OpenReader(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", ds.Config.Source, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("%s contains no worksheets", ds.Config.Source)
	}
	sheet := ds.Config.Sheet
	if sheet == "" {
		sheet = sheets[0]
	} else {
		found := false
		for _, s := range sheets {
			if s == sheet {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("worksheet %q not found in %s; available: %s",
				sheet, ds.Config.Source, strings.Join(sheets, ", "))
		}
	}

	all, err := wb.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to read worksheet %q: %w", sheet, err)
	}
	if len(all) == 0 {
		return fmt.Errorf("worksheet %q is empty", sheet)
	}

	header := all[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	ds.Header = header
	ds.Rows = all[1:]
	ds.Sheet = sheet
	return nil
}
