package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/relialab/evalpipe/internal/dataset"
	"github.com/relialab/evalpipe/internal/pipeline"
)

func newListCmd() *cobra.Command {
	var (
		datasetsDir string
		outputDir   string
		runs        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available datasets (or past runs with --runs)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runs {
				return listRuns(outputDir)
			}
			return listDatasets(datasetsDir)
		},
	}

	cmd.Flags().StringVar(&datasetsDir, "datasets-dir", "", "External datasets directory (searched before embedded datasets)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "output", "Base directory for run directories")
	cmd.Flags().BoolVar(&runs, "runs", false, "List evaluation runs instead of datasets")

	return cmd
}

func listDatasets(datasetsDir string) error {
	names, err := dataset.List(datasetsDir)
	if err != nil {
		return fmt.Errorf("failed to list datasets: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No datasets found.")
		return nil
	}

	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"NAME", "TITLE", "VERSION", "ROWS", "DESCRIPTION"})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: 48},
	})

	for _, name := range names {
		ds, err := dataset.Load(name, datasetsDir)
		if err != nil {
			w.AppendRow(table.Row{name, "", "", "", fmt.Sprintf("error loading: %v", err)})
			continue
		}
		w.AppendRow(table.Row{ds.Name, ds.Config.Name, ds.Config.Version, len(ds.Rows), ds.Config.Description})
	}

	w.Render()
	return nil
}

func listRuns(outputDir string) error {
	manifests, err := pipeline.ListRuns(outputDir)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Println("No runs found.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(manifests) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"RUN ID", "DATASET", "PROVIDER", "MODEL", "SCENARIOS", "STAGES", "TIMESTAMP"})

	for _, m := range manifests {
		w.AppendRow(table.Row{
			m.ID,
			m.Dataset,
			m.Provider,
			m.Model,
			m.Scenarios,
			len(m.Stages),
			m.Timestamp.Format("2006-01-02 15:04:05"),
		})
	}

	w.Render()
	return nil
}
