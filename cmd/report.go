package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relialab/evalpipe/internal/pipeline"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <run-dir>",
		Short: "Re-render the HTML report of a run from its results file",
		Long: `Aggregate the results file of a run into KPI groups and write the
self-contained HTML report next to it. No network access is needed; the
report is rebuilt entirely from the run directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runDir := args[0]
			if _, err := os.Stat(runDir); os.IsNotExist(err) {
				return fmt.Errorf("run directory not found: %s", runDir)
			}

			path, err := pipeline.RenderReport(runDir)
			if err != nil {
				return err
			}
			fmt.Printf("Report written to: %s\n", path)
			return nil
		},
	}
	return cmd
}
