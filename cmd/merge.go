package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relialab/evalpipe/internal/pipeline"
)

func newMergeCmd() *cobra.Command {
	var (
		metricsFile  string
		promptColumn string
		render       bool
	)

	cmd := &cobra.Command{
		Use:   "merge <run-dir>",
		Short: "Merge an external metrics spreadsheet into a run's results",
		Long: `Join auxiliary per-prompt metrics (a CSV or XLSX exported by another
system) onto the results of a run, matching rows by normalized prompt text.
Matched columns land under each row's external_metrics block; the results
files are rewritten in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runDir := args[0]
			if _, err := os.Stat(runDir); os.IsNotExist(err) {
				return fmt.Errorf("run directory not found: %s", runDir)
			}

			merged, total, err := pipeline.MergeMetrics(runDir, metricsFile, promptColumn)
			if err != nil {
				return err
			}
			fmt.Printf("Merged external metrics into %d/%d rows.\n", merged, total)

			if render {
				path, err := pipeline.RenderReport(runDir)
				if err != nil {
					return err
				}
				fmt.Printf("Report written to: %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Auxiliary metrics spreadsheet (.csv or .xlsx)")
	cmd.Flags().StringVar(&promptColumn, "prompt-column", "", "Prompt column in the metrics spreadsheet (default: autodetect)")
	cmd.Flags().BoolVar(&render, "render", false, "Re-render the HTML report after merging")
	_ = cmd.MarkFlagRequired("metrics-file")

	return cmd
}
