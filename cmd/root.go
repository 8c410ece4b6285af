package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "evalpipe",
	Short: "Evaluation pipeline for AI-generated answers with MCP server",
	Long: `evalpipe turns a spreadsheet of prompts and reviewed reference answers into
structured scenarios, generates answers through a model provider (OpenAI
endpoint, HTTP gateway or a KServe-served candidate model), scores them by
embedding similarity and LLM judgment, and renders an offline HTML report.
All functionality is also exposed via an MCP server with optional OAuth 2.1
authentication.

When run without subcommands, it starts the MCP server (equivalent to 'evalpipe serve').`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})))
		}
	},
}

// serveCmd is kept around because running evalpipe with no subcommand
// falls through to it.
var serveCmd *cobra.Command

var (
	buildCommit = "unknown"
	buildDate   = "unknown"
)

// SetVersion records the release version shown by the version command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// SetBuildInfo records the commit and build date shown by the version command.
func SetBuildInfo(commit, date string) {
	buildCommit = commit
	buildDate = date
}

// Execute runs the root command.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "evalpipe version %s\n" .Version}}`)

	// Without a subcommand, delegate to serve on its defaults. The root
	// command cannot parse serve-specific flags (--transport, --http-addr),
	// so anything beyond stdio needs the explicit subcommand.
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stderr, "No subcommand given; starting the MCP server on stdio.")
		fmt.Fprintln(os.Stderr, "For HTTP transport or OAuth, run: evalpipe serve --transport streamable-http")
		fmt.Fprintln(os.Stderr)
		if err := serveCmd.RunE(serveCmd, args); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	serveCmd = newServeCmd()
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newNotifyCmd())

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("kubeconfig", "", "Kubeconfig path for the kserve provider")
	rootCmd.PersistentFlags().StringP("namespace", "n", "evalpipe", "Kubernetes namespace for InferenceService resources")
}
