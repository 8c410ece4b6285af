package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relialab/evalpipe/internal/config"
	"github.com/relialab/evalpipe/internal/notify"
	"github.com/relialab/evalpipe/internal/pipeline"
)

func newNotifyCmd() *cobra.Command {
	var (
		runDir        string
		projectFolder string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Email the report of a finished run",
		Long: `Send the report notification email for an existing run directory,
attaching its HTML report. Useful to re-send a notification or to send one
for a run that finished without --email.

SMTP settings come from the environment (SMTP_SERVER, SMTP_PORT, SMTP_FROM,
EMAIL_TO, EMAIL_SUBJECT_PREFIX), optionally via a .env file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(runDir); os.IsNotExist(err) {
				return fmt.Errorf("run directory not found: %s", runDir)
			}

			config.LoadEnv(projectFolder)
			smtpCfg, err := config.SMTPFromEnv()
			if err != nil {
				return err
			}

			info := notify.RunInfo{RunDir: runDir}
			if man, err := pipeline.ReadManifest(runDir); err == nil {
				info.Model = man.Model
				info.Threshold = man.Threshold
			}

			if err := notify.Send(cmd.Context(), smtpCfg, info); err != nil {
				return err
			}
			fmt.Printf("Notification sent to %s\n", strings.Join(smtpCfg.To, ", "))
			return nil
		},
	}

	cmd.Flags().StringVar(&runDir, "run", "", "Run directory whose report is sent")
	cmd.Flags().StringVar(&projectFolder, "project-folder", "", "Directory whose .env is loaded first")
	_ = cmd.MarkFlagRequired("run")

	return cmd
}
