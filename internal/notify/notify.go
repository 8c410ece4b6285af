// Package notify emails the rendered evaluation report once a run has
// finished. Delivery goes through plain SMTP relays, so TLS is opportunistic
// and no authentication is attempted.
package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/relialab/evalpipe/internal/config"
	"github.com/relialab/evalpipe/internal/pipeline"
)

// RunInfo carries the run facts quoted in the notification body.
type RunInfo struct {
	Model     string
	Threshold float64
	RunDir    string
}

// Send emails the report of the given run to the configured recipients. A
// missing report file does not fail the send; the body gains a warning line
// and the attachment is skipped.
func Send(ctx context.Context, cfg *config.SMTP, info RunInfo) error {
	msg, err := buildMessage(cfg, info, time.Now())
	if err != nil {
		return err
	}

	client, err := mail.NewClient(cfg.Server,
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send notification to %s: %w", strings.Join(cfg.To, ", "), err)
	}
	return nil
}

func buildMessage(cfg *config.SMTP, info RunInfo, now time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(cfg.From); err != nil {
		return nil, fmt.Errorf("sender %q: %w", cfg.From, err)
	}
	if err := msg.To(cfg.To...); err != nil {
		return nil, fmt.Errorf("recipients %q: %w", strings.Join(cfg.To, ", "), err)
	}
	msg.Subject(fmt.Sprintf("%s - %s", cfg.SubjectPrefix, now.Format("20060102_150405")))
	msg.SetDateWithValue(now)

	model := info.Model
	if model == "" {
		model = "provider default"
	}
	lines := []string{
		"AI Evaluation Pipeline - Report Notification",
		"",
		"Timestamp : " + now.Format("2006-01-02 15:04:05"),
		"Model     : " + model,
		fmt.Sprintf("Threshold : %g", info.Threshold),
		"Output    : " + info.RunDir,
	}

	reportPath := filepath.Join(info.RunDir, pipeline.ReportFile)
	if _, err := os.Stat(reportPath); err == nil {
		msg.AttachFile(reportPath)
		lines = append(lines, "", "Attachment: "+pipeline.ReportFile+" (offline HTML report)")
	} else {
		lines = append(lines, "", "Report not found, attachment skipped: "+reportPath)
	}
	msg.SetBodyString(mail.TypeTextPlain, strings.Join(lines, "\n"))

	return msg, nil
}
