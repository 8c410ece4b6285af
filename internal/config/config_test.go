package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	env := "EVALPIPE_TEST_KEY=from-file\nEVALPIPE_TEST_OTHER=file-only\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644))

	t.Setenv("EVALPIPE_TEST_KEY", "from-environment")
	os.Unsetenv("EVALPIPE_TEST_OTHER")
	t.Cleanup(func() { os.Unsetenv("EVALPIPE_TEST_OTHER") })

	LoadEnv(dir)

	assert.Equal(t, "from-environment", os.Getenv("EVALPIPE_TEST_KEY"))
	assert.Equal(t, "file-only", os.Getenv("EVALPIPE_TEST_OTHER"))
}

func TestLoadEnvMissingFileIsFine(t *testing.T) {
	LoadEnv(t.TempDir())
}

func TestEnvOr(t *testing.T) {
	t.Setenv("EVALPIPE_TEST_SET", "value")
	assert.Equal(t, "value", EnvOr("EVALPIPE_TEST_SET", "fallback"))
	assert.Equal(t, "fallback", EnvOr("EVALPIPE_TEST_UNSET_KEY", "fallback"))
}

func TestSMTPFromEnv(t *testing.T) {
	t.Setenv("SMTP_SERVER", "mail.internal")
	t.Setenv("SMTP_FROM", "eval@internal")
	t.Setenv("EMAIL_TO", "a@internal, b@internal ,")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("EMAIL_SUBJECT_PREFIX", "QA Pipeline")

	cfg, err := SMTPFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "mail.internal", cfg.Server)
	assert.Equal(t, 2525, cfg.Port)
	assert.Equal(t, []string{"a@internal", "b@internal"}, cfg.To)
	assert.Equal(t, "QA Pipeline", cfg.SubjectPrefix)
}

func TestSMTPFromEnvDefaults(t *testing.T) {
	t.Setenv("SMTP_SERVER", "mail.internal")
	t.Setenv("SMTP_FROM", "eval@internal")
	t.Setenv("EMAIL_TO", "team@internal")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("EMAIL_SUBJECT_PREFIX", "")

	cfg, err := SMTPFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Port)
	assert.Equal(t, "AI Evaluation Report", cfg.SubjectPrefix)
}

func TestSMTPFromEnvMissing(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"missing server", "SMTP_SERVER"},
		{"missing from", "SMTP_FROM"},
		{"missing to", "EMAIL_TO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SMTP_SERVER", "mail.internal")
			t.Setenv("SMTP_FROM", "eval@internal")
			t.Setenv("EMAIL_TO", "team@internal")
			t.Setenv(tt.unset, "")

			_, err := SMTPFromEnv()
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.unset, cfgErr.Field)
		})
	}
}

func TestSMTPFromEnvBadPort(t *testing.T) {
	t.Setenv("SMTP_SERVER", "mail.internal")
	t.Setenv("SMTP_FROM", "eval@internal")
	t.Setenv("EMAIL_TO", "team@internal")
	t.Setenv("SMTP_PORT", "not-a-port")

	_, err := SMTPFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_PORT")
}

func TestGatewayFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_API_URL", "https://gw.internal/run")
	t.Setenv("GATEWAY_API_KEY", "secret")
	t.Setenv("GATEWAY_AUTH_MODE", "")
	t.Setenv("GATEWAY_PROMPT_PARAM", "")
	t.Setenv("GATEWAY_THRESHOLD_PARAM", "score_cutoff")
	t.Setenv("GATEWAY_THRESHOLD_VALUE", "0.7")

	cfg := GatewayFromEnv()
	assert.Equal(t, "https://gw.internal/run", cfg.URL)
	assert.Equal(t, "bearer", cfg.AuthMode)
	assert.Equal(t, "input", cfg.PromptParam)
	assert.Equal(t, "score_cutoff", cfg.ThresholdParam)
	assert.Equal(t, "0.7", cfg.ThresholdValue)
}
