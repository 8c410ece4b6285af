// Package config handles environment-based configuration: best-effort .env
// loading and the typed settings blocks read from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ConfigurationError reports invalid or missing configuration. It is fatal:
// the pipeline refuses to start a stage that depends on the broken setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// LoadEnv loads a .env file without overriding variables already set in the
// environment. With a project directory it reads <dir>/.env, otherwise ./.env.
// A missing file is not an error.
func LoadEnv(projectDir string) {
	path := ".env"
	if projectDir != "" {
		path = filepath.Join(projectDir, ".env")
	}
	if err := godotenv.Load(path); err != nil {
		slog.Debug("no .env file loaded", "path", path, "error", err)
		return
	}
	slog.Debug("loaded .env file", "path", path)
}

// EnvOr returns the value of an environment variable or a fallback when the
// variable is unset or empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SMTP holds the settings for sending report notification emails.
type SMTP struct {
	Server        string
	Port          int
	From          string
	To            []string
	SubjectPrefix string
}

// SMTPFromEnv reads SMTP settings from the environment. SMTP_SERVER,
// SMTP_FROM and EMAIL_TO are required; SMTP_PORT defaults to 25 and
// EMAIL_SUBJECT_PREFIX to "AI Evaluation Report".
func SMTPFromEnv() (*SMTP, error) {
	cfg := &SMTP{
		Server:        os.Getenv("SMTP_SERVER"),
		From:          os.Getenv("SMTP_FROM"),
		SubjectPrefix: EnvOr("EMAIL_SUBJECT_PREFIX", "AI Evaluation Report"),
	}
	if cfg.Server == "" {
		return nil, &ConfigurationError{Field: "SMTP_SERVER", Reason: "not set"}
	}
	if cfg.From == "" {
		return nil, &ConfigurationError{Field: "SMTP_FROM", Reason: "not set"}
	}

	for _, addr := range strings.Split(os.Getenv("EMAIL_TO"), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			cfg.To = append(cfg.To, addr)
		}
	}
	if len(cfg.To) == 0 {
		return nil, &ConfigurationError{Field: "EMAIL_TO", Reason: "not set"}
	}

	port := EnvOr("SMTP_PORT", "25")
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 {
		return nil, &ConfigurationError{Field: "SMTP_PORT", Reason: fmt.Sprintf("invalid port %q", port)}
	}
	cfg.Port = p

	return cfg, nil
}

// Gateway holds the settings for the HTTP gateway provider. Validation
// happens when the provider is constructed, so a run that never selects the
// gateway is not bothered by an incomplete block.
type Gateway struct {
	URL            string
	APIKey         string
	AuthMode       string
	PromptParam    string
	ThresholdParam string
	ThresholdValue string
}

// GatewayFromEnv reads the gateway settings from the environment.
func GatewayFromEnv() Gateway {
	return Gateway{
		URL:            os.Getenv("GATEWAY_API_URL"),
		APIKey:         os.Getenv("GATEWAY_API_KEY"),
		AuthMode:       EnvOr("GATEWAY_AUTH_MODE", "bearer"),
		PromptParam:    EnvOr("GATEWAY_PROMPT_PARAM", "input"),
		ThresholdParam: os.Getenv("GATEWAY_THRESHOLD_PARAM"),
		ThresholdValue: os.Getenv("GATEWAY_THRESHOLD_VALUE"),
	}
}
