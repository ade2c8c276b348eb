package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitop-dev/aistream/logging"
)

// EnvPrefix is the prefix of environment overrides, e.g. AISTREAM_MODEL or
// AISTREAM_OPENAI_API_KEY.
const EnvPrefix = "AISTREAM"

// Settings configures the aistream command.
type Settings struct {
	// Model is a "provider:model" reference.
	Model    string         `mapstructure:"model" json:"model"`
	System   string         `mapstructure:"system" json:"system"`
	MaxSteps int            `mapstructure:"max_steps" json:"max_steps"`
	Timeout  time.Duration  `mapstructure:"timeout" json:"timeout"`
	Log      LogSettings    `mapstructure:"log" json:"log"`
	Server   ServerSettings `mapstructure:"server" json:"server"`

	OpenAI    ProviderSettings `mapstructure:"openai" json:"openai"`
	Anthropic ProviderSettings `mapstructure:"anthropic" json:"anthropic"`
}

type LogSettings struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

type ServerSettings struct {
	Addr string `mapstructure:"addr" json:"addr"`
	// SendReasoning forwards reasoning parts to UI message stream clients.
	SendReasoning bool `mapstructure:"send_reasoning" json:"send_reasoning"`
	SendSources   bool `mapstructure:"send_sources" json:"send_sources"`
}

type ProviderSettings struct {
	APIKey  string `mapstructure:"api_key" json:"api_key"`
	BaseURL string `mapstructure:"base_url" json:"base_url"`
}

func defaultSettings() map[string]any {
	return map[string]any{
		"model":                 "openai:gpt-4o-mini",
		"system":                "",
		"max_steps":             5,
		"timeout":               "2m",
		"log.level":             "info",
		"log.format":            "text",
		"server.addr":           ":8080",
		"server.send_reasoning": true,
		"server.send_sources":   true,
		"openai.api_key":        "",
		"openai.base_url":       "",
		"anthropic.api_key":     "",
		"anthropic.base_url":    "",
	}
}

// LoadSettings loads Settings from path (optional) with AISTREAM_ environment
// overrides applied on top.
func LoadSettings(path string) (*Config[Settings], error) {
	return Load(path,
		WithDefaults[Settings](defaultSettings()),
		WithEnv[Settings](EnvPrefix),
		WithValidator(Settings.Validate),
	)
}

// Validate rejects settings the command cannot run with.
func (s Settings) Validate() error {
	var errs []error
	if p, m, ok := strings.Cut(s.Model, ":"); !ok || p == "" || m == "" {
		errs = append(errs, fmt.Errorf("model %q is not a provider:model reference", s.Model))
	}
	if s.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("max_steps must be at least 1, got %d", s.MaxSteps))
	}
	if s.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", s.Timeout))
	}
	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(s.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", s.Log.Format))
	}
	return errors.Join(errs...)
}
