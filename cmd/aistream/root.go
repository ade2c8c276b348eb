package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bitop-dev/aistream/anthropic"
	"github.com/bitop-dev/aistream/config"
	"github.com/bitop-dev/aistream/logging"
	"github.com/bitop-dev/aistream/openai"
	"github.com/bitop-dev/aistream/provider"
)

type runtimeState struct {
	settings config.Settings
	log      logging.Logger
}

type app struct {
	configPath string
	envFile    string

	cfg     *config.Config[config.Settings]
	state   atomic.Pointer[runtimeState]
	resolve func(ref string) (provider.LanguageModel, error)
}

func newApp() *app {
	return &app{resolve: provider.Resolve}
}

func newRootCmd() *cobra.Command {
	a := newApp()
	root := &cobra.Command{
		Use:          "aistream",
		Short:        "Stream model responses with tool calling",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(newChatCmd(a), newServeCmd(a), newVersionCmd())
	return root
}

func (a *app) load() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.LoadSettings(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	a.apply(cfg.Get())

	cfg.OnChange(func(_, s config.Settings) {
		a.apply(s)
		a.logger().Info("configuration reloaded", "path", cfg.Path(), "model", s.Model)
	})
	cfg.OnReloadError(func(err error) {
		a.logger().Warn("configuration reload rejected, keeping previous settings", "path", cfg.Path(), "error", err)
	})
	return nil
}

// apply swaps in new settings. Runs already started keep their logger and
// model.
func (a *app) apply(s config.Settings) {
	// Validated on load.
	level, _ := logging.ParseLevel(s.Log.Level)
	log := logging.New(logging.Config{Level: level, Format: strings.ToLower(s.Log.Format), Output: os.Stderr})

	openai.Configure(openai.Config{APIKey: s.OpenAI.APIKey, BaseURL: s.OpenAI.BaseURL})
	anthropic.Configure(anthropic.Config{APIKey: s.Anthropic.APIKey, BaseURL: s.Anthropic.BaseURL})

	a.state.Store(&runtimeState{settings: s, log: log})
}

func (a *app) settings() config.Settings {
	if st := a.state.Load(); st != nil {
		return st.settings
	}
	return config.Settings{}
}

func (a *app) logger() logging.Logger {
	if st := a.state.Load(); st != nil {
		return st.log
	}
	return logging.NoOpLogger{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
