package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shelldon-ai/shelldon/internal/config"
	"github.com/shelldon-ai/shelldon/internal/logger"
	"github.com/shelldon-ai/shelldon/internal/metrics"
	"github.com/shelldon-ai/shelldon/pkg/agent"
	"github.com/shelldon-ai/shelldon/pkg/guard"
	"github.com/shelldon-ai/shelldon/pkg/history"
	"github.com/shelldon-ai/shelldon/pkg/runlog"
	"github.com/shelldon-ai/shelldon/pkg/shell"
)

// app wires the config, logging, metrics, guard, history, and the shell
// itself for one CLI invocation.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	guard   *guard.Guard
	history *history.Store
	shell   *shell.Shell
	watcher *config.Watcher
}

// newApp builds the full stack. extraSinks are wired into the shell's event
// fan-out alongside metrics and history.
func newApp(extraSinks ...shell.EventSink) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	l, err := logger.New(logger.Config{
		Level:   level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	a := &app{
		cfg:     cfg,
		log:     l,
		metrics: metrics.NewMetrics(),
		guard:   guard.New(cfg.Security.DenyPrefixes...),
	}

	sinks := shell.MultiSink{metrics.NewSink(a.metrics)}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		a.history = store
		sinks = append(sinks, history.NewRecorder(store))
	}

	sinks = append(sinks, extraSinks...)

	sh, err := shell.New(shell.Config{
		BashPath:       cfg.Shell.BashPath,
		WorkDir:        cfg.Shell.WorkDir,
		DefaultTimeout: time.Duration(cfg.Shell.TimeoutSeconds) * time.Second,
		QueueSize:      cfg.Shell.QueueSize,
		Gate:           a.guard,
		Events:         sinks,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create shell: %w", err)
	}
	a.shell = sh

	return a, nil
}

// watchConfig hot-reloads the guard's deny prefixes when the config file
// changes. Long-running commands (serve) call this; one-shot commands skip
// it.
func (a *app) watchConfig() {
	w, err := config.NewWatcher(config.NewLoader(cfgFile), func(cfg *config.Config) {
		a.guard.Reload(cfg.Security.DenyPrefixes)
		log.Info().Strs("deny_prefixes", cfg.Security.DenyPrefixes).Msg("Security rules reloaded")
	})
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable, security rules are fixed for this run")
		return
	}
	a.watcher = w
}

// newRunner builds the agent runner over this app's shell.
func (a *app) newRunner(transcript *runlog.RunLogger) (*agent.Runner, error) {
	apiKey := a.cfg.AI.APIKey
	if apiKey == "" {
		apiKey = providerKeyFromEnv(a.cfg.AI.Provider)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q", a.cfg.AI.Provider)
	}

	provider, err := agent.NewProvider(a.cfg.AI.Provider, apiKey)
	if err != nil {
		return nil, err
	}

	return agent.NewRunner(agent.Config{
		Provider:    provider,
		Shell:       a.shell,
		Model:       a.cfg.AI.Model,
		Temperature: a.cfg.AI.Temperature,
		MaxTokens:   a.cfg.AI.MaxTokens,
		MaxTurns:    a.cfg.AI.MaxTurns,
		ToolTimeout: time.Duration(a.cfg.Shell.TimeoutSeconds) * time.Second,
		Stats:       metrics.NewAgentStats(a.metrics),
		Transcript:  transcript,
	})
}

func providerKeyFromEnv(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

// close tears the stack down in reverse order of construction.
func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.shell != nil {
		a.shell.Close()
	}
	if a.history != nil {
		a.history.Close()
	}
	if a.log != nil {
		a.log.Close()
	}
}
