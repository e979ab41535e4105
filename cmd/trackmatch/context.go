package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"trackmatch/internal/app"
	"trackmatch/internal/resolver"
)

// commandContext lazily loads configuration shared by every subcommand.
type commandContext struct {
	configPath     string
	config         *app.Config
	buildProviders func(app.Config) ([]resolver.Provider, error)
}

func newCommandContext() *commandContext {
	return &commandContext{buildProviders: app.BuildProviders}
}

func (c *commandContext) ensureConfig() (app.Config, error) {
	if c.config != nil {
		return *c.config, nil
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return app.Config{}, err
	}
	if path := strings.TrimSpace(c.configPath); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return app.Config{}, err
		}
	}
	c.config = &cfg
	return cfg, nil
}

func (c *commandContext) logger(cmd *cobra.Command, cfg app.Config) *slog.Logger {
	// Results go to stdout; diagnostics stay on stderr and default to warn.
	if cfg.LogLevel == "" || cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	return app.NewWriterLogger(cmd.ErrOrStderr(), cfg)
}

// newService builds a resolver for a one-shot command: no shared cache and
// no history store.
func (c *commandContext) newService(cmd *cobra.Command) (*resolver.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	providers, err := c.buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	logger := c.logger(cmd, cfg)
	opts := append(app.ServiceOptions(cfg, logger), resolver.WithCacheDisabled(true))
	return resolver.NewService(providers, cfg.ResolveTimeout, opts...), nil
}
