// Package cli implements the scenerender command-line interface.
//
// Every command loads the TOML configuration named by --config (or the
// built-in defaults), starts the render worker for the default key and then
// talks to it through the service client. --verbose switches the log level
// to debug.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/gmlewis/scenerender/config"
	"github.com/gmlewis/scenerender/service"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds state shared by all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	backend    string
}

// New returns a CLI logging to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand returns the root command with every subcommand registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "scenerender",
		Short:        "Render vector scenes on a dedicated device worker",
		Long:         `scenerender renders 2D vector scenes on per-key render workers, each owning one graphics device, and returns tightly packed RGBA frames.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(contextWithLogger(cmd.Context(), c.Logger))
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().StringVar(&c.backend, "backend", "", "override the configured backend: software, webgpu, opengl")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.showcaseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.benchCommand())
	return root
}

// loadConfig reads --config and applies the flag overrides.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return cfg, err
		}
	}
	if c.backend != "" {
		cfg.Backend = config.Backend(c.backend)
	}
	return cfg, cfg.Validate()
}

// startApp starts a render service for the running command. The command
// owns it and must Close it before returning.
func (c *CLI) startApp(ctx context.Context) (*service.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := commandLogger(ctx)
	sw := startStopwatch(logger)
	app, err := service.NewApp(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("start render service: %w", err)
	}
	sw.stop("Started render worker", "backend", cfg.Backend, "key", cfg.DefaultKey)
	return app, nil
}
