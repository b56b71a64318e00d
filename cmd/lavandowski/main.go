// Lavandowski - AML case dossiers and risk triage for flagged accounts.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/lavandowski/internal/config"
	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/logging"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// cli holds state shared by the subcommands.
type cli struct {
	configFile string
	logLevel   string
	logFormat  string

	cfg       *domain.Config
	logger    *slog.Logger
	logCloser io.Closer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "lavandowski",
		Short:        "AML case dossiers and LLM risk triage",
		Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.logCloser != nil {
				return c.logCloser.Close()
			}
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "Lavandowski version: %s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&c.configFile, "config-file", "C", "", "Path to a TOML, YAML, or JSON configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "Log format: json or text")

	root.AddCommand(
		newRunCmd(c),
		newServeCmd(c),
		newStatsCmd(c),
		newSchemaCmd(c),
	)
	return root
}

// setup loads configuration and installs the default logger.
func (c *cli) setup() error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Logging.Format = c.logFormat
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	c.cfg = cfg
	c.logger = logger
	c.logCloser = closer

	logger.Info("configuration loaded",
		"version", Version,
		"tier", cfg.Tier,
		"warehouse", cfg.Warehouse.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"llm_mode", cfg.LLM.Mode,
		"tracing", cfg.Tracing.Enabled,
	)
	return nil
}
