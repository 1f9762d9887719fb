// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vladimir-ch/krylov/internal/config"
)

// globalFlags are shared by all subcommands.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	var gf globalFlags
	root := &cobra.Command{
		Use:           "krylov",
		Short:         "Iterative solvers for sparse linear systems",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&gf.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&gf.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&gf.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(newSolveCmd(&gf))
	return root
}

// loadConfig loads the configuration and applies the global flags that
// were set on the command line.
func (gf *globalFlags) loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = gf.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = gf.logFormat
	}
	return cfg, nil
}

func newLogger(w io.Writer, c config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch c.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", c.Format)
}
