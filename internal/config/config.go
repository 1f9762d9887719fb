// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the configuration of the krylov command.
//
// Values are taken from the defaults, then from an optional YAML file, then
// from KRYLOV_* environment variables. Command-line flags are applied last by
// the command itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/vladimir-ch/krylov"
)

// ErrInvalid is wrapped by validation errors.
var ErrInvalid = errors.New("config: invalid")

// minRelTolerance is the machine epsilon, the smallest relative tolerance.
const minRelTolerance = 1.0 / (1 << 53)

// Config is the configuration of a solve run.
type Config struct {
	Solver  SolverConfig  `yaml:"solver"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`

	// Parallelism limits the number of right-hand sides solved
	// concurrently. Zero means no limit.
	Parallelism int `yaml:"parallelism"`
}

// SolverConfig selects and tunes the iterative method.
type SolverConfig struct {
	Method        string  `yaml:"method"`
	Tolerance     float64 `yaml:"tolerance"`
	MaxIterations int     `yaml:"max_iterations"`
	// MatrixFree makes the solver apply the sparse matrix directly
	// instead of a dense copy.
	MatrixFree bool `yaml:"matrix_free"`
	// Trace writes the residual norm of every iteration to stderr.
	Trace bool `yaml:"trace"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // text or json
}

// MetricsConfig configures the metrics dump at exit.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Solver: SolverConfig{
			Method:        krylov.KindCGS.String(),
			Tolerance:     krylov.DefaultTolerance,
			MaxIterations: krylov.DefaultMaxIterations,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load returns the default configuration overridden by the YAML file at path
// (if path is not empty) and by the environment.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := c.fromEnv(); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c *Config) fromEnv() error {
	if v, ok := os.LookupEnv("KRYLOV_METHOD"); ok {
		c.Solver.Method = v
	}
	if v, ok := os.LookupEnv("KRYLOV_TOLERANCE"); ok {
		tol, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: KRYLOV_TOLERANCE: %v", ErrInvalid, err)
		}
		c.Solver.Tolerance = tol
	}
	if v, ok := os.LookupEnv("KRYLOV_MAX_ITERATIONS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: KRYLOV_MAX_ITERATIONS: %v", ErrInvalid, err)
		}
		c.Solver.MaxIterations = n
	}
	if v, ok := os.LookupEnv("KRYLOV_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

// Validate checks that c can be used for a solve.
func (c Config) Validate() error {
	kind, err := krylov.ParseKind(c.Solver.Method)
	if err != nil {
		return fmt.Errorf("%w: solver.method: %v", ErrInvalid, err)
	}
	if !(c.Solver.Tolerance > 0) {
		return fmt.Errorf("%w: solver.tolerance must be positive, got %v", ErrInvalid, c.Solver.Tolerance)
	}
	if kind != krylov.KindCGS && (c.Solver.Tolerance < minRelTolerance || c.Solver.Tolerance >= 1) {
		return fmt.Errorf("%w: solver.tolerance of %s must be in [2^-53, 1), got %v", ErrInvalid, kind, c.Solver.Tolerance)
	}
	if c.Solver.MaxIterations <= 0 {
		return fmt.Errorf("%w: solver.max_iterations must be positive, got %d", ErrInvalid, c.Solver.MaxIterations)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative, got %d", ErrInvalid, c.Parallelism)
	}
	return nil
}

// Kind returns the solver kind of c. c must be valid.
func (c Config) Kind() krylov.Kind {
	kind, _ := krylov.ParseKind(c.Solver.Method)
	return kind
}
