// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"io"
	"log/slog"
)

const (
	// DefaultTolerance is the default Tolerance of solvers.
	DefaultTolerance = 1e-6
	// DefaultMaxIterations is the default MaxIterations of solvers.
	DefaultMaxIterations = 30
)

// Option configures a solver created by NewCGSSolver, NewSolver or
// SolveCGS.
type Option func(*options)

type options struct {
	tolerance     float64
	maxIterations int
	logger        *slog.Logger
	handler       ErrorHandler
	diagnostics   io.Writer
	observer      Observer
}

func newOptions(opts []Option) options {
	o := options{
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
		observer:      nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.handler == nil {
		o.handler = logHandler(o.logger)
	}
	return o
}

// WithTolerance sets the stopping tolerance.
func WithTolerance(tol float64) Option {
	return func(o *options) { o.tolerance = tol }
}

// WithMaxIterations sets the iteration limit.
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// WithLogger sets the logger. Breakdowns and finished solves are logged at
// debug level. Without it, nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithErrorHandler sets the handler called on structural input errors. The
// default handler logs the error at warn level.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) { o.handler = h }
}

// WithDiagnostics sets the writer receiving one line per iteration.
func WithDiagnostics(w io.Writer) Option {
	return func(o *options) { o.diagnostics = w }
}

// WithObserver sets the observer receiving solve telemetry.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func logHandler(l *slog.Logger) ErrorHandler {
	return func(code ErrorCode, msg string) {
		l.Warn("krylov: invalid input", "code", code.String(), "error", msg)
	}
}
