// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"fmt"
	"io"
)

// Outcome classifies how a solve ended.
type Outcome int

const (
	// Converged means the residual norm satisfied the tolerance.
	Converged Outcome = iota
	// IterationLimit means the iteration limit was reached first.
	IterationLimit
	// Breakdown means the method stopped early on a breakdown.
	Breakdown
	// Diverged means the residual norm stopped being finite.
	Diverged
	// InputError means a structural input error was reported and no
	// iteration was done.
	InputError
)

func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case IterationLimit:
		return "iteration_limit"
	case Breakdown:
		return "breakdown"
	case Diverged:
		return "diverged"
	case InputError:
		return "input_error"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Observer receives telemetry from solvers. Implementations must be safe for
// concurrent use if they are shared between solvers running in different
// goroutines. See package metrics for a Prometheus implementation.
type Observer interface {
	// ObserveIteration is called at the end of every iteration.
	ObserveIteration(method string, iteration int, residualNorm float64)
	// ObserveSolve is called once at the end of every solve.
	ObserveSolve(method string, stats Stats, outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) ObserveIteration(string, int, float64) {}
func (nopObserver) ObserveSolve(string, Stats, Outcome) {}

type flusher interface {
	Flush() error
}

// traceIteration writes one diagnostics line to w and flushes it if w
// buffers. A nil w does nothing. The first write or flush error is returned.
func traceIteration(w io.Writer, iteration int, residualNorm float64) error {
	if w == nil {
		return nil
	}
	_, err := fmt.Fprintf(w, "iteration %d: residual norm %f\n", iteration, residualNorm)
	if f, ok := w.(flusher); ok {
		if ferr := f.Flush(); err == nil {
			err = ferr
		}
	}
	return err
}
