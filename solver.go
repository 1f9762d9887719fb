// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Solver is the common interface of the stateful solvers returned by
// NewSolver. A Solver is bound to a matrix and keeps the solution of the last
// solve as the initial guess of the next one.
type Solver interface {
	// SetTolerance sets the stopping tolerance.
	SetTolerance(tol float64)
	// SetMaxIterations sets the limit on the number of iterations.
	SetMaxIterations(n int)
	// Solve solves the system for b and returns the solution.
	Solve(b []float64) []float64
	// Iterations returns the number of iterations done by the last solve.
	Iterations() int
	// ErrorCode returns the structural error of the last operation.
	ErrorCode() ErrorCode
	// Err returns the error of the last operation, or nil.
	Err() error
}

var (
	_ Solver = (*CGSSolver)(nil)
	_ Solver = (*MethodSolver)(nil)
)

// Kind names an iterative method.
type Kind int

const (
	KindCGS Kind = iota
	KindCG
	KindBiCGSTAB
	KindBiCG
)

var kindNames = [...]string{
	KindCGS:      "cgs",
	KindCG:       "cg",
	KindBiCGSTAB: "bicgstab",
	KindBiCG:     "bicg",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind returns the Kind named s, ignoring case.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// NewSolver returns a Solver of the given kind bound to a copy of a.
func NewSolver(kind Kind, a mat.Matrix, opts ...Option) (Solver, error) {
	switch kind {
	case KindCGS:
		return NewCGSSolver(a, opts...), nil
	case KindCG:
		return newMethodSolver(kind, &CG{}, a, opts), nil
	case KindBiCGSTAB:
		return newMethodSolver(kind, &BiCGSTAB{}, a, opts), nil
	case KindBiCG:
		return newMethodSolver(kind, &BiCG{}, a, opts), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
}

// SolveCGS solves A x = b with a transient CGSSolver starting from the zero
// vector. Use a CGSSolver directly for repeated solves.
func SolveCGS(a mat.Matrix, b []float64, opts ...Option) []float64 {
	return NewCGSSolver(a, opts...).Solve(b)
}

// MethodSolver adapts a Method to the Solver interface by running it with
// LinearSolve on the bound matrix. Unlike CGSSolver, its stopping criterion
// is relative to the norm of b, and reaching the iteration limit or a
// breakdown is returned by Err.
type MethodSolver struct {
	kind   Kind
	method Method

	settings Settings
	a        *mat.Dense
	x        []float64

	stats Stats
	code  ErrorCode
	err   error

	handler     ErrorHandler
	diagnostics io.Writer
	logger      *slog.Logger
	observer    Observer
}

func newMethodSolver(kind Kind, method Method, a mat.Matrix, opts []Option) *MethodSolver {
	o := newOptions(opts)
	s := &MethodSolver{
		kind:   kind,
		method: method,
		settings: Settings{
			Tolerance:     o.tolerance,
			MaxIterations: o.maxIterations,
		},
		handler:     o.handler,
		diagnostics: o.diagnostics,
		logger:      o.logger.With("method", kind.String()),
		observer:    o.observer,
	}
	if r, c := dims(a); r > 0 && c > 0 {
		s.a = mat.DenseCopyOf(a)
		if r == c {
			s.x = make([]float64, r)
		}
	}
	return s
}

// SetTolerance sets the relative tolerance. Values below the machine epsilon
// are raised to it and values of one or more are lowered to just below one.
func (s *MethodSolver) SetTolerance(tol float64) { s.settings.Tolerance = tol }

// SetMaxIterations sets the limit on the number of iterations. With n <= 0
// a solve does no iterations and returns the retained solution.
func (s *MethodSolver) SetMaxIterations(n int) { s.settings.MaxIterations = n }

// Iterations returns the number of iterations done by the last solve.
func (s *MethodSolver) Iterations() int { return s.stats.Iterations }

// Stats returns the statistics of the last solve.
func (s *MethodSolver) Stats() Stats { return s.stats }

// ErrorCode returns the structural error of the last operation, or Ok.
func (s *MethodSolver) ErrorCode() ErrorCode { return s.code }

// Err returns the structural error of the last operation if there is one,
// otherwise the error returned by LinearSolve.
func (s *MethodSolver) Err() error {
	if s.code != Ok {
		return s.code.Err()
	}
	return s.err
}

// ResetX sets the retained solution to the zero vector.
func (s *MethodSolver) ResetX() {
	for i := range s.x {
		s.x[i] = 0
	}
}

// Solve solves A x = b for the bound matrix A.
func (s *MethodSolver) Solve(b []float64) []float64 {
	s.code = Ok
	s.err = nil
	if s.a == nil {
		return s.x
	}
	r, c := s.a.Dims()
	switch {
	case r != c:
		s.fail(NotSquareMatrix, fmt.Sprintf("matrix is %d×%d", r, c))
		return s.x
	case len(b) != r:
		s.fail(SizeMismatch, fmt.Sprintf("right-hand side has length %d, matrix is %d×%d", len(b), r, c))
		return s.x
	}
	s.x = resize(s.x, r)
	return s.run(DenseOps(s.a), b)
}

// SolveWithOperator solves A x = b where A is given by ops. The dimension of
// the system is len(b). Only BiCG needs ops.MatTransVec.
func (s *MethodSolver) SolveWithOperator(ops MatrixOps, b []float64) []float64 {
	s.code = Ok
	s.err = nil
	if ops.MatVec == nil {
		s.fail(NilOperator, "operator is nil")
		return s.x
	}
	if _, ok := s.method.(*BiCG); ok && ops.MatTransVec == nil {
		s.fail(NilOperator, "transposed operator is nil")
		return s.x
	}
	s.x = resize(s.x, len(b))
	if len(b) == 0 {
		return s.x
	}
	return s.run(ops, b)
}

// run solves from the retained solution, which must have length len(b).
func (s *MethodSolver) run(ops MatrixOps, b []float64) []float64 {
	if s.settings.MaxIterations <= 0 {
		return s.skip(ops, b)
	}

	settings := s.settings
	settings.Tolerance = clampTolerance(settings.Tolerance)
	settings.X0 = s.x
	var traceErr error
	settings.Trace = func(iteration int, residualNorm float64) {
		if err := traceIteration(s.diagnostics, iteration, residualNorm); err != nil && traceErr == nil {
			traceErr = err
			s.logger.Debug("diagnostics write failed", "error", err)
		}
		s.observer.ObserveIteration(s.kind.String(), iteration, residualNorm)
	}
	res, err := LinearSolve(ops, b, s.method, settings)
	copy(s.x, res.X)
	s.stats = res.Stats
	s.err = err

	outcome := Converged
	switch {
	case errors.Is(err, ErrIterationLimit):
		outcome = IterationLimit
	case errors.Is(err, ErrBreakdown):
		outcome = Breakdown
	case err != nil:
		outcome = Diverged
	}
	s.finish(len(b), outcome)
	return s.x
}

// skip ends a solve with a non-positive iteration limit. x is left as it is
// and only its residual norm is computed.
func (s *MethodSolver) skip(ops MatrixOps, b []float64) []float64 {
	s.stats = Stats{StartTime: time.Now()}
	r := make([]float64, len(b))
	ops.MatVec(r, s.x)
	s.stats.MatVec++
	floats.AddScaledTo(r, b, -1, r) // r = b - Ax
	s.stats.ResidualNorm = floats.Norm(r, 2)
	s.stats.Runtime = time.Since(s.stats.StartTime)
	s.err = ErrIterationLimit
	s.finish(len(b), IterationLimit)
	return s.x
}

func (s *MethodSolver) finish(dim int, outcome Outcome) {
	s.logger.Debug("solve finished",
		"dimension", dim,
		"iterations", s.stats.Iterations,
		"residual_norm", s.stats.ResidualNorm,
		"outcome", outcome.String(),
	)
	s.observer.ObserveSolve(s.kind.String(), s.stats, outcome)
}

// clampTolerance maps tol into the range accepted by LinearSolve.
func clampTolerance(tol float64) float64 {
	switch {
	case !(tol >= dlamchE): // Also NaN.
		return dlamchE
	case tol >= 1:
		return math.Nextafter(1, 0)
	}
	return tol
}

func (s *MethodSolver) fail(code ErrorCode, msg string) {
	s.code = code
	s.stats = Stats{StartTime: time.Now()}
	s.handler(code, msg)
	s.observer.ObserveSolve(s.kind.String(), s.stats, InputError)
}
