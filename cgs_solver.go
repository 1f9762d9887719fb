// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Operator computes the matrix-vector product A*src and stores it into dst.
// dst and src have the dimension of the system and do not overlap.
type Operator func(dst, src []float64)

// CGSSolver solves square linear systems
//  A x = b
// with the CGS method. It owns its work vectors and keeps the solution of the
// last solve, which is used as the initial guess of the next solve of the same
// dimension. Call ResetX for a solve from the zero vector.
//
// The iteration stops when the Euclidean norm of the residual b-A*x is at or
// below Tolerance, when MaxIterations iterations have been done, or when the
// method breaks down. A breakdown is not an error: the solve returns the last
// approximation and ErrorCode stays Ok. Judge the result by Stats.
//
// Structural input errors (non-square matrix, mismatched right-hand side,
// nil operator) are reported through ErrorCode, Err and the ErrorHandler.
// The solve then returns the retained solution unmodified.
//
// A CGSSolver must not be used by multiple goroutines simultaneously.
type CGSSolver struct {
	// Tolerance is the absolute tolerance on the residual norm.
	Tolerance float64
	// MaxIterations is the limit on the number of iterations.
	MaxIterations int

	a      *mat.Dense
	x      []float64
	method CGS

	stats Stats
	code  ErrorCode

	handler     ErrorHandler
	diagnostics io.Writer
	logger      *slog.Logger
	observer    Observer
}

// NewCGSSolver returns a CGSSolver bound to a copy of a. a may be nil or an
// empty matrix in which case only SolveWithMatrix and SolveWithOperator are
// useful.
func NewCGSSolver(a mat.Matrix, opts ...Option) *CGSSolver {
	o := newOptions(opts)
	s := &CGSSolver{
		Tolerance:     o.tolerance,
		MaxIterations: o.maxIterations,
		handler:       o.handler,
		diagnostics:   o.diagnostics,
		logger:        o.logger.With("method", KindCGS.String()),
		observer:      o.observer,
	}
	s.Initialize(a)
	return s
}

// Initialize binds the solver to a copy of a and sizes the work vectors to its
// dimension. A non-square a is reported as NotSquareMatrix and leaves the work
// vectors as they are.
func (s *CGSSolver) Initialize(a mat.Matrix) {
	s.code = Ok
	r, c := dims(a)
	if r == 0 || c == 0 {
		s.a = nil
		s.ensureCapacity(0)
		return
	}
	s.a = mat.DenseCopyOf(a)
	if r != c {
		s.fail(NotSquareMatrix, fmt.Sprintf("matrix is %d×%d", r, c))
		return
	}
	s.ensureCapacity(r)
}

// ensureCapacity makes x and all work vectors exactly size long. It keeps
// them, including the retained solution, when they already are.
func (s *CGSSolver) ensureCapacity(size int) {
	s.x = resize(s.x, size)
	s.method.alloc(size)
}

// SetTolerance sets the absolute tolerance on the residual norm.
func (s *CGSSolver) SetTolerance(tol float64) { s.Tolerance = tol }

// SetMaxIterations sets the limit on the number of iterations.
func (s *CGSSolver) SetMaxIterations(n int) { s.MaxIterations = n }

// SetDiagnostics sets the writer receiving one line per iteration. A nil w
// disables diagnostics.
func (s *CGSSolver) SetDiagnostics(w io.Writer) { s.diagnostics = w }

// SetErrorHandler sets the handler of structural input errors. A nil h
// restores the default handler.
func (s *CGSSolver) SetErrorHandler(h ErrorHandler) {
	if h == nil {
		h = logHandler(s.logger)
	}
	s.handler = h
}

// Iterations returns the number of iterations done by the last solve.
func (s *CGSSolver) Iterations() int { return s.stats.Iterations }

// Stats returns the statistics of the last solve.
func (s *CGSSolver) Stats() Stats { return s.stats }

// ErrorCode returns the structural error of the last operation, or Ok.
func (s *CGSSolver) ErrorCode() ErrorCode { return s.code }

// Err returns the sentinel error matching ErrorCode, or nil.
func (s *CGSSolver) Err() error { return s.code.Err() }

// X returns the retained solution. It is the slice returned by the solve
// methods and is overwritten by the next solve.
func (s *CGSSolver) X() []float64 { return s.x }

// ResetX sets the retained solution to the zero vector.
func (s *CGSSolver) ResetX() {
	for i := range s.x {
		s.x[i] = 0
	}
}

// Solve solves A x = b for the bound matrix A. len(b) must equal the
// dimension of A.
func (s *CGSSolver) Solve(b []float64) []float64 {
	s.code = Ok
	if s.a == nil {
		return s.x
	}
	if !s.check(s.a, b) {
		return s.x
	}
	s.ensureCapacity(len(b))
	return s.run(DenseOps(s.a).MatVec, b)
}

// SolveWithMatrix solves A x = b for a that is not kept by the solver. The
// work vectors are sized to the dimension of a.
func (s *CGSSolver) SolveWithMatrix(a mat.Matrix, b []float64) []float64 {
	s.code = Ok
	if r, c := dims(a); r == 0 || c == 0 {
		return s.x
	}
	if !s.check(a, b) {
		return s.x
	}
	n, _ := a.Dims()
	s.ensureCapacity(n)
	return s.run(matVec(a), b)
}

// SolveWithOperator solves A x = b where A is given by op. The dimension of
// the system is len(b). op is called once for the initial residual and twice
// in every iteration.
func (s *CGSSolver) SolveWithOperator(op Operator, b []float64) []float64 {
	s.code = Ok
	if op == nil {
		s.fail(NilOperator, "operator is nil")
		return s.x
	}
	s.ensureCapacity(len(b))
	if len(b) == 0 {
		return s.x
	}
	return s.run(op, b)
}

// check validates a and b and reports the first violation.
func (s *CGSSolver) check(a mat.Matrix, b []float64) bool {
	r, c := a.Dims()
	if r != c {
		s.fail(NotSquareMatrix, fmt.Sprintf("matrix is %d×%d", r, c))
		return false
	}
	if len(b) != r {
		s.fail(SizeMismatch, fmt.Sprintf("right-hand side has length %d, matrix is %d×%d", len(b), r, c))
		return false
	}
	return true
}

func (s *CGSSolver) fail(code ErrorCode, msg string) {
	s.code = code
	s.stats = Stats{StartTime: time.Now()}
	s.handler(code, msg)
	s.observer.ObserveSolve(KindCGS.String(), s.stats, InputError)
}

// run performs the CGS iteration for A given by apply, starting from the
// retained solution. The work vectors must have been sized to len(b).
func (s *CGSSolver) run(apply Operator, b []float64) []float64 {
	s.stats = Stats{StartTime: time.Now()}
	m := &s.method
	m.Init(len(b))

	ctx := &Context{
		X:        s.x,
		Residual: m.resid,
	}
	apply(ctx.Residual, ctx.X)
	s.stats.MatVec++
	floats.AddScaledTo(ctx.Residual, b, -1, ctx.Residual) // r = b - Ax
	s.stats.ResidualNorm = floats.Norm(ctx.Residual, 2)

	// The loop is entered at least once unless Tolerance >= 1.
	ctx.ResidualNorm = 1
	outcome := IterationLimit
	var traceErr error
loop:
	for s.stats.Iterations < s.MaxIterations && ctx.ResidualNorm > s.Tolerance {
		for {
			op, err := m.Iterate(ctx)
			if err != nil {
				s.logger.Debug("breakdown", "iteration", s.stats.Iterations, "error", err)
				outcome = Breakdown
				break loop
			}
			switch op {
			case MatVec:
				apply(ctx.Dst, ctx.Src)
				s.stats.MatVec++
				continue
			case CheckResidualNorm:
				ctx.Converged = ctx.ResidualNorm <= s.Tolerance
				continue
			case EndIteration:
			default:
				panic("krylov: invalid operation")
			}
			break
		}
		if err := traceIteration(s.diagnostics, s.stats.Iterations, ctx.ResidualNorm); err != nil && traceErr == nil {
			traceErr = err
			s.logger.Debug("diagnostics write failed", "error", err)
		}
		s.observer.ObserveIteration(KindCGS.String(), s.stats.Iterations, ctx.ResidualNorm)
		s.stats.ResidualNorm = ctx.ResidualNorm
		s.stats.Iterations++
	}
	if outcome != Breakdown {
		switch {
		case math.IsNaN(ctx.ResidualNorm) || math.IsInf(ctx.ResidualNorm, 0):
			outcome = Diverged
		case ctx.ResidualNorm <= s.Tolerance:
			outcome = Converged
		}
	}

	s.stats.Runtime = time.Since(s.stats.StartTime)
	s.logger.Debug("solve finished",
		"dimension", len(b),
		"iterations", s.stats.Iterations,
		"residual_norm", s.stats.ResidualNorm,
		"outcome", outcome.String(),
	)
	s.observer.ObserveSolve(KindCGS.String(), s.stats, outcome)
	return s.x
}

// dims returns the dimensions of a, treating nil as empty.
func dims(a mat.Matrix) (r, c int) {
	if a == nil {
		return 0, 0
	}
	if d, ok := a.(*mat.Dense); ok && (d == nil || d.IsEmpty()) {
		return 0, 0
	}
	return a.Dims()
}

// matVec returns the product with a as an Operator.
func matVec(a mat.Matrix) Operator {
	if d, ok := a.(*mat.Dense); ok {
		return DenseOps(d).MatVec
	}
	return func(dst, src []float64) {
		mat.NewVecDense(len(dst), dst).MulVec(a, mat.NewVecDense(len(src), src))
	}
}
