// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"time"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MatrixOps describes the matrix of the
// linear system in terms of A*x and A^T*x
// operations.
type MatrixOps struct {
	// Compute A*x and store the result
	// into dst.
	// It must be non-nil.
	MatVec func(dst, x []float64)

	// Compute A^T*x and store the result
	// into dst.
	// If the matrix is symmetric and a
	// solver for symmetric systems is
	// used (like CG), MatTransVec can be
	// nil.
	MatTransVec func(dst, x []float64)
}

// DenseOps returns the matrix operations of the dense matrix a computed with
// BLAS Gemv. a must be square.
func DenseOps(a *mat.Dense) MatrixOps {
	raw := a.RawMatrix()
	if raw.Rows != raw.Cols {
		panic(ErrNotSquare.Error())
	}
	gemv := func(t blas.Transpose) func(dst, x []float64) {
		return func(dst, x []float64) {
			blas64.Gemv(t, 1, raw,
				blas64.Vector{N: len(x), Data: x, Inc: 1},
				0, blas64.Vector{N: len(dst), Data: dst, Inc: 1})
		}
	}
	return MatrixOps{
		MatVec:      gemv(blas.NoTrans),
		MatTransVec: gemv(blas.Trans),
	}
}

// Settings holds various settings for
// solving a linear system.
type Settings struct {
	// X0 is an initial guess.
	// If it is nil, the zero vector will
	// be used.
	// If it is not nil, the length of X0
	// must be equal to the dimension of
	// the system.
	X0 []float64

	// Tolerance specifies error
	// tolerance for the final
	// approximate solution produced by
	// the iterative method. The
	// stopping criterion is
	//  |r_i| < Tolerance * |b|.
	// Tolerance must be smaller than one
	// and greater than the machine
	// epsilon.
	Tolerance float64

	// MaxIterations is the limit on the
	// number of iterations.
	// If it is zero, it will be set to
	// twice the dimension of the system.
	MaxIterations int

	// PSolve describes the
	// preconditioner solve that stores
	// into dst the solution of the
	// system
	//  M z = rhs.
	// If it is nil, no preconditioning
	// will be used (M is the
	// identity).
	PSolve func(dst, rhs []float64) error

	// PSolveTrans describes the
	// preconditioner solve that stores
	// into dst the solution of the
	// system
	//  M^T z = rhs.
	// If it is nil, no preconditioning
	// will be used.
	PSolveTrans func(dst, rhs []float64) error

	// Trace, if not nil, is called at
	// the end of every iteration with
	// the zero-based iteration index and
	// the current residual norm.
	Trace func(iteration int, residualNorm float64)
}

func defaultSettings(s *Settings, dim int) {
	if s.Tolerance == 0 {
		s.Tolerance = 1e-6
	}
	if s.MaxIterations == 0 {
		s.MaxIterations = 2 * dim
	}
}

// Result holds the result of an iterative solve.
type Result struct {
	// X is the approximate solution.
	X []float64
	// Stats holds the statistics of the
	// solve.
	Stats Stats
}

// Stats holds statistics about an iterative solve.
type Stats struct {
	// Iterations is the number of
	// iteration done by Method.
	Iterations int
	// MatVec is the number of MatVec and
	// MatTransVec operations commanded
	// by a Method.
	MatVec int
	// PSolve is the number of PSolve and
	// PSolveTrans operations commanded
	// by a Method.
	PSolve int
	// ResidualNorm is the final norm of
	// the residual.
	ResidualNorm float64
	// StartTime is an approximate time
	// when the solve was started.
	StartTime time.Time
	// Runtime is an approximate duration
	// of the solve.
	Runtime time.Duration
}

// LinearSolve solves the system of n linear equations
//  A*x = b,
// where the n×n matrix A is represented by the matrix-vector operations in a.
// The dimension of the problem n is determined by the length of b.
//
// method is an iterative method used for finding an approximate solution of the
// linear system. It must not be nil. The operations in a must provide what the
// method needs.
//
// settings provide means for adjusting the iterative process. Zero values of
// the fields mean default values.
//
// If the iteration limit is reached, the returned error is ErrIterationLimit
// and Result holds the last approximation. A breakdown of method is returned
// as an error wrapping ErrBreakdown.
func LinearSolve(a MatrixOps, b []float64, method Method, settings Settings) (Result, error) {
	stats := Stats{StartTime: time.Now()}

	dim := len(b)
	if a.MatVec == nil {
		panic("krylov: nil matrix-vector multiplication")
	}
	if settings.X0 != nil && len(settings.X0) != dim {
		panic("krylov: mismatched length of initial guess")
	}

	if dim == 0 {
		return Result{Stats: stats}, nil
	}

	defaultSettings(&settings, dim)
	if settings.Tolerance < dlamchE || 1 <= settings.Tolerance {
		panic("krylov: invalid tolerance")
	}

	ctx := &Context{
		X:        make([]float64, dim),
		Residual: make([]float64, dim),
	}
	if settings.X0 != nil {
		copy(ctx.X, settings.X0)
		a.MatVec(ctx.Residual, ctx.X)
		stats.MatVec++
		floats.AddScaledTo(ctx.Residual, b, -1, ctx.Residual) // r = b - Ax
	} else {
		copy(ctx.Residual, b) // r = b
	}

	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		bnorm = 1
	}
	ctx.ResidualNorm = floats.Norm(ctx.Residual, 2)
	stats.ResidualNorm = ctx.ResidualNorm
	var err error
	if ctx.ResidualNorm/bnorm >= settings.Tolerance {
		err = iterate(a, b, bnorm, ctx, settings, method, &stats)
	}

	stats.Runtime = time.Since(stats.StartTime)
	return Result{
		X:     ctx.X,
		Stats: stats,
	}, err
}

func iterate(a MatrixOps, b []float64, bnorm float64, ctx *Context, settings Settings, method Method, stats *Stats) error {
	method.Init(len(ctx.X))

	for {
		op, err := method.Iterate(ctx)
		if err != nil {
			return err
		}

		switch op {
		case NoOperation:

		case ComputeResidual:
			a.MatVec(ctx.Residual, ctx.X)
			stats.MatVec++
			floats.AddScaledTo(ctx.Residual, b, -1, ctx.Residual)

		case MatVec, MatTransVec:
			if op == MatVec {
				a.MatVec(ctx.Dst, ctx.Src)
			} else {
				if a.MatTransVec == nil {
					panic("krylov: nil transposed matrix-vector multiplication")
				}
				a.MatTransVec(ctx.Dst, ctx.Src)
			}
			stats.MatVec++

		case PSolve, PSolveTrans:
			psolve := settings.PSolve
			if op == PSolveTrans {
				psolve = settings.PSolveTrans
			}
			if psolve == nil {
				copy(ctx.Dst, ctx.Src)
				continue
			}
			if err = psolve(ctx.Dst, ctx.Src); err != nil {
				return err
			}
			stats.PSolve++

		case CheckResidualNorm:
			ctx.Converged = ctx.ResidualNorm/bnorm < settings.Tolerance

		case EndIteration:
			if settings.Trace != nil {
				settings.Trace(stats.Iterations, ctx.ResidualNorm)
			}
			stats.Iterations++
			stats.ResidualNorm = ctx.ResidualNorm
			if ctx.Converged {
				return nil
			}
			if stats.Iterations == settings.MaxIterations {
				return ErrIterationLimit
			}

		default:
			panic("krylov: invalid operation")
		}
	}
}
