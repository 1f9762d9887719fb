// Copyright ©2016 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package krylov provides Krylov subspace methods for solving linear
// systems
//  A x = b,
// where A is a square non-singular matrix.
//
// Two layers are provided. The lower layer is a reverse-communication
// framework: a Method (CG, BiCG, BiCGSTAB, CGS) commands the caller to perform
// operations like matrix-vector products, and LinearSolve drives any Method
// given the matrix as MatrixOps. The upper layer is the stateful
// CGSSolver that owns its work vectors, retains the solution between calls
// for warm starts, and reports input errors through an error code and an
// ErrorHandler instead of panicking. NewSolver returns any of the methods
// behind the common Solver interface.
package krylov

// Operation specifies the type of operation.
type Operation uint64

// Operations commanded by Method.Iterate.
const (
	NoOperation Operation = 0

	// Multiply A*x where x is stored
	// in Context.Src and the result will
	// be stored in Context.Dst.
	MatVec Operation = 1 << (iota - 1)

	// Multiply A^T*x where x is stored
	// in Context.Src and the result will
	// be stored in Context.Dst.
	MatTransVec

	// Do the preconditioner solve
	//  M z = r,
	// where r is stored in Context.Src,
	// and store the solution z in
	// Context.Dst.
	PSolve

	// Do the preconditioner solve
	//  M^T z = r,
	// where r is stored in Context.Src,
	// and store the solution z in
	// Context.Dst.
	PSolveTrans

	// Compute b - A*x where x is stored
	// in Context.X and store the result
	// into Context.Residual.
	ComputeResidual

	// Check convergence using the
	// current approximation in Context.X
	// and the residual norm in
	// Context.ResidualNorm. If
	// convergence is detected,
	// Context.Converged must be set to
	// true before calling Method.Iterate
	// again.
	CheckResidualNorm

	// EndIteration indicates that Method
	// has finished what it considers to
	// be one iteration. It can be used
	// to update an iteration counter. If
	// Context.Converged is true, the
	// iterative process must be
	// terminated, and Method.Init must
	// be called before calling
	// Method.Iterate again.
	EndIteration
)

// Method is an iterative method that produces a sequence of vectors converging
// to the vector x satisfying a system of linear equations
//  A x = b,
// where A is non-singular dim×dim matrix, and x and b are vectors of dimension
// dim.
//
// Method uses a reverse-communication interface between the iterative algorithm
// and the caller. Method acts as a client that commands the caller to perform
// needed operations via Operation returned from Iterate methods. This provides
// independence of Method on representation of the matrix A, and enables
// automation of common operations like checking for convergence and maintaining
// statistics.
type Method interface {
	// Init initializes the method for solving an dim×dim linear system.
	Init(dim int)

	// Iterate retrieves data from Context, updates it, and returns the next
	// operation. The caller must perform the Operation using data in
	// Context, and depending on the state call Iterate again.
	Iterate(*Context) (Operation, error)
}

// Context mediates the communication between a Method and the caller. It must
// not be modified or accessed apart from the commanded Operations.
type Context struct {
	// X is the current approximate solution. On the first call to
	// Method.Iterate, X must contain the initial estimate. Method must
	// update X with the current estimate when it commands ComputeResidual
	// and EndIteration.
	X []float64
	// Residual is the current residual b-A*x. On the first call to
	// Method.Iterate, Residual must contain the initial residual.
	Residual []float64
	// ResidualNorm is (an estimate of) the norm of the current residual.
	// Method must update it when it commands CheckResidualNorm.
	ResidualNorm float64
	// Converged indicates to Method that the ResidualNorm satisfies the
	// stopping criterion as a result of CheckResidualNorm operation.
	// If a Method commands EndIteration with Converged true, the caller
	// must not call Method.Iterate again without calling Method.Init first.
	Converged bool

	// Src and Dst are the source and destination vectors for various
	// Operations.
	Src, Dst []float64
}

// reuse returns v resliced to n if its capacity allows it, otherwise a new
// slice of length n.
func reuse(v []float64, n int) []float64 {
	if cap(v) < n {
		return make([]float64, n)
	}
	return v[:n]
}

// resize returns v if its length is exactly n, otherwise a new zeroed slice
// of length n.
func resize(v []float64, n int) []float64 {
	if len(v) == n {
		return v
	}
	return make([]float64, n)
}

const dlamchE = 1.0 / (1 << 53)
