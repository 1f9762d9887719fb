// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// BiCGSTAB implements the BiConjugate Gradient STABilized iterative method with
// preconditioning for solving the system of linear equations
//  Ax = b,
// where A is a non-symmetric matrix. For symmetric positive definite systems
// use CG. Unlike CGS, the residual of BiCGSTAB is smoothed by a local
// minimization step in every iteration.
//
// BiCGSTAB needs MatVec and PSolve matrix operations.
type BiCGSTAB struct {
	first  bool
	resume int

	rho, rhoPrev float64
	alpha        float64
	omega        float64

	rt   []float64
	p    []float64
	v    []float64
	t    []float64
	phat []float64
	s    []float64
	shat []float64
}

// Init implements the Method interface.
func (b *BiCGSTAB) Init(dim int) {
	if dim <= 0 {
		panic("krylov: dimension not positive")
	}

	for _, w := range []*[]float64{&b.rt, &b.p, &b.v, &b.t, &b.phat, &b.s, &b.shat} {
		*w = reuse(*w, dim)
	}
	b.first = true
	b.resume = 1
}

// Iterate implements the Method interface.
func (b *BiCGSTAB) Iterate(ctx *Context) (Operation, error) {
	const tiny = dlamchE * dlamchE

	switch b.resume {
	case 1:
		if b.first {
			copy(b.rt, ctx.Residual)
		}
		b.rho = floats.Dot(b.rt, ctx.Residual)
		if math.Abs(b.rho) < tiny {
			b.resume = 0
			return NoOperation, breakdown("rho")
		}
		if b.first {
			copy(b.p, ctx.Residual)
		} else {
			beta := (b.rho / b.rhoPrev) * (b.alpha / b.omega)
			floats.AddScaled(b.p, -b.omega, b.v)             // p_i -= ω v_i
			floats.AddScaledTo(b.p, ctx.Residual, beta, b.p) // p_i = r_i + β p_i
		}
		ctx.Src = b.p
		ctx.Dst = b.phat
		b.resume = 2
		return PSolve, nil
		// Solve M p^_i = p_i.
	case 2:
		ctx.Src = b.phat
		ctx.Dst = b.v
		b.resume = 3
		return MatVec, nil
		// Compute A p^_i -> v_i.
	case 3:
		b.alpha = b.rho / floats.Dot(b.rt, b.v)
		// Early check for tolerance with the half-step residual s.
		floats.AddScaled(ctx.Residual, -b.alpha, b.v)
		copy(b.s, ctx.Residual)
		ctx.Src = nil
		ctx.Dst = nil
		ctx.ResidualNorm = floats.Norm(ctx.Residual, 2)
		ctx.Converged = false
		b.resume = 4
		return CheckResidualNorm, nil
	case 4:
		if ctx.Converged {
			floats.AddScaled(ctx.X, b.alpha, b.phat)
			b.resume = 0
			return EndIteration, nil
		}
		ctx.Src = ctx.Residual
		ctx.Dst = b.shat
		b.resume = 5
		return PSolve, nil
		// Solve M s^_i = s_i.
	case 5:
		ctx.Src = b.shat
		ctx.Dst = b.t
		b.resume = 6
		return MatVec, nil
		// Compute A s^_i -> t_i.
	case 6:
		b.omega = floats.Dot(b.t, b.s) / floats.Dot(b.t, b.t)
		floats.AddScaled(ctx.X, b.alpha, b.phat)
		floats.AddScaled(ctx.X, b.omega, b.shat)
		floats.AddScaled(ctx.Residual, -b.omega, b.t)
		ctx.Src = nil
		ctx.Dst = nil
		ctx.ResidualNorm = floats.Norm(ctx.Residual, 2)
		ctx.Converged = false
		b.resume = 7
		return CheckResidualNorm, nil
	case 7:
		if ctx.Converged {
			b.resume = 0
			return EndIteration, nil
		}
		if math.Abs(b.omega) < tiny {
			b.resume = 0
			return NoOperation, breakdown("omega")
		}
		b.rhoPrev = b.rho
		b.first = false
		b.resume = 1
		return EndIteration, nil

	default:
		panic("krylov: BiCGSTAB.Init not called")
	}
}
