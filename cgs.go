// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CGS implements the Conjugate Gradient Squared iterative method for solving
// the system of linear equations
//  Ax = b,
// where A is a general non-singular matrix. Unlike BiCG, CGS does not need
// products with A^T. Its convergence is often irregular and it may diverge
// where BiCG converges.
//
// CGS needs only the MatVec matrix operation. It does not use
// preconditioning.
//
// When the scalar ρ = r~·r falls to tiny in absolute value, Iterate returns
// an error wrapping ErrBreakdown and X holds the last computed approximation.
type CGS struct {
	first  bool
	resume int

	rho, rhoPrev float64
	alpha        float64

	// resid0 is the shadow residual r~, fixed at the start of the solve.
	resid0 []float64
	// resid is the residual storage handed out by CGSSolver as
	// Context.Residual. LinearSolve uses its own.
	resid []float64
	p, q  []float64
	u, v  []float64
}

// tiny is the breakdown threshold for ρ.
const tiny = dlamchE * dlamchE

// Init implements the Method interface.
func (c *CGS) Init(dim int) {
	if dim <= 0 {
		panic("krylov: dimension not positive")
	}
	c.alloc(dim)
	c.first = true
	c.resume = 1
}

// alloc makes all work vectors exactly dim long. Vectors that already have
// that length are kept.
func (c *CGS) alloc(dim int) {
	for _, w := range []*[]float64{&c.resid0, &c.resid, &c.p, &c.q, &c.u, &c.v} {
		*w = resize(*w, dim)
	}
}

// Iterate implements the Method interface.
func (c *CGS) Iterate(ctx *Context) (Operation, error) {
	switch c.resume {
	case 1:
		if c.first {
			copy(c.resid0, ctx.Residual)
		}
		c.rhoPrev = c.rho
		c.rho = floats.Dot(c.resid0, ctx.Residual) // ρ_i = r~ · r_{i-1}
		if math.Abs(c.rho) <= tiny {
			c.resume = 0
			return NoOperation, breakdown("rho")
		}
		if c.first {
			copy(c.u, ctx.Residual) // u_1 = r_0
			copy(c.p, c.u)          // p_1 = u_1
		} else {
			beta := c.rho / c.rhoPrev
			floats.AddScaledTo(c.u, ctx.Residual, beta, c.q) // u_i = r_{i-1} + β q_{i-1}
			floats.AddScaledTo(c.p, c.q, beta, c.p)          // p_i = u_i + β (q_{i-1} + β p_{i-1})
			floats.AddScaledTo(c.p, c.u, beta, c.p)
		}
		ctx.Src = c.p
		ctx.Dst = c.q
		c.resume = 2
		return MatVec, nil
		// Compute A p_i -> q.
	case 2:
		c.alpha = c.rho / floats.Dot(c.resid0, c.q) // α = ρ_i / (r~ · A p_i)
		floats.AddScaledTo(c.q, c.u, -c.alpha, c.q) // q_i = u_i - α A p_i
		floats.Add(c.u, c.q)                        // u_i + q_i
		floats.AddScaled(ctx.X, c.alpha, c.u)       // x_i = x_{i-1} + α (u_i + q_i)
		ctx.Src = c.u
		ctx.Dst = c.v
		c.resume = 3
		return MatVec, nil
		// Compute A (u_i + q_i) -> v.
	case 3:
		floats.AddScaled(ctx.Residual, -c.alpha, c.v) // r_i = r_{i-1} - α v
		ctx.Src = nil
		ctx.Dst = nil
		ctx.ResidualNorm = floats.Norm(ctx.Residual, 2)
		ctx.Converged = false
		c.resume = 4
		return CheckResidualNorm, nil
	case 4:
		if ctx.Converged {
			c.resume = 0 // Calling Iterate again without Init will panic.
			return EndIteration, nil
		}
		c.first = false
		c.resume = 1
		return EndIteration, nil

	default:
		panic("krylov: CGS.Init not called")
	}
}
