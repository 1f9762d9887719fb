// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// BiCG implements the biconjugate gradient iterative method with
// preconditioning for solving the system of linear equations
//  Ax = b,
// where A is a non-symmetric matrix. For symmetric positive definite systems
// use CG. CGS squares the BiCG residual polynomial and so avoids the product
// with the transpose.
//
// BiCG needs MatVec, MatTransVec, PSolve, and PSolveTrans matrix operations.
type BiCG struct {
	first  bool
	resume int

	rho, rhoPrev float64
	alpha        float64

	rt    []float64 // Shadow residual.
	z, zt []float64 // Preconditioned residuals, then q = A p and qt = A^T pt.
	p, pt []float64
}

// Init implements the Method interface.
func (b *BiCG) Init(dim int) {
	if dim <= 0 {
		panic("krylov: dimension not positive")
	}

	for _, w := range []*[]float64{&b.rt, &b.z, &b.zt, &b.p, &b.pt} {
		*w = reuse(*w, dim)
	}
	b.first = true
	b.resume = 1
}

// Iterate implements the Method interface.
func (b *BiCG) Iterate(ctx *Context) (Operation, error) {
	switch b.resume {
	case 1:
		if b.first {
			copy(b.rt, ctx.Residual)
		}
		ctx.Src = ctx.Residual
		ctx.Dst = b.z
		b.resume = 2
		return PSolve, nil
		// Solve M z = r_{i-1}.
	case 2:
		ctx.Src = b.rt
		ctx.Dst = b.zt
		b.resume = 3
		return PSolveTrans, nil
		// Solve M^T zt = rt_{i-1}.
	case 3:
		b.rho = floats.Dot(b.z, b.rt)
		if math.Abs(b.rho) <= tiny {
			b.resume = 0
			return NoOperation, breakdown("rho")
		}
		if b.first {
			copy(b.p, b.z)
			copy(b.pt, b.zt)
		} else {
			beta := b.rho / b.rhoPrev
			floats.AddScaledTo(b.p, b.z, beta, b.p)    // p = z + β p
			floats.AddScaledTo(b.pt, b.zt, beta, b.pt) // pt = zt + β pt
		}
		ctx.Src = b.p
		ctx.Dst = b.z
		b.resume = 4
		return MatVec, nil
		// q = A p.
	case 4:
		ctx.Src = b.pt
		ctx.Dst = b.zt
		b.resume = 5
		return MatTransVec, nil
		// qt = A^T pt.
	case 5:
		ptq := floats.Dot(b.pt, b.z)
		if ptq == 0 {
			b.resume = 0
			return NoOperation, breakdown("pt·q")
		}
		b.alpha = b.rho / ptq
		floats.AddScaled(ctx.X, b.alpha, b.p)
		floats.AddScaled(ctx.Residual, -b.alpha, b.z)
		ctx.Src = nil
		ctx.Dst = nil
		ctx.ResidualNorm = floats.Norm(ctx.Residual, 2)
		ctx.Converged = false
		b.resume = 6
		return CheckResidualNorm, nil
	case 6:
		if ctx.Converged {
			b.resume = 0
			return EndIteration, nil
		}
		floats.AddScaled(b.rt, -b.alpha, b.zt)
		b.rhoPrev = b.rho
		b.first = false
		b.resume = 1
		return EndIteration, nil

	default:
		panic("krylov: BiCG.Init not called")
	}
}
