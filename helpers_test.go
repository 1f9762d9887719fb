// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

type testCase struct {
	name  string
	n     int
	iters int
	tol   float64
	dense *mat.Dense
	a     MatrixOps
}

// randomSPD returns a test case with a random symmetric diagonally dominant
// matrix with positive diagonal, so it is positive definite.
func randomSPD(n int, rnd *rand.Rand) testCase {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := rnd.Float64()
			a.Set(i, j, v)
			a.Set(j, i, v)
		}
		a.Set(i, i, a.At(i, i)+float64(n))
	}
	return testCase{
		name:  fmt.Sprintf("randomSPD%d", n),
		n:     n,
		iters: 2 * n,
		tol:   1e-8,
		dense: a,
		a:     DenseOps(a),
	}
}

// randomNonsym returns a test case with a random non-symmetric diagonally
// dominant matrix.
func randomNonsym(n int, rnd *rand.Rand) testCase {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, rnd.Float64()-0.5)
		}
		a.Set(i, i, a.At(i, i)+float64(n))
	}
	return testCase{
		name:  fmt.Sprintf("randomNonsym%d", n),
		n:     n,
		iters: 2 * n,
		tol:   1e-8,
		dense: a,
		a:     DenseOps(a),
	}
}

// spd4 is a symmetric positive definite 4×4 matrix whose system with
// rhs4 has the solution [61/21, -205/63, 236/63, 65/21].
func spd4() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		5, -1, -2, -3,
		-1, 5, 4, 2,
		-2, 4, 5, 1,
		-3, 2, 1, 5,
	})
}

var rhs4 = []float64{1, 2, 3, 4}

// onesRHS returns b such that the vector [1,1,...,1] is the solution of the
// system with a.
func onesRHS(a MatrixOps, n int) (b, want []float64) {
	want = make([]float64, n)
	for i := range want {
		want[i] = 1
	}
	b = make([]float64, n)
	a.MatVec(b, want)
	return b, want
}
