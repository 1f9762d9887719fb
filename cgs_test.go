// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestCGS(t *testing.T) {
	t.Parallel()
	rnd := rand.New(rand.NewSource(1))
	for _, tc := range []testCase{
		randomSPD(1, rnd),
		randomSPD(2, rnd),
		randomSPD(3, rnd),
		randomSPD(5, rnd),
		randomSPD(10, rnd),
		randomSPD(20, rnd),
		randomSPD(50, rnd),
		randomSPD(100, rnd),
		randomSPD(200, rnd),
		randomNonsym(5, rnd),
		randomNonsym(20, rnd),
		randomNonsym(100, rnd),
	} {
		n := tc.n
		b, want := onesRHS(tc.a, n)

		r, err := LinearSolve(tc.a, b, &CGS{}, Settings{
			MaxIterations: 10 * tc.iters,
			Tolerance:     1e-12,
		})
		if err != nil {
			t.Errorf("Case %v (n=%v): unexpected error %v", tc.name, n, err)
			continue
		}
		dist := floats.Distance(r.X, want, math.Inf(1))
		if dist > tc.tol {
			t.Errorf("Case %v (n=%v): unexpected solution, |want-got|=%v", tc.name, n, dist)
		}
		// Every iteration does two products, the initial guess is zero.
		if r.Stats.MatVec != 2*r.Stats.Iterations {
			t.Errorf("Case %v (n=%v): %v products in %v iterations", tc.name, n, r.Stats.MatVec, r.Stats.Iterations)
		}
	}
}

func TestCGSIterationLimit(t *testing.T) {
	t.Parallel()
	a := spd4()
	r, err := LinearSolve(DenseOps(a), rhs4, &CGS{}, Settings{
		MaxIterations: 2,
		Tolerance:     1e-12,
	})
	if !errors.Is(err, ErrIterationLimit) {
		t.Fatalf("unexpected error %v", err)
	}
	if r.Stats.Iterations != 2 {
		t.Errorf("unexpected number of iterations %v", r.Stats.Iterations)
	}
}

func TestCGSBreakdown(t *testing.T) {
	t.Parallel()
	// A zero residual makes ρ zero in the first iteration.
	var m CGS
	m.Init(2)
	ctx := &Context{
		X:        []float64{1, 2},
		Residual: make([]float64, 2),
	}
	op, err := m.Iterate(ctx)
	if !errors.Is(err, ErrBreakdown) {
		t.Fatalf("unexpected result (%v, %v), want breakdown", op, err)
	}
	if ctx.X[0] != 1 || ctx.X[1] != 2 {
		t.Errorf("X modified on breakdown: %v", ctx.X)
	}
}

func TestCGSInitNotCalled(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	var m CGS
	m.Iterate(&Context{})
}
