// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestParseKind(t *testing.T) {
	t.Parallel()
	for _, k := range []Kind{KindCGS, KindCG, KindBiCGSTAB, KindBiCG} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKind("BiCGStab")
	require.NoError(t, err)
	assert.Equal(t, KindBiCGSTAB, got)

	_, err = ParseKind("gmres")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "kind(7)", Kind(7).String())
}

func TestNewSolver(t *testing.T) {
	t.Parallel()
	a := spd4()
	for _, kind := range []Kind{KindCGS, KindCG, KindBiCGSTAB, KindBiCG} {
		rec := &recorder{}
		s, err := NewSolver(kind, a, WithObserver(rec))
		require.NoError(t, err, kind)

		s.SetTolerance(1e-10)
		s.SetMaxIterations(50)
		x := s.Solve(rhs4)
		require.NoError(t, s.Err(), kind)
		assert.Equal(t, Ok, s.ErrorCode(), kind)
		assert.Less(t, relResidual(a, x, rhs4), 1e-12, kind)
		assert.Positive(t, s.Iterations(), kind)
		assert.LessOrEqual(t, s.Iterations(), 50, kind)
		assert.Len(t, rec.norms, s.Iterations(), kind)
		assert.Equal(t, []Outcome{Converged}, rec.outcomes, kind)
	}

	_, err := NewSolver(Kind(42), a)
	assert.ErrorIs(t, err, ErrUnknownKind)

	s, err := NewSolver(KindCGS, a)
	require.NoError(t, err)
	assert.IsType(t, &CGSSolver{}, s)
}

func TestMethodSolver(t *testing.T) {
	t.Parallel()
	a := spd4()

	t.Run("iteration limit", func(t *testing.T) {
		s, err := NewSolver(KindCG, a, WithMaxIterations(1), WithTolerance(1e-12))
		require.NoError(t, err)
		x := s.Solve(rhs4)
		assert.Len(t, x, 4)
		assert.Equal(t, Ok, s.ErrorCode())
		assert.True(t, errors.Is(s.Err(), ErrIterationLimit))
		assert.Equal(t, 1, s.Iterations())
	})

	t.Run("warm start", func(t *testing.T) {
		s, err := NewSolver(KindBiCGSTAB, a)
		require.NoError(t, err)
		s.Solve(rhs4)
		require.NoError(t, s.Err())
		cold := s.Iterations()
		s.Solve(rhs4)
		require.NoError(t, s.Err())
		assert.Less(t, s.Iterations(), cold)

		ms := s.(*MethodSolver)
		ms.ResetX()
		s.Solve(rhs4)
		assert.Equal(t, cold, s.Iterations())
		assert.Equal(t, cold, ms.Stats().Iterations)
	})

	t.Run("structural errors", func(t *testing.T) {
		var codes []ErrorCode
		handler := WithErrorHandler(func(code ErrorCode, _ string) { codes = append(codes, code) })

		s, err := NewSolver(KindCG, a, handler)
		require.NoError(t, err)
		s.Solve([]float64{1, 2})
		assert.Equal(t, SizeMismatch, s.ErrorCode())
		assert.ErrorIs(t, s.Err(), ErrSizeMismatch)

		s, err = NewSolver(KindCG, mat.NewDense(2, 3, nil), handler)
		require.NoError(t, err)
		assert.Nil(t, s.Solve([]float64{1, 2}))
		assert.Equal(t, NotSquareMatrix, s.ErrorCode())
		assert.ErrorIs(t, s.Err(), ErrNotSquare)

		assert.Equal(t, []ErrorCode{SizeMismatch, NotSquareMatrix}, codes)
	})

	t.Run("diagnostics", func(t *testing.T) {
		var buf bytes.Buffer
		s, err := NewSolver(KindCG, a, WithDiagnostics(&buf))
		require.NoError(t, err)
		s.Solve(rhs4)
		assert.Equal(t, s.Iterations(), bytes.Count(buf.Bytes(), []byte("\n")))
		assert.Contains(t, buf.String(), "iteration 0: residual norm ")
	})
}

func TestSolveCGS(t *testing.T) {
	t.Parallel()
	a := spd4()
	x := SolveCGS(a, rhs4)
	assert.Less(t, relResidual(a, x, rhs4), 1e-6)

	var code ErrorCode
	x = SolveCGS(a, []float64{1, 2}, WithErrorHandler(func(c ErrorCode, _ string) { code = c }))
	assert.Equal(t, SizeMismatch, code)
	assert.Equal(t, []float64{0, 0, 0, 0}, x, "x keeps the matrix dimension")
}

func TestErrorCode(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Ok.Err())
	assert.Equal(t, "Ok", Ok.String())
	for code, want := range map[ErrorCode]error{
		NotSquareMatrix: ErrNotSquare,
		SizeMismatch:    ErrSizeMismatch,
		NilOperator:     ErrNilOperator,
	} {
		assert.ErrorIs(t, code.Err(), want)
		assert.NotEmpty(t, code.String())
	}
	assert.Error(t, ErrorCode(9).Err())
	assert.Equal(t, "ErrorCode(9)", ErrorCode(9).String())
}

var methodKinds = []Kind{KindCG, KindBiCGSTAB, KindBiCG}

func TestMethodSolverTolerance(t *testing.T) {
	t.Parallel()
	a := spd4()
	for _, kind := range methodKinds {
		for _, tol := range []float64{1e-20, 0, -1, math.NaN(), 1, 2} {
			s, err := NewSolver(kind, a)
			require.NoError(t, err)
			s.SetTolerance(tol)
			var x []float64
			require.NotPanics(t, func() { x = s.Solve(rhs4) }, "%v tol=%v", kind, tol)
			assert.Len(t, x, 4)
			assert.Equal(t, Ok, s.ErrorCode(), "%v tol=%v", kind, tol)
			assert.LessOrEqual(t, s.Iterations(), DefaultMaxIterations, "%v tol=%v", kind, tol)
		}
	}
}

func TestSolverIterationBound(t *testing.T) {
	t.Parallel()
	a := spd4()
	for _, kind := range []Kind{KindCGS, KindCG, KindBiCGSTAB, KindBiCG} {
		for _, maxIter := range []int{-1, 0} {
			rec := &recorder{}
			s, err := NewSolver(kind, a, WithObserver(rec), WithTolerance(1e-12))
			require.NoError(t, err)
			s.SetMaxIterations(maxIter)
			x := s.Solve(rhs4)
			assert.Equal(t, 0, s.Iterations(), "%v max=%d", kind, maxIter)
			assert.Equal(t, []float64{0, 0, 0, 0}, x, "%v max=%d", kind, maxIter)
			assert.Empty(t, rec.norms, "%v max=%d", kind, maxIter)
			assert.Equal(t, []Outcome{IterationLimit}, rec.outcomes, "%v max=%d", kind, maxIter)
		}

		for _, maxIter := range []int{1, 2} {
			s, err := NewSolver(kind, a, WithTolerance(1e-12))
			require.NoError(t, err)
			s.SetMaxIterations(maxIter)
			s.Solve(rhs4)
			assert.Positive(t, s.Iterations(), "%v max=%d", kind, maxIter)
			assert.LessOrEqual(t, s.Iterations(), maxIter, "%v max=%d", kind, maxIter)
		}

		// A zero limit keeps the retained solution.
		s, err := NewSolver(kind, a)
		require.NoError(t, err)
		want := copyOf(s.Solve(rhs4))
		s.SetMaxIterations(0)
		assert.Equal(t, want, s.Solve(rhs4), kind)
		assert.Equal(t, 0, s.Iterations(), kind)
	}
}

func TestMethodSolverWithOperator(t *testing.T) {
	t.Parallel()
	a := spd4()
	for _, kind := range methodKinds {
		s, err := NewSolver(kind, nil, WithTolerance(1e-10))
		require.NoError(t, err)
		ms := s.(*MethodSolver)

		x := ms.SolveWithOperator(DenseOps(a), rhs4)
		require.Equal(t, Ok, ms.ErrorCode(), kind)
		require.NoError(t, ms.Err(), kind)
		assert.Less(t, relResidual(a, x, rhs4), 1e-12, kind)

		ms.SolveWithOperator(MatrixOps{}, rhs4)
		assert.Equal(t, NilOperator, ms.ErrorCode(), kind)
		assert.ErrorIs(t, ms.Err(), ErrNilOperator, kind)
	}

	// BiCG needs the transpose.
	s, err := NewSolver(KindBiCG, nil)
	require.NoError(t, err)
	ms := s.(*MethodSolver)
	ms.SolveWithOperator(MatrixOps{MatVec: DenseOps(a).MatVec}, rhs4)
	assert.Equal(t, NilOperator, ms.ErrorCode())

	// The bound matrix brings its dimension back after an operator solve.
	s, err = NewSolver(KindCG, a)
	require.NoError(t, err)
	ms = s.(*MethodSolver)
	id := func(dst, src []float64) { copy(dst, src) }
	assert.Len(t, ms.SolveWithOperator(MatrixOps{MatVec: id}, []float64{1, 2}), 2)
	assert.Len(t, ms.Solve(rhs4), 4)
	assert.Equal(t, Ok, ms.ErrorCode())
}

// failingWriter fails every write.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDiagnosticsWriteError(t *testing.T) {
	t.Parallel()
	for _, kind := range []Kind{KindCGS, KindCG} {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		s, err := NewSolver(kind, spd4(), WithDiagnostics(failingWriter{}), WithLogger(logger))
		require.NoError(t, err)
		x := s.Solve(rhs4)
		assert.Equal(t, Ok, s.ErrorCode(), kind)
		assert.Less(t, relResidual(spd4(), x, rhs4), 1e-6, kind)
		assert.Greater(t, s.Iterations(), 1, kind)
		assert.Equal(t, 1, strings.Count(buf.String(), "diagnostics write failed"), kind)
		assert.Contains(t, buf.String(), "disk full", kind)
	}
}
