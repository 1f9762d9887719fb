// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package triplet provides a sparse matrix in coordinate format whose
// matrix-vector products can be used as krylov operators.
package triplet

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrIndexOutOfRange is returned by Append for an entry outside the matrix.
var ErrIndexOutOfRange = errors.New("triplet: index out of range")

type triplet struct {
	i, j int
	v    float64
}

// Matrix is a sparse matrix stored as a list of (row, column, value)
// entries. Duplicate entries are summed.
type Matrix struct {
	r, c int
	data []triplet
}

// New returns an empty r×c matrix.
func New(r, c int) *Matrix {
	if r < 0 || c < 0 {
		panic("triplet: negative dimension")
	}
	return &Matrix{
		r: r,
		c: c,
	}
}

// Dims returns the dimensions of the matrix.
func (m *Matrix) Dims() (r, c int) {
	return m.r, m.c
}

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int {
	return len(m.data)
}

// Append adds v to the entry at row i and column j.
func (m *Matrix) Append(i, j int, v float64) error {
	if i < 0 || m.r <= i || j < 0 || m.c <= j {
		return fmt.Errorf("%w: (%d, %d) in %d×%d", ErrIndexOutOfRange, i, j, m.r, m.c)
	}
	m.data = append(m.data, triplet{i, j, v})
	return nil
}

// MulVec computes dst = A*x.
func (m *Matrix) MulVec(dst, x []float64) {
	if m.c != len(x) {
		panic("triplet: dimension mismatch")
	}
	if m.r != len(dst) {
		panic("triplet: dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for _, aij := range m.data {
		dst[aij.i] += aij.v * x[aij.j]
	}
}

// MulTransVec computes dst = A^T*x.
func (m *Matrix) MulTransVec(dst, x []float64) {
	if m.c != len(dst) {
		panic("triplet: dimension mismatch")
	}
	if m.r != len(x) {
		panic("triplet: dimension mismatch")
	}
	for i := range dst {
		dst[i] = 0
	}
	for _, aij := range m.data {
		dst[aij.j] += aij.v * x[aij.i]
	}
}

// Dense returns the matrix as a dense matrix. It returns an empty matrix if
// m has a zero dimension.
func (m *Matrix) Dense() *mat.Dense {
	if m.r == 0 || m.c == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(m.r, m.c, nil)
	for _, aij := range m.data {
		d.Set(aij.i, aij.j, d.At(aij.i, aij.j)+aij.v)
	}
	return d
}
