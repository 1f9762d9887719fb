// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package krylov

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSquare is reported when a square matrix is required but the
	// input is not square.
	ErrNotSquare = errors.New("krylov: matrix is not square")

	// ErrSizeMismatch is reported when the right-hand side does not match
	// the dimension of the system.
	ErrSizeMismatch = errors.New("krylov: size mismatch")

	// ErrNilOperator is reported when a matrix-free solve is requested
	// without an operator.
	ErrNilOperator = errors.New("krylov: nil operator")

	// ErrBreakdown is wrapped by the errors a Method returns when a scalar
	// of its recurrence becomes too small to divide by.
	ErrBreakdown = errors.New("krylov: breakdown")

	// ErrIterationLimit is returned by LinearSolve when the iteration limit
	// is reached before convergence.
	ErrIterationLimit = errors.New("krylov: iteration limit reached")

	// ErrUnknownKind is returned by NewSolver for a Kind it does not know.
	ErrUnknownKind = errors.New("krylov: unknown solver kind")
)

// ErrorCode is the kind of structural input error recorded by a Solver.
type ErrorCode int

const (
	Ok ErrorCode = iota
	NotSquareMatrix
	SizeMismatch
	NilOperator
)

func (c ErrorCode) String() string {
	switch c {
	case Ok:
		return "Ok"
	case NotSquareMatrix:
		return "NotSquareMatrix"
	case SizeMismatch:
		return "SizeMismatch"
	case NilOperator:
		return "NilOperator"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Err returns the sentinel error matching c, or nil for Ok.
func (c ErrorCode) Err() error {
	switch c {
	case Ok:
		return nil
	case NotSquareMatrix:
		return ErrNotSquare
	case SizeMismatch:
		return ErrSizeMismatch
	case NilOperator:
		return ErrNilOperator
	}
	return fmt.Errorf("krylov: unknown error code %d", int(c))
}

// ErrorHandler is called by a Solver whenever it detects a structural input
// error. msg is a human-readable description of the failure. The handler must
// not call back into the Solver.
type ErrorHandler func(code ErrorCode, msg string)

func breakdown(what string) error {
	return fmt.Errorf("%w: %s", ErrBreakdown, what)
}
