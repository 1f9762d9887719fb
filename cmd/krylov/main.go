// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command krylov solves sparse linear systems read from Matrix Market files.
//
// Usage:
//  krylov solve --matrix A.mtx [--rhs b.mtx ...] [flags]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "krylov:", err)
		os.Exit(1)
	}
}
