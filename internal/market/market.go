// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package market reads and writes real matrices and vectors in the Matrix
// Market exchange format.
//
// Supported headers are
//  %%MatrixMarket matrix coordinate {real|integer|pattern} {general|symmetric|skew-symmetric}
//  %%MatrixMarket matrix array {real|integer} {general|symmetric|skew-symmetric}
package market

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vladimir-ch/krylov/internal/triplet"
)

// ErrFormat is wrapped by all errors caused by malformed input.
var ErrFormat = errors.New("market: invalid format")

// Header is the banner line of a Matrix Market file.
type Header struct {
	Format   string // coordinate or array
	Field    string // real, integer or pattern
	Symmetry string // general, symmetric or skew-symmetric
}

const banner = "%%MatrixMarket"

type scanner struct {
	s    *bufio.Scanner
	line int
}

func (sc *scanner) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrFormat, sc.line, fmt.Sprintf(format, args...))
}

// next returns the fields of the next line that is neither empty nor a
// comment.
func (sc *scanner) next() ([]string, error) {
	for sc.s.Scan() {
		sc.line++
		text := strings.TrimSpace(sc.s.Text())
		if text == "" || strings.HasPrefix(text, "%") {
			continue
		}
		return strings.Fields(text), nil
	}
	if err := sc.s.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}

func (sc *scanner) header() (Header, error) {
	if !sc.s.Scan() {
		if err := sc.s.Err(); err != nil {
			return Header{}, err
		}
		return Header{}, fmt.Errorf("%w: empty input", ErrFormat)
	}
	sc.line++
	f := strings.Fields(strings.ToLower(sc.s.Text()))
	if len(f) != 5 || f[0] != strings.ToLower(banner) || f[1] != "matrix" {
		return Header{}, sc.errorf("bad banner %q", sc.s.Text())
	}
	h := Header{Format: f[2], Field: f[3], Symmetry: f[4]}
	switch h.Format {
	case "coordinate", "array":
	default:
		return Header{}, sc.errorf("unsupported format %q", h.Format)
	}
	switch h.Field {
	case "real", "integer":
	case "pattern":
		if h.Format == "array" {
			return Header{}, sc.errorf("pattern field in array format")
		}
	default:
		return Header{}, sc.errorf("unsupported field %q", h.Field)
	}
	switch h.Symmetry {
	case "general", "symmetric", "skew-symmetric":
	default:
		return Header{}, sc.errorf("unsupported symmetry %q", h.Symmetry)
	}
	return h, nil
}

func (sc *scanner) ints(f []string, n int) ([]int, error) {
	if len(f) < n {
		return nil, sc.errorf("want %d integers, got %d fields", n, len(f))
	}
	v := make([]int, n)
	for i := range v {
		var err error
		v[i], err = strconv.Atoi(f[i])
		if err != nil || v[i] < 0 {
			return nil, sc.errorf("bad integer %q", f[i])
		}
	}
	return v, nil
}

func (sc *scanner) float(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, sc.errorf("bad value %q", s)
	}
	return v, nil
}

// ReadMatrix reads a matrix in coordinate or array format. Symmetric and
// skew-symmetric matrices are expanded to general storage.
func ReadMatrix(r io.Reader) (*triplet.Matrix, Header, error) {
	sc := &scanner{s: bufio.NewScanner(r)}
	h, err := sc.header()
	if err != nil {
		return nil, h, err
	}
	f, err := sc.next()
	if err != nil {
		return nil, h, err
	}
	if h.Format == "array" {
		size, err := sc.ints(f, 2)
		if err != nil {
			return nil, h, err
		}
		m, err := sc.readArray(h, size[0], size[1])
		return m, h, err
	}
	size, err := sc.ints(f, 3)
	if err != nil {
		return nil, h, err
	}
	m, err := sc.readCoordinate(h, size[0], size[1], size[2])
	return m, h, err
}

func (sc *scanner) readCoordinate(h Header, rows, cols, nnz int) (*triplet.Matrix, error) {
	if h.Symmetry != "general" && rows != cols {
		return nil, sc.errorf("%s matrix is %d×%d", h.Symmetry, rows, cols)
	}
	m := triplet.New(rows, cols)
	for k := 0; k < nnz; k++ {
		f, err := sc.next()
		if err != nil {
			return nil, err
		}
		ij, err := sc.ints(f, 2)
		if err != nil {
			return nil, err
		}
		i, j := ij[0]-1, ij[1]-1
		v := 1.0
		if h.Field != "pattern" {
			if len(f) < 3 {
				return nil, sc.errorf("missing value")
			}
			if v, err = sc.float(f[2]); err != nil {
				return nil, err
			}
		}
		if err := m.Append(i, j, v); err != nil {
			return nil, sc.errorf("%v", err)
		}
		if i == j {
			continue
		}
		switch h.Symmetry {
		case "symmetric":
			err = m.Append(j, i, v)
		case "skew-symmetric":
			err = m.Append(j, i, -v)
		}
		if err != nil {
			return nil, sc.errorf("%v", err)
		}
	}
	return m, nil
}

// readArray reads the column-major values of an array matrix. For symmetric
// matrices only the lower triangle is stored, for skew-symmetric ones only
// the strictly lower triangle.
func (sc *scanner) readArray(h Header, rows, cols int) (*triplet.Matrix, error) {
	if h.Symmetry != "general" && rows != cols {
		return nil, sc.errorf("%s matrix is %d×%d", h.Symmetry, rows, cols)
	}
	m := triplet.New(rows, cols)
	for j := 0; j < cols; j++ {
		first := 0
		switch h.Symmetry {
		case "symmetric":
			first = j
		case "skew-symmetric":
			first = j + 1
		}
		for i := first; i < rows; i++ {
			f, err := sc.next()
			if err != nil {
				return nil, err
			}
			v, err := sc.float(f[0])
			if err != nil {
				return nil, err
			}
			if v == 0 {
				continue
			}
			m.Append(i, j, v)
			switch {
			case i == j:
			case h.Symmetry == "symmetric":
				m.Append(j, i, v)
			case h.Symmetry == "skew-symmetric":
				m.Append(j, i, -v)
			}
		}
	}
	return m, nil
}

// ReadVector reads a vector stored as an n×1 matrix in array or coordinate
// format.
func ReadVector(r io.Reader) ([]float64, error) {
	m, _, err := ReadMatrix(r)
	if err != nil {
		return nil, err
	}
	n, c := m.Dims()
	if c != 1 {
		return nil, fmt.Errorf("%w: vector has %d columns", ErrFormat, c)
	}
	v := make([]float64, n)
	m.MulVec(v, []float64{1})
	return v, nil
}

// WriteVector writes x as an n×1 array in real general format.
func WriteVector(w io.Writer, x []float64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s matrix array real general\n", banner)
	fmt.Fprintf(bw, "%d 1\n", len(x))
	for _, v := range x {
		bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
