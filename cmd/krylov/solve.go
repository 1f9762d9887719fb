// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/vladimir-ch/krylov"
	"github.com/vladimir-ch/krylov/internal/config"
	"github.com/vladimir-ch/krylov/internal/market"
	"github.com/vladimir-ch/krylov/internal/triplet"
	"github.com/vladimir-ch/krylov/metrics"
)

type solveFlags struct {
	matrix      string
	rhs         []string
	out         string
	method      string
	tol         float64
	maxIter     int
	matrixFree  bool
	trace       bool
	metrics     bool
	parallelism int
}

func newSolveCmd(gf *globalFlags) *cobra.Command {
	var sf solveFlags
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve A x = b for one or more right-hand sides",
		Long: `Solve reads the matrix A and the right-hand sides from Matrix Market files
and writes each solution as a Matrix Market array. Without --rhs the
right-hand side is A times the vector of ones, so the exact solution is
the vector of ones.

Right-hand sides are solved concurrently, each by its own solver.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := gf.loadConfig(cmd)
			if err != nil {
				return err
			}
			sf.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			// Solvers log and trace concurrently.
			stderr := &lockedWriter{w: cmd.ErrOrStderr()}
			logger, err := newLogger(stderr, cfg.Log)
			if err != nil {
				return err
			}
			return runSolve(cmd.Context(), cmd.OutOrStdout(), stderr, cfg, sf, logger)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&sf.matrix, "matrix", "A", "", "Matrix Market file with the system matrix")
	f.StringSliceVarP(&sf.rhs, "rhs", "b", nil, "Matrix Market file with a right-hand side (repeatable)")
	f.StringVarP(&sf.out, "out", "o", "", "directory for the solutions (default stdout)")
	f.StringVarP(&sf.method, "method", "m", "", "iterative method: cgs, cg, bicgstab or bicg")
	f.Float64Var(&sf.tol, "tol", 0, "stopping tolerance")
	f.IntVar(&sf.maxIter, "max-iter", 0, "iteration limit")
	f.BoolVar(&sf.matrixFree, "matrix-free", false, "apply the sparse matrix directly instead of a dense copy")
	f.BoolVar(&sf.trace, "trace", false, "write the residual norm of every iteration to stderr")
	f.BoolVar(&sf.metrics, "metrics", false, "write Prometheus metrics to stderr at exit")
	f.IntVarP(&sf.parallelism, "parallel", "j", 0, "number of concurrent solves (0 means unlimited)")
	cmd.MarkFlagRequired("matrix")
	return cmd
}

// apply overrides cfg with the flags set on the command line.
func (sf *solveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("method") {
		cfg.Solver.Method = sf.method
	}
	if f.Changed("tol") {
		cfg.Solver.Tolerance = sf.tol
	}
	if f.Changed("max-iter") {
		cfg.Solver.MaxIterations = sf.maxIter
	}
	if f.Changed("matrix-free") {
		cfg.Solver.MatrixFree = sf.matrixFree
	}
	if f.Changed("trace") {
		cfg.Solver.Trace = sf.trace
	}
	if f.Changed("metrics") {
		cfg.Metrics.Enabled = sf.metrics
	}
	if f.Changed("parallel") {
		cfg.Parallelism = sf.parallelism
	}
}

// problem is one right-hand side with its solution.
type problem struct {
	name string
	b    []float64
	x    []float64
}

func runSolve(ctx context.Context, stdout, stderr io.Writer, cfg config.Config, sf solveFlags, logger *slog.Logger) error {
	a, err := readMatrix(sf.matrix)
	if err != nil {
		return err
	}
	r, c := a.Dims()
	if r != c {
		return fmt.Errorf("%s: matrix is %d×%d, want square", sf.matrix, r, c)
	}
	logger.Info("matrix loaded", "path", sf.matrix, "dimension", r, "nnz", a.NNZ())

	problems, err := readProblems(a, sf.rhs)
	if err != nil {
		return err
	}

	var reg *prometheus.Registry
	opts := []krylov.Option{
		krylov.WithTolerance(cfg.Solver.Tolerance),
		krylov.WithMaxIterations(cfg.Solver.MaxIterations),
		krylov.WithLogger(logger),
	}
	if cfg.Solver.Trace {
		opts = append(opts, krylov.WithDiagnostics(stderr))
	}
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		opts = append(opts, krylov.WithObserver(metrics.New(reg)))
	}

	var dense *mat.Dense
	if !cfg.Solver.MatrixFree {
		dense = a.Dense()
	}
	kind := cfg.Kind()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Parallelism > 0 {
		g.SetLimit(cfg.Parallelism)
	}
	for _, p := range problems {
		p := p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			x, err := solveOne(kind, a, dense, p.b, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", p.name, err)
			}
			p.x = x
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := writeSolutions(stdout, sf.out, problems); err != nil {
		return err
	}
	if reg != nil {
		return writeMetrics(stderr, reg)
	}
	return nil
}

// solveOne solves A x = b with a solver of its own. With a nil dense the
// sparse matrix is applied directly.
func solveOne(kind krylov.Kind, a *triplet.Matrix, dense *mat.Dense, b []float64, opts []krylov.Option) ([]float64, error) {
	var bound mat.Matrix
	if dense != nil {
		bound = dense
	}
	s, err := krylov.NewSolver(kind, bound, opts...)
	if err != nil {
		return nil, err
	}
	var x []float64
	switch s := s.(type) {
	case *krylov.CGSSolver:
		if dense == nil {
			x = s.SolveWithOperator(a.MulVec, b)
		} else {
			x = s.Solve(b)
		}
	case *krylov.MethodSolver:
		if dense == nil {
			x = s.SolveWithOperator(krylov.MatrixOps{MatVec: a.MulVec, MatTransVec: a.MulTransVec}, b)
		} else {
			x = s.Solve(b)
		}
	}
	if s.ErrorCode() != krylov.Ok {
		return nil, s.Err()
	}
	return append([]float64(nil), x...), nil
}

func readMatrix(path string) (*triplet.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	a, _, err := market.ReadMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

func readProblems(a *triplet.Matrix, paths []string) ([]*problem, error) {
	n, _ := a.Dims()
	if len(paths) == 0 {
		ones := make([]float64, n)
		for i := range ones {
			ones[i] = 1
		}
		b := make([]float64, n)
		a.MulVec(b, ones)
		return []*problem{{name: "ones", b: b}}, nil
	}
	problems := make([]*problem, len(paths))
	for i, path := range paths {
		b, err := readVector(path)
		if err != nil {
			return nil, err
		}
		if len(b) != n {
			return nil, fmt.Errorf("%s: right-hand side has length %d, matrix dimension is %d", path, len(b), n)
		}
		problems[i] = &problem{name: path, b: b}
	}
	return problems, nil
}

func readVector(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := market.ReadVector(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// writeSolutions writes the solutions to w in order or, if dir is not empty,
// to dir/x<i>.mtx.
func writeSolutions(w io.Writer, dir string, problems []*problem) error {
	if dir == "" {
		for _, p := range problems {
			if err := market.WriteVector(w, p.x); err != nil {
				return err
			}
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, p := range problems {
		var buf bytes.Buffer
		if err := market.WriteVector(&buf, p.x); err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("x%d.mtx", i))
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// lockedWriter serializes writes from concurrent solves.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
