// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimir-ch/krylov"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "krylov.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, krylov.KindCGS, c.Kind())
	assert.Equal(t, krylov.DefaultTolerance, c.Solver.Tolerance)
	assert.Equal(t, krylov.DefaultMaxIterations, c.Solver.MaxIterations)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
solver:
  method: bicgstab
  tolerance: 1e-10
  max_iterations: 500
log:
  level: debug
  format: json
metrics:
  enabled: true
parallelism: 4
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, krylov.KindBiCGSTAB, c.Kind())
	assert.Equal(t, 1e-10, c.Solver.Tolerance)
	assert.Equal(t, 500, c.Solver.MaxIterations)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)
	assert.True(t, c.Metrics.Enabled)
	assert.Equal(t, 4, c.Parallelism)
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, "solver:\n  method: cg\n")
	t.Setenv("KRYLOV_METHOD", "cgs")
	t.Setenv("KRYLOV_TOLERANCE", "1e-9")
	t.Setenv("KRYLOV_MAX_ITERATIONS", "77")
	t.Setenv("KRYLOV_LOG_LEVEL", "warn")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, krylov.KindCGS, c.Kind())
	assert.Equal(t, 1e-9, c.Solver.Tolerance)
	assert.Equal(t, 77, c.Solver.MaxIterations)
	assert.Equal(t, "warn", c.Log.Level)

	t.Setenv("KRYLOV_TOLERANCE", "small")
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "solver: [1, 2"))
	assert.Error(t, err)

	for _, content := range []string{
		"solver:\n  method: gmres\n",
		"solver:\n  tolerance: 0\n",
		"solver:\n  tolerance: -1\n",
		"solver:\n  method: cg\n  tolerance: 2\n",
		"solver:\n  max_iterations: 0\n",
		"solver:\n  method: cg\n  tolerance: 1e-20\n",
		"solver:\n  method: bicg\n  tolerance: 1e-17\n",
		"log:\n  level: loud\n",
		"log:\n  format: xml\n",
		"parallelism: -1\n",
	} {
		_, err := Load(writeFile(t, content))
		assert.ErrorIs(t, err, ErrInvalid, content)
	}
}

func TestValidateMethods(t *testing.T) {
	for _, content := range []string{
		"solver:\n  method: cg\n  matrix_free: true\n",
		"solver:\n  method: bicg\n  matrix_free: true\n",
		"solver:\n  method: cgs\n  tolerance: 1e-20\n",
		"solver:\n  method: cgs\n  tolerance: 2\n",
		"solver:\n  method: cg\n  tolerance: 1.1102230246251565e-16\n",
	} {
		_, err := Load(writeFile(t, content))
		assert.NoError(t, err, content)
	}
}
