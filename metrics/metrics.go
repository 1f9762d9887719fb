// Copyright ©2017 The gonum Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics exports krylov solver telemetry as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vladimir-ch/krylov"
)

const namespace = "krylov"

// Prometheus is a krylov.Observer that records solves and iterations.
// It is safe for concurrent use.
type Prometheus struct {
	// SolvesTotal counts solves by method and outcome.
	SolvesTotal *prometheus.CounterVec
	// IterationsTotal counts iterations by method.
	IterationsTotal *prometheus.CounterVec
	// Iterations is the distribution of iterations per solve.
	Iterations *prometheus.HistogramVec
	// MatVecTotal counts matrix-vector products by method.
	MatVecTotal *prometheus.CounterVec
	// ResidualNorm is the final residual norm of the last solve.
	ResidualNorm *prometheus.GaugeVec
	// SolveDuration is the distribution of solve runtimes.
	SolveDuration *prometheus.HistogramVec
}

var _ krylov.Observer = (*Prometheus)(nil)

// New registers the metrics with reg and returns the observer. A nil reg
// uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Prometheus{
		SolvesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Total solves by method and outcome.",
		}, []string{"method", "outcome"}),
		IterationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Total iterations by method.",
		}, []string{"method"}),
		Iterations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_iterations",
			Help:      "Iterations per solve.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048
		}, []string{"method"}),
		MatVecTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matvec_total",
			Help:      "Total matrix-vector products by method.",
		}, []string{"method"}),
		ResidualNorm: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "residual_norm",
			Help:      "Final residual norm of the last solve by method.",
		}, []string{"method"}),
		SolveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Solve duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12), // 1µs to ~4s
		}, []string{"method"}),
	}
}

// ObserveIteration implements krylov.Observer.
func (p *Prometheus) ObserveIteration(method string, _ int, _ float64) {
	p.IterationsTotal.WithLabelValues(method).Inc()
}

// ObserveSolve implements krylov.Observer.
func (p *Prometheus) ObserveSolve(method string, stats krylov.Stats, outcome krylov.Outcome) {
	p.SolvesTotal.WithLabelValues(method, outcome.String()).Inc()
	if outcome == krylov.InputError {
		return
	}
	p.Iterations.WithLabelValues(method).Observe(float64(stats.Iterations))
	p.MatVecTotal.WithLabelValues(method).Add(float64(stats.MatVec))
	p.ResidualNorm.WithLabelValues(method).Set(stats.ResidualNorm)
	p.SolveDuration.WithLabelValues(method).Observe(stats.Runtime.Seconds())
}
