package dispatch

import (
	"errors"
	"time"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	solveDuration *prometheus.HistogramVec
	solvesTotal   *prometheus.CounterVec
	lpVariables   prometheus.Histogram
	lpBlocks      prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Histogram, prometheus.Histogram) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "optimizer_solve_duration_seconds",
			Help:    "Wall time of dispatch optimizations",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"outcome"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizer_solves_total",
			Help: "Number of dispatch optimizations by outcome",
		},
		[]string{"outcome"},
	)
	vars := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optimizer_lp_variables",
			Help:    "Number of LP variables per successful optimization",
			Buckets: prometheus.ExponentialBuckets(8, 4, 8),
		},
	)
	blocks := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "optimizer_lp_blocks",
			Help:    "Number of independent blocks solved per successful optimization",
			Buckets: prometheus.ExponentialBuckets(1, 3, 8),
		},
	)
	return dur, total, vars, blocks
}

func init() {
	solveDuration, solvesTotal, lpVariables, lpBlocks = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers optimizer metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveDuration, solvesTotal, lpVariables, lpBlocks)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveDuration, solvesTotal, lpVariables, lpBlocks = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

// Outcome names the result of an optimization for metric labels.
func Outcome(err error) string {
	var se *model.SolverError
	switch {
	case err == nil:
		return "optimal"
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrConfiguration):
		return "configuration"
	case errors.Is(err, model.ErrInfeasible):
		return "infeasible"
	case errors.As(err, &se):
		return "solver_" + se.Kind.String()
	default:
		return "error"
	}
}

func observeSolve(err error, d time.Duration) {
	o := Outcome(err)
	solveDuration.WithLabelValues(o).Observe(d.Seconds())
	solvesTotal.WithLabelValues(o).Inc()
}

func observeSize(s model.SolveStats) {
	lpVariables.Observe(float64(s.Variables))
	lpBlocks.Observe(float64(s.Blocks))
}
