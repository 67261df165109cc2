package dispatch

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

func TestMetricsRegistration(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)

	opt := newTestOptimizer(t, Config{})
	_, err := opt.Optimize(context.Background(), scenarioA())
	require.NoError(t, err)
	_, err = opt.Optimize(context.Background(), scenarioC())
	require.Error(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[*mf.Name] = true
	}
	for _, n := range []string{
		"optimizer_solve_duration_seconds",
		"optimizer_solves_total",
		"optimizer_lp_variables",
		"optimizer_lp_blocks",
	} {
		assert.True(t, names[n], "metric %s not registered", n)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(solvesTotal.WithLabelValues("optimal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(solvesTotal.WithLabelValues("infeasible")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "optimal", Outcome(nil))
	assert.Equal(t, "validation", Outcome(model.NewValidationError("load", "short")))
	assert.Equal(t, "configuration", Outcome(model.NewConfigurationError("x", "bad")))
	assert.Equal(t, "infeasible", Outcome(&model.InfeasibleError{Hour: 1}))
	assert.Equal(t, "solver_timeout", Outcome(&model.SolverError{Kind: model.SolverTimeout}))
	assert.Equal(t, "solver_capacity", Outcome(&model.SolverError{Kind: model.SolverCapacity}))
	assert.Equal(t, "error", Outcome(assert.AnError))
}
