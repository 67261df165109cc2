package dispatch

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

var t0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestOptimizer(t *testing.T, cfg Config) *Optimizer {
	t.Helper()
	o, err := NewOptimizer(cfg, nil)
	require.NoError(t, err)
	return o
}

func unlimitedGrid(cost float64) model.GridConnection {
	return model.GridConnection{ImportLimitKW: model.DefaultGridImportLimitKW, MarginalCost: cost}
}

func scenarioA() Input {
	return Input{
		Grid:              model.NewTimeGrid(t0, 2),
		Load:              []float64{5, 5},
		SolarAvailability: []float64{1, 0},
		WindAvailability:  []float64{0, 0},
		Assets: model.AssetModel{
			Solar: model.RenewableAsset{CapacityKW: 5, MarginalCost: 0.02},
			Grid:  unlimitedGrid(0.1),
		},
	}
}

func scenarioC() Input {
	return Input{
		Grid:              model.NewTimeGrid(t0, 3),
		Load:              []float64{0, 4, 2},
		SolarAvailability: []float64{0, 0, 0},
		WindAvailability:  []float64{0, 0, 0},
		Assets: model.AssetModel{
			Solar: model.RenewableAsset{CapacityKW: 10, MarginalCost: 0.02},
			Grid:  model.GridConnection{ImportLimitKW: 0, MarginalCost: 0.1},
		},
	}
}

func batteryInput(load, solarAvail []float64) Input {
	n := len(load)
	return Input{
		Grid:              model.NewTimeGrid(t0, n),
		Load:              load,
		SolarAvailability: solarAvail,
		WindAvailability:  make([]float64, n),
		Assets: model.AssetModel{
			Solar: model.RenewableAsset{CapacityKW: 10, MarginalCost: 0.01},
			Grid:  unlimitedGrid(0.1),
			Battery: model.BatteryStorage{
				EnergyCapacityKWh:   10,
				PowerLimitKW:        5,
				ChargeEfficiency:    0.9,
				DischargeEfficiency: 0.9,
			},
		},
	}
}

// assertPhysical checks the invariants every returned solution must hold.
func assertPhysical(t *testing.T, in Input, sol *model.DispatchSolution) {
	t.Helper()
	a := in.Assets
	tol := DefaultBalanceTolerance * math.Max(in.PeakLoad(), 1)
	require.Len(t, sol.Solar, in.Grid.Steps)
	for i := 0; i < in.Grid.Steps; i++ {
		supply := sol.Solar[i] + sol.Wind[i] + sol.Diesel[i] + sol.GridImport[i] + sol.Discharge[i] - sol.Charge[i]
		assert.InDelta(t, in.Load[i], supply, tol, "balance at hour %d", i)
		for _, v := range []float64{sol.Solar[i], sol.Wind[i], sol.Diesel[i], sol.GridImport[i], sol.Charge[i], sol.Discharge[i]} {
			assert.GreaterOrEqual(t, v, 0.0)
		}
		assert.LessOrEqual(t, sol.Solar[i], a.Solar.MaxOutput(in.SolarAvailability[i]))
		if a.Diesel.Enabled() {
			assert.GreaterOrEqual(t, sol.Diesel[i], a.Diesel.MinOutputKW())
		}
		if a.Battery.Enabled() {
			assert.LessOrEqual(t, sol.Charge[i], a.Battery.PowerLimitKW)
			assert.LessOrEqual(t, sol.Discharge[i], a.Battery.PowerLimitKW)
			assert.GreaterOrEqual(t, sol.SoC[i], 0.0)
			assert.LessOrEqual(t, sol.SoC[i], a.Battery.EnergyCapacityKWh)
		}
	}
}

func TestOptimizeScenarioA(t *testing.T) {
	in := scenarioA()
	sol, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), in)
	require.NoError(t, err)

	assert.InDelta(t, 0.60, sol.Objective, 1e-9)
	assert.InDeltaSlice(t, []float64{5, 0}, sol.Solar, 1e-9)
	assert.InDeltaSlice(t, []float64{0, 5}, sol.GridImport, 1e-9)
	assert.InDeltaSlice(t, []float64{0, 0}, sol.SolarCurtailed, 1e-9)
	assert.Equal(t, model.StatusOptimal, sol.Status)
	assert.Equal(t, model.BoundaryCyclic, sol.Boundary)
	assert.Equal(t, string(MethodSimplex), sol.Stats.Method)
	assert.False(t, sol.Relaxed)
	assertPhysical(t, in, sol)
}

func TestOptimizeScenarioCInfeasible(t *testing.T) {
	sol, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), scenarioC())
	assert.Nil(t, sol)
	require.ErrorIs(t, err, model.ErrInfeasible)
	var ie *model.InfeasibleError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 1, ie.Hour)
}

func TestOptimizeEmptyBatteryCannotServeLoad(t *testing.T) {
	in := scenarioC()
	in.Assets.Battery = model.BatteryStorage{PowerLimitKW: 5, ChargeEfficiency: 0.9, DischargeEfficiency: 0.9}
	_, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrInfeasible)
}

func TestOptimizeRejectsBadInput(t *testing.T) {
	opt := newTestOptimizer(t, Config{})

	in := scenarioA()
	in.Load = []float64{5}
	_, err := opt.Optimize(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrValidation)

	in = scenarioA()
	in.SolarAvailability = []float64{1.2, 0}
	_, err = opt.Optimize(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrValidation)

	in = scenarioA()
	in.Assets.Grid.MarginalCost = -1
	_, err = opt.Optimize(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrConfiguration)

	in = batteryInput([]float64{1}, []float64{0})
	fixed := newTestOptimizer(t, Config{Boundary: model.BoundaryFixed, InitialSoCKWh: 11})
	_, err = fixed.Optimize(context.Background(), in)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestNewOptimizerRejectsBadConfig(t *testing.T) {
	_, err := NewOptimizer(Config{Boundary: "open"}, nil)
	assert.ErrorIs(t, err, model.ErrConfiguration)
	_, err = NewOptimizer(Config{Method: "interior-point"}, nil)
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestDieselMinimumAndCurtailment(t *testing.T) {
	in := Input{
		Grid:              model.NewTimeGrid(t0, 2),
		Load:              []float64{10, 10},
		SolarAvailability: []float64{1, 1},
		WindAvailability:  []float64{0, 0},
		Assets: model.AssetModel{
			Solar:  model.RenewableAsset{CapacityKW: 20, MarginalCost: 0.02},
			Diesel: model.DieselGenerator{CapacityKW: 10, MinLoadFraction: 0.4, MarginalCost: 0.32, Efficiency: 0.35},
			Grid:   unlimitedGrid(0.1),
		},
	}
	sol, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), in)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4, 4}, sol.Diesel, 1e-9)
	assert.InDeltaSlice(t, []float64{6, 6}, sol.Solar, 1e-9)
	assert.InDeltaSlice(t, []float64{14, 14}, sol.SolarCurtailed, 1e-9)
	assert.InDelta(t, 2*(4*0.32+6*0.02), sol.Objective, 1e-9)
	assertPhysical(t, in, sol)
}

func TestDieselMinimumAboveLoadIsInfeasible(t *testing.T) {
	in := scenarioA()
	in.Assets.Diesel = model.DieselGenerator{CapacityKW: 20, MinLoadFraction: 0.5, MarginalCost: 0.3, Efficiency: 0.3}
	_, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), in)
	var ie *model.InfeasibleError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 0, ie.Hour)
}

func TestBatteryShiftsCheapSolar(t *testing.T) {
	in := batteryInput([]float64{2, 2}, []float64{1, 0})
	sol, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), in)
	require.NoError(t, err)
	assertPhysical(t, in, sol)

	// 2 kWh discharged at 90% needs 2/0.81 kWh charged from solar.
	assert.InDelta(t, 0.01*(2+2/0.81), sol.Objective, 1e-7)
	assert.InDelta(t, 0, sol.GridImport[1], 1e-7)
	assert.InDelta(t, sol.InitialSoC, sol.SoC[1], 1e-7, "cyclic boundary")
	assert.Equal(t, string(MethodChain), sol.Stats.Method)
}

func TestBoundaryPolicies(t *testing.T) {
	in := batteryInput([]float64{3}, []float64{0})
	in.Assets.Battery.ChargeEfficiency = 1
	in.Assets.Battery.DischargeEfficiency = 1
	in.Assets.Battery.OMCost = 0.001

	t.Run("fixed", func(t *testing.T) {
		sol, err := newTestOptimizer(t, Config{Boundary: model.BoundaryFixed, InitialSoCKWh: 5}).
			Optimize(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, 5.0, sol.InitialSoC)
		assert.InDelta(t, 3, sol.Discharge[0], 1e-9)
		assert.InDelta(t, 2, sol.SoC[0], 1e-9)
		assert.InDelta(t, 0.003, sol.Objective, 1e-9)
		assertPhysical(t, in, sol)
	})
	t.Run("free", func(t *testing.T) {
		sol, err := newTestOptimizer(t, Config{Boundary: model.BoundaryFree}).
			Optimize(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, model.BoundaryFree, sol.Boundary)
		assert.GreaterOrEqual(t, sol.InitialSoC, 3-1e-9)
		assert.InDelta(t, 0, sol.GridImport[0], 1e-9)
		assertPhysical(t, in, sol)
	})
	t.Run("cyclic", func(t *testing.T) {
		sol, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), in)
		require.NoError(t, err)
		assert.InDelta(t, 3, sol.GridImport[0], 1e-9)
		assert.InDelta(t, 0.3, sol.Objective, 1e-9)
		assertPhysical(t, in, sol)
	})
}

// enumerate returns the cheapest dispatch over a 0.5 kW lattice for a two-hour
// instance with solar, grid and a lossless battery under the cyclic policy.
func enumerate(in Input) float64 {
	const step = 0.5
	a := in.Assets
	levels := func(hi float64) []float64 {
		var out []float64
		for v := 0.0; v <= hi+1e-9; v += step {
			out = append(out, v)
		}
		return out
	}
	type hourChoice struct{ s, c, d, g float64 }
	choices := make([][]hourChoice, 2)
	for t := 0; t < 2; t++ {
		for _, s := range levels(a.Solar.MaxOutput(in.SolarAvailability[t])) {
			for _, c := range levels(a.Battery.PowerLimitKW) {
				for _, d := range levels(a.Battery.PowerLimitKW) {
					g := in.Load[t] - s - d + c
					if g < 0 {
						continue
					}
					choices[t] = append(choices[t], hourChoice{s, c, d, g})
				}
			}
		}
	}
	best := math.Inf(1)
	cost := func(h hourChoice) float64 {
		return a.Solar.MarginalCost*h.s + a.Grid.MarginalCost*h.g + a.Battery.OMCost*(h.c+h.d)
	}
	for _, h0 := range choices[0] {
		for _, h1 := range choices[1] {
			// Cyclic and lossless: net charge must be zero and the swing must
			// fit in the energy capacity.
			if h0.c-h0.d+h1.c-h1.d != 0 || math.Abs(h0.c-h0.d) > a.Battery.EnergyCapacityKWh {
				continue
			}
			best = math.Min(best, cost(h0)+cost(h1))
		}
	}
	return best
}

func TestOptimalAgainstEnumeration(t *testing.T) {
	in := Input{
		Grid:              model.NewTimeGrid(t0, 2),
		Load:              []float64{3, 4},
		SolarAvailability: []float64{1, 0.25},
		WindAvailability:  []float64{0, 0},
		Assets: model.AssetModel{
			Solar: model.RenewableAsset{CapacityKW: 6, MarginalCost: 0.02},
			Grid:  unlimitedGrid(0.3),
			Battery: model.BatteryStorage{
				EnergyCapacityKWh: 4, PowerLimitKW: 2,
				ChargeEfficiency: 1, DischargeEfficiency: 1, OMCost: 0.01,
			},
		},
	}
	sol, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), in)
	require.NoError(t, err)
	assertPhysical(t, in, sol)

	best := enumerate(in)
	require.False(t, math.IsInf(best, 1))
	assert.LessOrEqual(t, sol.Objective, best+1e-9)
}

func TestOptimalAgainstEnumerationWithoutStorage(t *testing.T) {
	in := Input{
		Grid:              model.NewTimeGrid(t0, 3),
		Load:              []float64{6, 9, 2},
		SolarAvailability: []float64{0.5, 0.1, 1},
		WindAvailability:  []float64{0.2, 1, 0},
		Assets: model.AssetModel{
			Solar:  model.RenewableAsset{CapacityKW: 8, MarginalCost: 0.02},
			Wind:   model.RenewableAsset{CapacityKW: 5, MarginalCost: 0.03},
			Diesel: model.DieselGenerator{CapacityKW: 4, MinLoadFraction: 0.25, MarginalCost: 0.05, Efficiency: 0.3},
			Grid:   unlimitedGrid(0.09),
		},
	}
	sol, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), in)
	require.NoError(t, err)
	assertPhysical(t, in, sol)

	a := in.Assets
	var best float64
	for h := 0; h < 3; h++ {
		hourBest := math.Inf(1)
		for s := 0.0; s <= a.Solar.MaxOutput(in.SolarAvailability[h])+1e-9; s += 0.5 {
			for w := 0.0; w <= a.Wind.MaxOutput(in.WindAvailability[h])+1e-9; w += 0.5 {
				for d := a.Diesel.MinOutputKW(); d <= a.Diesel.CapacityKW+1e-9; d += 0.5 {
					g := in.Load[h] - s - w - d
					if g < 0 {
						continue
					}
					c := a.Solar.MarginalCost*s + a.Wind.MarginalCost*w + a.Diesel.MarginalCost*d + a.Grid.MarginalCost*g
					hourBest = math.Min(hourBest, c)
				}
			}
		}
		best += hourBest
	}
	assert.LessOrEqual(t, sol.Objective, best+1e-9)
	assert.Equal(t, 3, sol.Stats.Blocks, "hours solve independently")
}

func TestOptimizeIsDeterministic(t *testing.T) {
	in := batteryInput([]float64{2, 5, 1, 4}, []float64{1, 0.2, 0.8, 0})
	opt := newTestOptimizer(t, Config{})
	a, err := opt.Optimize(context.Background(), in)
	require.NoError(t, err)
	b, err := opt.Optimize(context.Background(), in)
	require.NoError(t, err)

	a.Stats.Duration, b.Stats.Duration = 0, 0
	assert.Equal(t, a, b)
}

func TestSolverFailureIsSolverError(t *testing.T) {
	old := lpSolve
	lpSolve = func(_ []float64, _ mat.Matrix, _ []float64, _ float64) ([]float64, error) {
		return nil, errors.New("fail")
	}
	defer func() { lpSolve = old }()

	_, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), scenarioA())
	require.ErrorIs(t, err, model.ErrSolver)
	var se *model.SolverError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, model.SolverNumerical, se.Kind)
}

func TestSolverInfeasibleMapsToInfeasibleError(t *testing.T) {
	old := lpSolve
	lpSolve = func(_ []float64, _ mat.Matrix, _ []float64, _ float64) ([]float64, error) {
		return nil, lp.ErrInfeasible
	}
	defer func() { lpSolve = old }()

	_, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), scenarioA())
	var ie *model.InfeasibleError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 0, ie.Hour)
}

func TestSolverPanicIsRecovered(t *testing.T) {
	old := lpSolve
	lpSolve = func(_ []float64, _ mat.Matrix, _ []float64, _ float64) ([]float64, error) {
		panic("boom")
	}
	defer func() { lpSolve = old }()

	_, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), scenarioA())
	assert.ErrorIs(t, err, model.ErrSolver)
}

func TestCorruptSolutionFailsVerification(t *testing.T) {
	old := lpSolve
	lpSolve = func(c []float64, _ mat.Matrix, _ []float64, _ float64) ([]float64, error) {
		return make([]float64, len(c)), nil
	}
	defer func() { lpSolve = old }()

	_, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), scenarioA())
	var se *model.SolverError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Diagnostic, "power balance")
}

func TestCancelledContextIsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol, err := newTestOptimizer(t, Config{}).Optimize(ctx, scenarioA())
	assert.Nil(t, sol)
	assert.True(t, model.IsTimeout(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeadlineDuringSolveIsTimeout(t *testing.T) {
	release := make(chan struct{})
	old := lpSolve
	lpSolve = func(_ []float64, _ mat.Matrix, _ []float64, _ float64) ([]float64, error) {
		<-release
		return nil, errors.New("late")
	}
	t.Cleanup(func() {
		lpSolve = old
		close(release)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	sol, err := newTestOptimizer(t, Config{}).Optimize(ctx, scenarioA())
	assert.Nil(t, sol)
	require.True(t, model.IsTimeout(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCapacityLimit(t *testing.T) {
	in := batteryInput([]float64{2, 2, 2, 2}, []float64{1, 0, 1, 0})
	_, err := newTestOptimizer(t, Config{Method: MethodSimplex, MaxBlockRows: 14}).Optimize(context.Background(), in)
	var se *model.SolverError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, model.SolverCapacity, se.Kind)
}

func TestRelaxedSolutionIsFlagged(t *testing.T) {
	opt := newTestOptimizer(t, Config{})
	relaxed := opt.Relaxed()
	assert.InDelta(t, DefaultTolerance*DefaultRelaxFactor, relaxed.Config().Tolerance, 1e-15)

	sol, err := relaxed.Optimize(context.Background(), scenarioA())
	require.NoError(t, err)
	assert.True(t, sol.Relaxed)
	assert.InDelta(t, 0.60, sol.Objective, 1e-6)
}

func TestZeroLoadCostsNothing(t *testing.T) {
	in := scenarioA()
	in.Load = []float64{0, 0}
	sol, err := newTestOptimizer(t, Config{}).Optimize(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, sol.Objective)
	assert.InDeltaSlice(t, []float64{5, 0}, sol.SolarCurtailed, 1e-9)
}
