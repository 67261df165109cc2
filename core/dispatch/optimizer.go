package dispatch

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/WubeDegife/Microgrid-Optimization/core/logger"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"gonum.org/v1/gonum/floats"
)

// Input is everything one optimization run needs. Series must all have
// Grid.Steps samples.
type Input struct {
	Grid              model.TimeGrid
	Load              []float64
	SolarAvailability []float64
	WindAvailability  []float64
	Assets            model.AssetModel
}

// Validate checks series lengths and ranges. It returns a ValidationError.
func (in *Input) Validate() error {
	if err := in.Grid.Validate(); err != nil {
		return err
	}
	series := []struct {
		name     string
		v        []float64
		fraction bool
	}{
		{"load", in.Load, false},
		{"solar_availability", in.SolarAvailability, true},
		{"wind_availability", in.WindAvailability, true},
	}
	for _, s := range series {
		if len(s.v) != in.Grid.Steps {
			return model.NewValidationError(s.name, "expected %d samples, got %d", in.Grid.Steps, len(s.v))
		}
		for t, v := range s.v {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return model.NewValidationError(s.name, "sample %d is %g", t, v)
			}
			if s.fraction && v > 1 {
				return model.NewValidationError(s.name, "sample %d is %g, availability must be in [0,1]", t, v)
			}
		}
	}
	return nil
}

// PeakLoad returns max(load), or 0 for an empty series.
func (in *Input) PeakLoad() float64 {
	if len(in.Load) == 0 {
		return 0
	}
	return floats.Max(in.Load)
}

// Optimizer is the time-resolved cost-minimizing dispatch engine. It keeps no
// state between calls and is safe for concurrent use.
type Optimizer struct {
	cfg     Config
	log     logger.Logger
	relaxed bool
}

// NewOptimizer validates cfg after filling defaults.
func NewOptimizer(cfg Config, log logger.Logger) (*Optimizer, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Optimizer{cfg: cfg, log: logger.OrNop(log)}, nil
}

// Config returns the effective settings.
func (o *Optimizer) Config() Config { return o.cfg }

// Relaxed returns an optimizer whose tolerances are scaled by RelaxFactor.
// Solutions it produces are flagged Relaxed.
func (o *Optimizer) Relaxed() *Optimizer {
	return &Optimizer{cfg: o.cfg.Relaxed(), log: o.log, relaxed: true}
}

// Optimize builds and solves the dispatch LP. On failure no partial solution
// is returned: the error is a ValidationError, ConfigurationError,
// InfeasibleError or SolverError.
func (o *Optimizer) Optimize(ctx context.Context, in Input) (*model.DispatchSolution, error) {
	start := time.Now()
	sol, err := o.optimize(ctx, &in)
	elapsed := time.Since(start)
	observeSolve(err, elapsed)
	if err != nil {
		o.log.Warnf("dispatch over %d steps failed: %v", in.Grid.Steps, err)
		return nil, err
	}
	sol.Stats.Duration = elapsed
	observeSize(sol.Stats)
	o.log.Infof("dispatch over %d steps solved by %s: objective=%.4f blocks=%d in %s",
		in.Grid.Steps, sol.Stats.Method, sol.Objective, sol.Stats.Blocks, elapsed)
	return sol, nil
}

func (o *Optimizer) optimize(ctx context.Context, in *Input) (*model.DispatchSolution, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	a := in.Assets
	if err := a.Validate(); err != nil {
		return nil, err
	}
	storage := a.Battery.Enabled()
	if storage && o.cfg.Boundary == model.BoundaryFixed && o.cfg.InitialSoCKWh > a.Battery.EnergyCapacityKWh {
		return nil, model.NewConfigurationError("solver.initial_soc_kwh",
			"%g exceeds battery energy capacity %g", o.cfg.InitialSoCKWh, a.Battery.EnergyCapacityKWh)
	}
	tol := o.absTolerance(in)
	if err := screen(in, tol); err != nil {
		return nil, err
	}

	h := horizon{policy: o.cfg.Boundary, initial: o.cfg.InitialSoCKWh}
	var res *horizonResult
	var err error
	if o.cfg.Method == MethodChain || (o.cfg.Method == MethodAuto && storage) {
		res, err = o.solveChain(ctx, in, h)
	} else {
		res, err = o.solveHorizon(ctx, in, h)
	}
	if err != nil {
		return nil, err
	}

	sol := res.solution(in, o.cfg.Boundary)
	sol.Relaxed = o.relaxed
	clampSolution(sol, in, tol)
	residual, err := verify(sol, in, tol)
	if err != nil {
		return nil, err
	}
	sol.Stats.MaxBalanceResidual = residual
	sol.Objective = objective(sol, a)
	return sol, nil
}

// absTolerance scales BalanceTolerance by peak load, with a floor of 1 kW so
// that an all-zero load still gets a usable tolerance.
func (o *Optimizer) absTolerance(in *Input) float64 {
	return o.cfg.BalanceTolerance * math.Max(in.PeakLoad(), 1)
}

// horizonResult holds the raw per-hour values of a solve.
type horizonResult struct {
	solar, wind, diesel, grid []float64
	charge, discharge, soc    []float64
	initialSoC                float64
	stats                     model.SolveStats
}

func newHorizonResult(n int) *horizonResult {
	return &horizonResult{
		solar: make([]float64, n), wind: make([]float64, n),
		diesel: make([]float64, n), grid: make([]float64, n),
		charge: make([]float64, n), discharge: make([]float64, n),
		soc: make([]float64, n),
	}
}

// solveHorizon solves in as one problem anchored by h.
func (o *Optimizer) solveHorizon(ctx context.Context, in *Input, h horizon) (*horizonResult, error) {
	p, l := buildProblem(in, h)
	tol := o.absTolerance(in)
	ps, err := presolve(p, tol)
	if err != nil {
		return nil, err
	}
	o.log.Debugw("lp built", map[string]any{
		"steps":   in.Grid.Steps,
		"columns": p.NumColumns(),
		"rows":    p.NumRows(),
		"blocks":  len(ps.blocks),
	})
	for _, blk := range ps.blocks {
		if m := blk.stdRows(p); m > o.cfg.MaxBlockRows {
			return nil, &model.SolverError{
				Kind:       model.SolverCapacity,
				Diagnostic: fmt.Sprintf("block of %d standard-form rows exceeds limit %d", m, o.cfg.MaxBlockRows),
			}
		}
	}

	x := make([]float64, p.NumColumns())
	copy(x, ps.value)
	for _, blk := range ps.blocks {
		sf := ps.standardForm(p, blk)
		xs, err := solveBlock(ctx, sf, o.cfg.Tolerance)
		if err != nil {
			return nil, classify(err, p, blk)
		}
		for k, j := range sf.cols {
			x[j] = p.cols[j].lower + xs[k]
		}
	}

	res := newHorizonResult(in.Grid.Steps)
	val := func(j int) float64 {
		if j < 0 {
			return 0
		}
		return x[j]
	}
	for t := 0; t < in.Grid.Steps; t++ {
		res.solar[t] = val(l.solar[t])
		res.wind[t] = val(l.wind[t])
		res.diesel[t] = val(l.diesel[t])
		res.grid[t] = val(l.grid[t])
		res.charge[t] = val(l.charge[t])
		res.discharge[t] = val(l.discharge[t])
		res.soc[t] = val(l.soc[t])
	}
	if in.Assets.Battery.Enabled() {
		switch h.policy {
		case model.BoundaryCyclic:
			res.initialSoC = res.soc[in.Grid.Steps-1]
		case model.BoundaryFree:
			res.initialSoC = val(l.socInit)
		default:
			res.initialSoC = h.initial
		}
	}
	res.stats = model.SolveStats{
		Variables:   p.NumColumns(),
		Constraints: p.NumRows(),
		Blocks:      len(ps.blocks),
		Method:      string(MethodSimplex),
	}
	return res, nil
}

// solveChain solves in with the chain solver. The reported sizes are those of
// the equivalent LP.
func (o *Optimizer) solveChain(ctx context.Context, in *Input, h horizon) (*horizonResult, error) {
	ch, err := newChain(in)
	if err != nil {
		return nil, err
	}
	var soc []float64
	switch {
	case !in.Assets.Battery.Enabled():
		soc, err = ch.solveOpen(ctx, pointPWL(0))
	case h.policy == model.BoundaryCyclic:
		soc, err = ch.solveCyclic(ctx)
	case h.policy == model.BoundaryFree:
		soc, err = ch.solveOpen(ctx, flatPWL(0, ch.energy))
	default:
		soc, err = ch.solveOpen(ctx, pointPWL(h.initial))
	}
	if err != nil {
		return nil, err
	}
	res := ch.result(soc)
	if h.policy == model.BoundaryFixed && in.Assets.Battery.Enabled() {
		res.initialSoC = h.initial
	}
	p, _ := buildProblem(in, h)
	res.stats = model.SolveStats{
		Variables:   p.NumColumns(),
		Constraints: p.NumRows(),
		Blocks:      1,
		Method:      string(MethodChain),
	}
	return res, nil
}

func (r *horizonResult) solution(in *Input, policy model.BoundaryPolicy) *model.DispatchSolution {
	load := make([]float64, len(in.Load))
	copy(load, in.Load)
	return &model.DispatchSolution{
		Grid:       in.Grid,
		Load:       load,
		Solar:      r.solar,
		Wind:       r.wind,
		Diesel:     r.diesel,
		GridImport: r.grid,
		Charge:     r.charge,
		Discharge:  r.discharge,
		SoC:        r.soc,
		InitialSoC: r.initialSoC,
		Status:     model.StatusOptimal,
		Boundary:   policy,
		Stats:      r.stats,
	}
}

// objective recomputes the total cost from the final series.
func objective(sol *model.DispatchSolution, a model.AssetModel) float64 {
	return a.Solar.MarginalCost*floats.Sum(sol.Solar) +
		a.Wind.MarginalCost*floats.Sum(sol.Wind) +
		a.Diesel.MarginalCost*floats.Sum(sol.Diesel) +
		a.Grid.MarginalCost*floats.Sum(sol.GridImport) +
		a.Battery.OMCost*(floats.Sum(sol.Charge)+floats.Sum(sol.Discharge))
}
