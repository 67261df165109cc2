package dispatch

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// The chain solver handles the storage-coupled LP exactly by dynamic
// programming over the state of charge. For a fixed SoC change the cheapest
// hourly dispatch is a merit-order fill, so each hour contributes a convex
// piecewise-linear cost of that change. The value function of every hour is
// the infimal convolution of the previous one with that cost, restricted to
// [0, E].

// supply is a block of generation above the must-run floor.
type supply struct {
	asset    model.Asset
	kw, cost float64
}

// stage is one hour of the chain.
type stage struct {
	load   float64
	lo, hi float64 // feasible generation range
	base   float64 // cost of generating lo
	merit  []supply

	etaC, etaD, power, om float64
}

func newStage(in *Input, t int) stage {
	a := in.Assets
	s := stage{load: in.Load[t], etaC: 1, etaD: 1}
	if a.Battery.Enabled() {
		b := a.Battery
		s.etaC, s.etaD, s.power, s.om = b.ChargeEfficiency, b.DischargeEfficiency, b.PowerLimitKW, b.OMCost
	}
	var dieselExtra float64
	if a.Diesel.Enabled() {
		s.lo = a.Diesel.MinOutputKW()
		s.base = s.lo * a.Diesel.MarginalCost
		dieselExtra = a.Diesel.CapacityKW - s.lo
	}
	blocks := []supply{
		{model.AssetSolar, a.Solar.MaxOutput(in.SolarAvailability[t]), a.Solar.MarginalCost},
		{model.AssetWind, a.Wind.MaxOutput(in.WindAvailability[t]), a.Wind.MarginalCost},
		{model.AssetDiesel, dieselExtra, a.Diesel.MarginalCost},
		{model.AssetGrid, a.Grid.ImportLimitKW, a.Grid.MarginalCost},
	}
	s.hi = s.lo
	for _, b := range blocks {
		if b.kw > 0 {
			s.merit = append(s.merit, b)
			s.hi += b.kw
		}
	}
	sort.SliceStable(s.merit, func(i, j int) bool { return s.merit[i].cost < s.merit[j].cost })
	return s
}

// generation is the cheapest cost of producing y in [lo, hi].
func (s *stage) generation(y float64) float64 {
	v, rem := s.base, y-s.lo
	for _, m := range s.merit {
		if rem <= 0 {
			break
		}
		q := math.Min(m.kw, rem)
		v += q * m.cost
		rem -= q
	}
	return v
}

// dispatch splits y over the assets in merit order.
func (s *stage) dispatch(y float64) map[model.Asset]float64 {
	out := map[model.Asset]float64{}
	if s.lo > 0 {
		out[model.AssetDiesel] = s.lo
	}
	rem := y - s.lo
	for _, m := range s.merit {
		if rem <= 0 {
			break
		}
		q := math.Min(m.kw, rem)
		out[m.asset] += q
		rem -= q
	}
	return out
}

// flows returns the cheapest charge and discharge that change the SoC by
// delta, and the generation y they leave. ok is false when none exist.
func (s *stage) flows(delta, eps float64) (c, d, y float64, ok bool) {
	if delta >= 0 {
		c = delta / s.etaC
	} else {
		d = -delta * s.etaD
	}
	y = s.load + c - d
	if c > s.power+eps || d > s.power+eps || y > s.hi+eps {
		return 0, 0, 0, false
	}
	if y >= s.lo-eps {
		return c, d, y, true
	}
	// Surplus below the must-run floor is absorbed by charging and
	// discharging together; each kWh cycled loses 1-etaC*etaD.
	r := s.etaC * s.etaD
	if r >= 1 {
		return 0, 0, 0, false
	}
	burn := (s.lo - y) / (1 - r)
	c += burn
	d += r * burn
	if c > s.power+eps || d > s.power+eps {
		return 0, 0, 0, false
	}
	return c, d, s.lo, true
}

func (s *stage) cost(delta, eps float64) float64 {
	c, d, y, ok := s.flows(delta, eps)
	if !ok {
		return math.Inf(1)
	}
	return s.generation(y) + s.om*(c+d)
}

// inverse is the SoC change that leaves exactly y to generate, ignoring
// simultaneous charge and discharge.
func (s *stage) inverse(y float64) float64 {
	if y >= s.load {
		return (y - s.load) * s.etaC
	}
	return (y - s.load) / s.etaD
}

// costFunction returns the stage cost as a convex function of the SoC change.
// ok is false when no change is feasible in this hour.
func (s *stage) costFunction(eps float64) (convexPWL, bool) {
	dmax := s.power * s.etaC
	if s.load+s.power > s.hi {
		dmax = math.Min(dmax, s.inverse(s.hi))
	}
	dmin := -s.power / s.etaD
	if math.IsInf(s.cost(dmin, eps), 1) {
		// Feasibility is monotone below the no-burn point.
		good := s.inverse(s.lo)
		if math.IsInf(s.cost(good, eps), 1) {
			return convexPWL{}, false
		}
		bad := dmin
		for i := 0; i < 100 && good-bad > eps; i++ {
			mid := (good + bad) / 2
			if math.IsInf(s.cost(mid, eps), 1) {
				bad = mid
			} else {
				good = mid
			}
		}
		dmin = good
	}
	if dmin > dmax+eps {
		return convexPWL{}, false
	}
	dmax = math.Max(dmax, dmin)

	pts := []float64{dmin, dmax, 0, s.inverse(s.lo)}
	y := s.lo
	for _, m := range s.merit {
		y += m.kw
		pts = append(pts, s.inverse(y))
	}
	sort.Float64s(pts)
	xs := []float64{dmin}
	for _, x := range pts {
		if x > xs[len(xs)-1]+eps && x < dmax-eps {
			xs = append(xs, x)
		}
	}
	if dmax > xs[len(xs)-1] {
		xs = append(xs, dmax)
	}

	f := convexPWL{x0: xs[0], f0: s.cost(xs[0], eps)}
	prev := f.f0
	for k := 1; k < len(xs); k++ {
		v := s.cost(xs[k], eps)
		f.add(xs[k]-xs[k-1], (v-prev)/(xs[k]-xs[k-1]))
		prev = v
	}
	return f, true
}

type chain struct {
	stages []stage
	costs  []convexPWL
	energy float64
	eps    float64
}

func newChain(in *Input) (*chain, error) {
	a := in.Assets
	ch := &chain{stages: make([]stage, in.Grid.Steps), costs: make([]convexPWL, in.Grid.Steps)}
	scale := 1.0
	if a.Battery.Enabled() {
		ch.energy = a.Battery.EnergyCapacityKWh
		scale = math.Max(scale, math.Max(ch.energy, a.Battery.PowerLimitKW))
	}
	ch.eps = 1e-10 * scale
	for t := range ch.stages {
		ch.stages[t] = newStage(in, t)
		f, ok := ch.stages[t].costFunction(ch.eps)
		if !ok {
			return nil, &model.InfeasibleError{Hour: t, Reason: "no battery flow balances the hour"}
		}
		ch.costs[t] = f
	}
	return ch, nil
}

// forward returns the value function of SoC(-1), SoC(0), ... SoC(T-1) given
// the value function of SoC(-1).
func (ch *chain) forward(ctx context.Context, start convexPWL) ([]convexPWL, error) {
	vals := make([]convexPWL, len(ch.costs)+1)
	vals[0] = start
	for t, f := range ch.costs {
		if err := ctx.Err(); err != nil {
			return nil, timeoutError(err)
		}
		v, ok := infConv(vals[t], f).restrict(0, ch.energy, ch.eps)
		if !ok {
			return nil, &model.InfeasibleError{Hour: t, Reason: "state of charge cannot stay within the battery capacity"}
		}
		vals[t+1] = v
	}
	return vals, nil
}

// backtrack recovers SoC(-1..T-1) from the value functions and SoC(T-1).
func (ch *chain) backtrack(vals []convexPWL, last float64) []float64 {
	soc := make([]float64, len(vals))
	soc[len(vals)-1] = last
	for t := len(ch.costs) - 1; t >= 0; t-- {
		soc[t] = ch.previous(vals[t], ch.costs[t], soc[t+1])
	}
	return soc
}

// previous picks the SoC before an hour that reaches s at least cost. Ties go
// to the smallest change.
func (ch *chain) previous(prev, f convexPWL, s float64) float64 {
	lo := math.Max(prev.x0, s-f.end())
	hi := math.Min(prev.end(), s-f.x0)
	if lo > hi {
		return hi
	}
	cands := []float64{lo, hi}
	for _, x := range prev.breakpoints() {
		if x > lo && x < hi {
			cands = append(cands, x)
		}
	}
	for _, x := range f.breakpoints() {
		if p := s - x; p > lo && p < hi {
			cands = append(cands, p)
		}
	}
	best, bestV := hi, math.Inf(1)
	for _, x := range cands {
		v := prev.eval(x, ch.eps) + f.eval(s-x, ch.eps)
		tie := 1e-12 * math.Max(1, math.Abs(bestV))
		if v < bestV-tie || (v <= bestV+tie && math.Abs(s-x) < math.Abs(s-best)) {
			best, bestV = x, v
		}
	}
	return best
}

// solveOpen solves with SoC(-1) given by start and SoC(T-1) free.
func (ch *chain) solveOpen(ctx context.Context, start convexPWL) ([]float64, error) {
	vals, err := ch.forward(ctx, start)
	if err != nil {
		return nil, err
	}
	return ch.backtrack(vals, vals[len(vals)-1].argmin()), nil
}

// solveCyclic solves with SoC(-1) = SoC(T-1). The optimal cost of a cycle
// through s is convex in s, so a golden-section search over the levels that
// admit a cycle finds the best one.
func (ch *chain) solveCyclic(ctx context.Context) ([]float64, error) {
	sA, sB, err := ch.cycleRange()
	if err != nil {
		return nil, err
	}
	cycle := func(s float64) (float64, error) {
		vals, err := ch.forward(ctx, pointPWL(s))
		if err != nil {
			if errors.Is(err, model.ErrInfeasible) {
				return math.Inf(1), nil
			}
			return 0, err
		}
		return vals[len(vals)-1].eval(s, ch.eps), nil
	}

	best, bestV := sA, math.Inf(1)
	try := func(s float64) (float64, error) {
		v, err := cycle(s)
		if err == nil && v < bestV {
			best, bestV = s, v
		}
		return v, err
	}
	if _, err := try(sA); err != nil {
		return nil, err
	}
	if _, err := try(sB); err != nil {
		return nil, err
	}
	const invPhi = 0.6180339887498949
	a, b := sA, sB
	x1, x2 := b-invPhi*(b-a), a+invPhi*(b-a)
	f1, err := try(x1)
	if err != nil {
		return nil, err
	}
	f2, err := try(x2)
	if err != nil {
		return nil, err
	}
	for i := 0; i < 200 && b-a > ch.eps; i++ {
		if f1 <= f2 {
			b, x2, f2 = x2, x1, f1
			x1 = b - invPhi*(b-a)
			if f1, err = try(x1); err != nil {
				return nil, err
			}
		} else {
			a, x1, f1 = x1, x2, f2
			x2 = a + invPhi*(b-a)
			if f2, err = try(x2); err != nil {
				return nil, err
			}
		}
	}
	if math.IsInf(bestV, 1) {
		return nil, &model.InfeasibleError{Hour: -1, Reason: "no cyclic state-of-charge trajectory exists"}
	}
	vals, err := ch.forward(ctx, pointPWL(best))
	if err != nil {
		return nil, err
	}
	soc := ch.backtrack(vals, best)
	soc[0] = best
	return soc, nil
}

// cycleRange bounds the levels s from which the chain can return to s.
func (ch *chain) cycleRange() (float64, float64, error) {
	u, v := 0.0, ch.energy
	for t := len(ch.costs) - 1; t >= 0; t-- {
		f := ch.costs[t]
		u, v = math.Max(0, u-f.end()), math.Min(ch.energy, v-f.x0)
		if u > v+ch.eps {
			return 0, 0, &model.InfeasibleError{Hour: t, Reason: "state of charge cannot stay within the battery capacity"}
		}
	}
	v = math.Max(u, v)
	reach := func(s float64) (float64, float64) {
		a, b := s, s
		for _, f := range ch.costs {
			a, b = math.Max(0, a+f.x0), math.Min(ch.energy, b+f.end())
		}
		return a, b
	}
	// Both reach(s)-s bounds are nonincreasing in s.
	upOK := func(s float64) bool {
		_, b := reach(s)
		return b-s >= -ch.eps
	}
	downOK := func(s float64) bool {
		a, _ := reach(s)
		return a-s <= ch.eps
	}
	noCycle := &model.InfeasibleError{Hour: -1, Reason: "no cyclic state-of-charge trajectory exists"}
	if !upOK(u) || !downOK(v) {
		return 0, 0, noCycle
	}
	sB := v
	if !upOK(v) {
		good, bad := u, v
		for i := 0; i < 200 && bad-good > ch.eps; i++ {
			if mid := (good + bad) / 2; upOK(mid) {
				good = mid
			} else {
				bad = mid
			}
		}
		sB = good
	}
	sA := u
	if !downOK(u) {
		bad, good := u, v
		for i := 0; i < 200 && good-bad > ch.eps; i++ {
			if mid := (good + bad) / 2; downOK(mid) {
				good = mid
			} else {
				bad = mid
			}
		}
		sA = good
	}
	if sA > sB+ch.eps {
		return 0, 0, noCycle
	}
	return math.Min(sA, sB), sB, nil
}

// result turns a SoC trajectory into per-hour dispatch.
func (ch *chain) result(soc []float64) *horizonResult {
	n := len(ch.stages)
	res := newHorizonResult(n)
	res.initialSoC = soc[0]
	for t := range ch.stages {
		s := &ch.stages[t]
		delta := soc[t+1] - soc[t]
		f := ch.costs[t]
		delta = math.Min(math.Max(delta, f.x0), f.end())
		c, d, y, ok := s.flows(delta, ch.eps)
		if !ok {
			c, d, y = 0, 0, s.load
		}
		out := s.dispatch(y)
		res.solar[t] = out[model.AssetSolar]
		res.wind[t] = out[model.AssetWind]
		res.diesel[t] = out[model.AssetDiesel]
		res.grid[t] = out[model.AssetGrid]
		res.charge[t] = c
		res.discharge[t] = d
		res.soc[t] = soc[t+1]
	}
	return res
}
