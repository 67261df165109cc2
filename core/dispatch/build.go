package dispatch

import (
	"math"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// horizon fixes how the storage trajectory is anchored for one solve.
type horizon struct {
	policy  model.BoundaryPolicy
	initial float64 // SoC(-1) under BoundaryFixed
}

// layout maps every hour to its column indices. -1 marks an absent variable.
type layout struct {
	solar, wind, diesel, grid []int
	charge, discharge, soc    []int
	socInit                   int
}

func newLayout(n int) layout {
	mk := func() []int {
		s := make([]int, n)
		for i := range s {
			s[i] = -1
		}
		return s
	}
	return layout{
		solar: mk(), wind: mk(), diesel: mk(), grid: mk(),
		charge: mk(), discharge: mk(), soc: mk(),
		socInit: -1,
	}
}

// buildProblem assembles the dispatch LP for in. Diesel keeps its minimum as
// a column lower bound; the grid column is left unbounded above when the
// import limit can never bind.
func buildProblem(in *Input, h horizon) (*Problem, layout) {
	a := in.Assets
	n := in.Grid.Steps
	l := newLayout(n)
	p := &Problem{}

	storage := a.Battery.Enabled()
	var pmax float64
	if storage {
		pmax = a.Battery.PowerLimitKW
	}

	for t := 0; t < n; t++ {
		if a.Solar.CapacityKW > 0 {
			l.solar[t] = p.AddColumn("solar", t, 0, a.Solar.MaxOutput(in.SolarAvailability[t]), a.Solar.MarginalCost)
		}
		if a.Wind.CapacityKW > 0 {
			l.wind[t] = p.AddColumn("wind", t, 0, a.Wind.MaxOutput(in.WindAvailability[t]), a.Wind.MarginalCost)
		}
		if a.Diesel.Enabled() {
			l.diesel[t] = p.AddColumn("diesel", t, a.Diesel.MinOutputKW(), a.Diesel.CapacityKW, a.Diesel.MarginalCost)
		}
		gridMax := a.Grid.ImportLimitKW
		if gridMax >= in.Load[t]+pmax {
			gridMax = math.Inf(1)
		}
		l.grid[t] = p.AddColumn("grid", t, 0, gridMax, a.Grid.MarginalCost)
		if storage {
			l.charge[t] = p.AddColumn("charge", t, 0, pmax, a.Battery.OMCost)
			l.discharge[t] = p.AddColumn("discharge", t, 0, pmax, a.Battery.OMCost)
			l.soc[t] = p.AddColumn("soc", t, 0, a.Battery.EnergyCapacityKWh, 0)
		}
	}
	if !storage {
		for t := 0; t < n; t++ {
			p.AddRow("balance", t, in.Load[t],
				term{l.solar[t], 1}, term{l.wind[t], 1}, term{l.diesel[t], 1}, term{l.grid[t], 1})
		}
		return p, l
	}

	if h.policy == model.BoundaryFree {
		l.socInit = p.AddColumn("soc_init", 0, 0, a.Battery.EnergyCapacityKWh, 0)
	}

	etaC, etaD := a.Battery.ChargeEfficiency, a.Battery.DischargeEfficiency
	for t := 0; t < n; t++ {
		p.AddRow("balance", t, in.Load[t],
			term{l.solar[t], 1}, term{l.wind[t], 1}, term{l.diesel[t], 1}, term{l.grid[t], 1},
			term{l.discharge[t], 1}, term{l.charge[t], -1})

		prev, rhs := -1, 0.0
		switch {
		case t > 0:
			prev = l.soc[t-1]
		case h.policy == model.BoundaryCyclic:
			prev = l.soc[n-1]
		case h.policy == model.BoundaryFree:
			prev = l.socInit
		default:
			rhs = h.initial
		}
		p.AddRow("soc", t, rhs,
			term{l.soc[t], 1}, term{prev, -1},
			term{l.charge[t], -etaC}, term{l.discharge[t], 1 / etaD})
	}
	return p, l
}
