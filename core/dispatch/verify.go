package dispatch

import (
	"fmt"
	"math"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// screen rejects hours that no dispatch can serve, before any LP is built.
// Battery discharge is counted at full power, so passing the screen does not
// imply feasibility.
func screen(in *Input, tol float64) error {
	a := in.Assets
	var pmax float64
	if a.Battery.Enabled() {
		pmax = a.Battery.PowerLimitKW
	}
	for t, load := range in.Load {
		supply := a.Solar.MaxOutput(in.SolarAvailability[t]) +
			a.Wind.MaxOutput(in.WindAvailability[t]) +
			a.Diesel.CapacityKW + a.Grid.ImportLimitKW
		if a.Battery.EnergyCapacityKWh > 0 {
			supply += pmax
		}
		if load > supply+tol {
			return &model.InfeasibleError{
				Hour:   t,
				Reason: fmt.Sprintf("load %.6g kW exceeds maximum supply %.6g kW", load, supply),
			}
		}
		if dmin := a.Diesel.MinOutputKW(); dmin > load+pmax+tol {
			return &model.InfeasibleError{
				Hour:   t,
				Reason: fmt.Sprintf("diesel minimum %.6g kW exceeds load %.6g kW plus charging headroom", dmin, load),
			}
		}
	}
	return nil
}

// clampSolution snaps values that sit within tol outside a bound onto the
// bound and fills the curtailment series.
func clampSolution(sol *model.DispatchSolution, in *Input, tol float64) {
	a := in.Assets
	snap := func(v, lo, hi float64) float64 {
		switch {
		case v < lo && v >= lo-tol:
			return lo
		case v > hi && v <= hi+tol:
			return hi
		}
		return v
	}
	n := in.Grid.Steps
	sol.SolarCurtailed = make([]float64, n)
	sol.WindCurtailed = make([]float64, n)
	for t := 0; t < n; t++ {
		solarMax := a.Solar.MaxOutput(in.SolarAvailability[t])
		windMax := a.Wind.MaxOutput(in.WindAvailability[t])
		sol.Solar[t] = snap(sol.Solar[t], 0, solarMax)
		sol.Wind[t] = snap(sol.Wind[t], 0, windMax)
		if a.Diesel.Enabled() {
			sol.Diesel[t] = snap(sol.Diesel[t], a.Diesel.MinOutputKW(), a.Diesel.CapacityKW)
		}
		sol.GridImport[t] = snap(sol.GridImport[t], 0, a.Grid.ImportLimitKW)
		if a.Battery.Enabled() {
			sol.Charge[t] = snap(sol.Charge[t], 0, a.Battery.PowerLimitKW)
			sol.Discharge[t] = snap(sol.Discharge[t], 0, a.Battery.PowerLimitKW)
			sol.SoC[t] = snap(sol.SoC[t], 0, a.Battery.EnergyCapacityKWh)
		}
		sol.SolarCurtailed[t] = math.Max(solarMax-sol.Solar[t], 0)
		sol.WindCurtailed[t] = math.Max(windMax-sol.Wind[t], 0)
	}
	if a.Battery.Enabled() {
		sol.InitialSoC = snap(sol.InitialSoC, 0, a.Battery.EnergyCapacityKWh)
	}
}

// verify checks every physical invariant of sol and returns the largest
// absolute balance residual. A violation is a numerical SolverError.
func verify(sol *model.DispatchSolution, in *Input, tol float64) (float64, error) {
	a := in.Assets
	fail := func(t int, format string, args ...any) error {
		return &model.SolverError{
			Kind:       model.SolverNumerical,
			Diagnostic: fmt.Sprintf("hour %d: ", t) + fmt.Sprintf(format, args...),
		}
	}
	outside := func(v, lo, hi float64) bool { return v < lo || v > hi }

	var maxResidual float64
	for t := 0; t < in.Grid.Steps; t++ {
		supply := sol.Solar[t] + sol.Wind[t] + sol.Diesel[t] + sol.GridImport[t] + sol.Discharge[t] - sol.Charge[t]
		r := math.Abs(supply - in.Load[t])
		maxResidual = math.Max(maxResidual, r)
		if r > tol {
			return 0, fail(t, "power balance off by %.3g kW", r)
		}
		if outside(sol.Solar[t], 0, a.Solar.MaxOutput(in.SolarAvailability[t])) {
			return 0, fail(t, "solar %.6g outside its availability", sol.Solar[t])
		}
		if outside(sol.Wind[t], 0, a.Wind.MaxOutput(in.WindAvailability[t])) {
			return 0, fail(t, "wind %.6g outside its availability", sol.Wind[t])
		}
		if outside(sol.GridImport[t], 0, a.Grid.ImportLimitKW) {
			return 0, fail(t, "grid import %.6g outside [0, %g]", sol.GridImport[t], a.Grid.ImportLimitKW)
		}
		if a.Diesel.Enabled() {
			if outside(sol.Diesel[t], a.Diesel.MinOutputKW(), a.Diesel.CapacityKW) {
				return 0, fail(t, "diesel %.6g outside [%g, %g]", sol.Diesel[t], a.Diesel.MinOutputKW(), a.Diesel.CapacityKW)
			}
		} else if sol.Diesel[t] != 0 {
			return 0, fail(t, "disabled diesel dispatched %.6g", sol.Diesel[t])
		}
		if !a.Battery.Enabled() {
			if sol.Charge[t] != 0 || sol.Discharge[t] != 0 {
				return 0, fail(t, "disabled battery dispatched")
			}
			continue
		}
		p, e := a.Battery.PowerLimitKW, a.Battery.EnergyCapacityKWh
		if outside(sol.Charge[t], 0, p) || outside(sol.Discharge[t], 0, p) {
			return 0, fail(t, "battery power outside [0, %g]", p)
		}
		if outside(sol.SoC[t], 0, e) {
			return 0, fail(t, "state of charge %.6g outside [0, %g]", sol.SoC[t], e)
		}
		prev := sol.InitialSoC
		if t > 0 {
			prev = sol.SoC[t-1]
		}
		want := prev + a.Battery.ChargeEfficiency*sol.Charge[t] - sol.Discharge[t]/a.Battery.DischargeEfficiency
		if d := math.Abs(sol.SoC[t] - want); d > tol {
			return 0, fail(t, "state of charge drifts %.3g kWh from its dynamics", d)
		}
	}
	if a.Battery.Enabled() && sol.Boundary == model.BoundaryCyclic {
		if d := math.Abs(sol.SoC[len(sol.SoC)-1] - sol.InitialSoC); d > tol {
			return 0, fail(len(sol.SoC)-1, "cyclic boundary off by %.3g kWh", d)
		}
	}
	return maxResidual, nil
}
