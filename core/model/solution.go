package model

import (
	"time"

	"gonum.org/v1/gonum/floats"
)

// Asset names a dispatchable resource of the microgrid.
type Asset string

const (
	AssetSolar   Asset = "Solar"
	AssetWind    Asset = "Wind"
	AssetDiesel  Asset = "Diesel"
	AssetGrid    Asset = "Grid"
	AssetBattery Asset = "Battery"
)

// Assets lists every asset in export column order.
var Assets = []Asset{AssetSolar, AssetWind, AssetDiesel, AssetGrid, AssetBattery}

// BoundaryPolicy fixes SoC(-1), the state of charge before the first step.
type BoundaryPolicy string

const (
	// BoundaryCyclic ties SoC(-1) to the SoC of the last step.
	BoundaryCyclic BoundaryPolicy = "cyclic"
	// BoundaryFixed starts from a configured initial SoC; the final SoC is free.
	BoundaryFixed BoundaryPolicy = "fixed"
	// BoundaryFree lets the optimizer choose SoC(-1) within [0, E].
	BoundaryFree BoundaryPolicy = "free"
)

// Valid reports whether p is one of the known policies.
func (p BoundaryPolicy) Valid() bool {
	switch p {
	case BoundaryCyclic, BoundaryFixed, BoundaryFree:
		return true
	}
	return false
}

// SolveStatus is the outcome recorded on a solution. Failures are returned as
// errors, so a solution only ever carries StatusOptimal.
type SolveStatus string

const StatusOptimal SolveStatus = "optimal"

// SolveStats carries diagnostics about one optimizer call.
type SolveStats struct {
	Variables          int           `json:"variables"`
	Constraints        int           `json:"constraints"`
	Blocks             int           `json:"blocks"`
	// Method names the solver that produced the solution.
	Method             string        `json:"method"`
	Duration           time.Duration `json:"duration"`
	MaxBalanceResidual float64       `json:"max_balance_residual"`
}

// DispatchSolution holds the per-step dispatch of one run. All series have
// length Grid.Steps. SoC[t] is the state of charge at the end of step t.
type DispatchSolution struct {
	Grid       TimeGrid  `json:"grid"`
	Load       []float64 `json:"load"`
	Solar      []float64 `json:"solar"`
	Wind       []float64 `json:"wind"`
	Diesel     []float64 `json:"diesel"`
	GridImport []float64 `json:"grid_import"`
	Charge     []float64 `json:"charge"`
	Discharge  []float64 `json:"discharge"`
	SoC        []float64 `json:"soc"`
	// InitialSoC is SoC(-1) as resolved by the boundary policy.
	InitialSoC float64 `json:"initial_soc"`

	SolarCurtailed []float64 `json:"solar_curtailed"`
	WindCurtailed  []float64 `json:"wind_curtailed"`

	Objective float64        `json:"objective"`
	Status    SolveStatus    `json:"status"`
	Boundary  BoundaryPolicy `json:"boundary"`
	Relaxed   bool           `json:"relaxed"`
	Stats     SolveStats     `json:"stats"`
}

// Series returns the dispatch series of an asset. For the battery it is the
// net discharge (discharge - charge).
func (s *DispatchSolution) Series(a Asset) []float64 {
	switch a {
	case AssetSolar:
		return s.Solar
	case AssetWind:
		return s.Wind
	case AssetDiesel:
		return s.Diesel
	case AssetGrid:
		return s.GridImport
	case AssetBattery:
		net := make([]float64, len(s.Discharge))
		floats.SubTo(net, s.Discharge, s.Charge)
		return net
	}
	return nil
}

// EnergyKWh sums the series of an asset over the window.
func (s *DispatchSolution) EnergyKWh(a Asset) float64 {
	series := s.Series(a)
	if len(series) == 0 {
		return 0
	}
	return floats.Sum(series)
}
