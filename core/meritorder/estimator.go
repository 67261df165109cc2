// Package meritorder implements the non time-resolved baseline: total demand
// is met greedily from the cheapest aggregate sources. The result is a lower
// bound on cost. It ignores hourly balance, storage coupling and the diesel
// minimum, so it is not a physically realizable dispatch.
package meritorder

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"

	"github.com/WubeDegife/Microgrid-Optimization/core/logger"
	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// Order is the fixed iteration order used to break cost ties.
var Order = []model.Asset{
	model.AssetSolar,
	model.AssetBattery,
	model.AssetWind,
	model.AssetGrid,
	model.AssetDiesel,
}

// Source is one asset's aggregate availability over the window.
type Source struct {
	Asset        model.Asset
	AvailableKWh float64
	MarginalCost float64
}

// Aggregate computes total demand and per-asset availability: the energy
// the renewables could deliver, the battery energy capacity, and
// UnlimitedEnergyKWh for grid and diesel. Disabled assets are listed with
// zero availability.
func Aggregate(load, solarAvail, windAvail []float64, a model.AssetModel) (float64, []Source) {
	renewable := func(r model.RenewableAsset, avail []float64) float64 {
		if r.CapacityKW <= 0 || len(avail) == 0 {
			return 0
		}
		return r.CapacityKW * floats.Sum(avail)
	}
	unlimited := func(enabled bool) float64 {
		if enabled {
			return model.UnlimitedEnergyKWh
		}
		return 0
	}
	var demand float64
	if len(load) > 0 {
		demand = floats.Sum(load)
	}
	var battery float64
	if a.Battery.Enabled() {
		battery = a.Battery.EnergyCapacityKWh
	}
	return demand, []Source{
		{Asset: model.AssetSolar, AvailableKWh: renewable(a.Solar, solarAvail), MarginalCost: a.Solar.MarginalCost},
		{Asset: model.AssetBattery, AvailableKWh: battery, MarginalCost: a.Battery.OMCost},
		{Asset: model.AssetWind, AvailableKWh: renewable(a.Wind, windAvail), MarginalCost: a.Wind.MarginalCost},
		{Asset: model.AssetGrid, AvailableKWh: unlimited(a.Grid.ImportLimitKW > 0), MarginalCost: a.Grid.MarginalCost},
		{Asset: model.AssetDiesel, AvailableKWh: unlimited(a.Diesel.Enabled()), MarginalCost: a.Diesel.MarginalCost},
	}
}

// Estimator allocates demand in ascending marginal-cost order.
type Estimator struct {
	log logger.Logger
}

// NewEstimator returns an Estimator. A nil logger discards output.
func NewEstimator(log logger.Logger) *Estimator {
	return &Estimator{log: logger.OrNop(log)}
}

// Allocate assigns min(remaining, available) to each source in merit order
// until the demand is met or the sources run out. Sources are first put in
// Order, so equal costs are resolved the same way whatever the caller passed.
func (e *Estimator) Allocate(demandKWh float64, sources []Source) (*model.MeritOrderAllocation, error) {
	if math.IsNaN(demandKWh) || math.IsInf(demandKWh, 0) || demandKWh < 0 {
		return nil, model.NewValidationError("demand", "must be a finite value >= 0, got %g", demandKWh)
	}
	for _, s := range sources {
		if math.IsNaN(s.AvailableKWh) || s.AvailableKWh < 0 {
			return nil, model.NewValidationError(string(s.Asset), "availability must be >= 0, got %g", s.AvailableKWh)
		}
		if math.IsNaN(s.MarginalCost) || math.IsInf(s.MarginalCost, 0) || s.MarginalCost < 0 {
			return nil, model.NewConfigurationError(string(s.Asset), "marginal cost must be >= 0, got %g", s.MarginalCost)
		}
	}

	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool { return rank(ordered[i].Asset) < rank(ordered[j].Asset) })
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].MarginalCost < ordered[j].MarginalCost })

	remaining := decimal.NewFromFloat(demandKWh)
	alloc := &model.MeritOrderAllocation{DemandKWh: demandKWh, TotalCost: decimal.Zero}
	total := decimal.Zero
	for _, s := range ordered {
		available := decimal.NewFromFloat(math.Min(s.AvailableKWh, model.UnlimitedEnergyKWh))
		energy := decimal.Min(remaining, available)
		price := decimal.NewFromFloat(s.MarginalCost)
		cost := energy.Mul(price)
		alloc.Entries = append(alloc.Entries, model.AllocationEntry{
			Asset:        s.Asset,
			AvailableKWh: s.AvailableKWh,
			EnergyKWh:    energy.InexactFloat64(),
			MarginalCost: price,
			Cost:         cost,
		})
		alloc.TotalCost = alloc.TotalCost.Add(cost)
		total = total.Add(energy)
		remaining = remaining.Sub(energy)
	}
	alloc.TotalEnergyKWh = total.InexactFloat64()
	alloc.UnmetKWh = remaining.InexactFloat64()
	if remaining.IsPositive() {
		e.log.Warnf("merit order leaves %.3f kWh of %.3f kWh unmet", alloc.UnmetKWh, demandKWh)
	}
	e.log.Debugw("merit order allocated", map[string]any{
		"demand_kwh": demandKWh,
		"total_cost": alloc.TotalCost.String(),
		"used":       alloc.Used(),
	})
	return alloc, nil
}

// Estimate aggregates the series and allocates them in one call.
func (e *Estimator) Estimate(load, solarAvail, windAvail []float64, a model.AssetModel) (*model.MeritOrderAllocation, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	demand, sources := Aggregate(load, solarAvail, windAvail, a)
	return e.Allocate(demand, sources)
}

func rank(a model.Asset) int {
	for i, o := range Order {
		if o == a {
			return i
		}
	}
	return len(Order)
}
