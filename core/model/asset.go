package model

import "math"

// DefaultGridImportLimitKW stands in for "effectively unlimited" grid import.
// It is a finite constant so that the LP stays bounded and exportable.
const DefaultGridImportLimitKW = 1e6

// RenewableAsset describes a weather-dependent generator (solar or wind).
// The hourly availability profile is supplied separately with the run input.
type RenewableAsset struct {
	CapacityKW   float64 `json:"capacity_kw"`
	MarginalCost float64 `json:"marginal_cost"`
}

// MaxOutput returns the deliverable power for an availability fraction.
// A zero capacity yields zero whatever the profile says.
func (r RenewableAsset) MaxOutput(availability float64) float64 {
	if r.CapacityKW <= 0 {
		return 0
	}
	return r.CapacityKW * availability
}

// DieselGenerator has no commitment variable: when enabled it runs at least at
// MinLoadFraction of its capacity every hour.
type DieselGenerator struct {
	CapacityKW      float64 `json:"capacity_kw"`
	MinLoadFraction float64 `json:"min_load_fraction"`
	MarginalCost    float64 `json:"marginal_cost"`
	// Efficiency is informational and never scales power.
	Efficiency float64 `json:"efficiency"`
}

// Enabled reports whether the generator takes part in the dispatch.
func (d DieselGenerator) Enabled() bool { return d.CapacityKW > 0 }

// MinOutputKW is the mandatory hourly output when enabled.
func (d DieselGenerator) MinOutputKW() float64 {
	if !d.Enabled() {
		return 0
	}
	return d.MinLoadFraction * d.CapacityKW
}

// GridConnection models import from the utility.
type GridConnection struct {
	ImportLimitKW float64 `json:"import_limit_kw"`
	MarginalCost  float64 `json:"marginal_cost"`
}

// BatteryStorage models a single storage unit on the building bus.
type BatteryStorage struct {
	EnergyCapacityKWh   float64 `json:"energy_capacity_kwh"`
	PowerLimitKW        float64 `json:"power_limit_kw"`
	ChargeEfficiency    float64 `json:"charge_efficiency"`
	DischargeEfficiency float64 `json:"discharge_efficiency"`
	OMCost              float64 `json:"om_cost"`
}

// Enabled is false when the power limit is zero; such a battery is left out
// of the LP rather than rejected.
func (b BatteryStorage) Enabled() bool { return b.PowerLimitKW > 0 }

// MaxHours is the energy-to-power ratio, or 0 when the battery is disabled.
func (b BatteryStorage) MaxHours() float64 {
	if !b.Enabled() {
		return 0
	}
	return b.EnergyCapacityKWh / b.PowerLimitKW
}

// AssetModel groups the immutable per-run configuration of every asset.
// Methods return modified copies; the receiver is never changed.
type AssetModel struct {
	Solar   RenewableAsset  `json:"solar"`
	Wind    RenewableAsset  `json:"wind"`
	Diesel  DieselGenerator `json:"diesel"`
	Grid    GridConnection  `json:"grid"`
	Battery BatteryStorage  `json:"battery"`
}

// ForSeason returns a copy with the seasonal diesel multiplier applied.
func (a AssetModel) ForSeason(s Season) AssetModel {
	a.Diesel.MarginalCost *= s.DieselFactor()
	return a
}

// Validate rejects negative capacities and costs and out-of-range fractions.
func (a AssetModel) Validate() error {
	checks := []struct {
		field string
		v     float64
	}{
		{"solar.capacity_kw", a.Solar.CapacityKW},
		{"solar.marginal_cost", a.Solar.MarginalCost},
		{"wind.capacity_kw", a.Wind.CapacityKW},
		{"wind.marginal_cost", a.Wind.MarginalCost},
		{"diesel.capacity_kw", a.Diesel.CapacityKW},
		{"diesel.marginal_cost", a.Diesel.MarginalCost},
		{"grid.import_limit_kw", a.Grid.ImportLimitKW},
		{"grid.marginal_cost", a.Grid.MarginalCost},
		{"battery.energy_capacity_kwh", a.Battery.EnergyCapacityKWh},
		{"battery.power_limit_kw", a.Battery.PowerLimitKW},
		{"battery.om_cost", a.Battery.OMCost},
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return NewConfigurationError(c.field, "must be finite")
		}
		if c.v < 0 {
			return NewConfigurationError(c.field, "must be >= 0, got %g", c.v)
		}
	}
	if !inUnit(a.Diesel.MinLoadFraction) {
		return NewConfigurationError("diesel.min_load_fraction", "must be in [0,1], got %g", a.Diesel.MinLoadFraction)
	}
	if a.Diesel.Enabled() && !inHalfOpenUnit(a.Diesel.Efficiency) {
		return NewConfigurationError("diesel.efficiency", "must be in (0,1], got %g", a.Diesel.Efficiency)
	}
	if a.Battery.Enabled() {
		if !inHalfOpenUnit(a.Battery.ChargeEfficiency) {
			return NewConfigurationError("battery.charge_efficiency", "must be in (0,1], got %g", a.Battery.ChargeEfficiency)
		}
		if !inHalfOpenUnit(a.Battery.DischargeEfficiency) {
			return NewConfigurationError("battery.discharge_efficiency", "must be in (0,1], got %g", a.Battery.DischargeEfficiency)
		}
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

func inHalfOpenUnit(v float64) bool { return v > 0 && v <= 1 }
