package model

import "github.com/shopspring/decimal"

// UnlimitedEnergyKWh marks grid and diesel availability in the merit order.
// It is finite so that allocations stay JSON encodable.
const UnlimitedEnergyKWh = 1e12

// AllocationEntry is one row of a merit-order allocation.
type AllocationEntry struct {
	Asset        Asset           `json:"asset"`
	AvailableKWh float64         `json:"available_kwh"`
	EnergyKWh    float64         `json:"energy_kwh"`
	MarginalCost decimal.Decimal `json:"marginal_cost"`
	Cost         decimal.Decimal `json:"cost"`
}

// MeritOrderAllocation is a lower-bound cost estimate: it ignores hourly
// balance, storage coupling and the diesel minimum and is not a physically
// realizable dispatch. Entries are in allocation order.
type MeritOrderAllocation struct {
	Entries        []AllocationEntry `json:"entries"`
	DemandKWh      float64           `json:"demand_kwh"`
	TotalEnergyKWh float64           `json:"total_energy_kwh"`
	TotalCost      decimal.Decimal   `json:"total_cost"`
	UnmetKWh       float64           `json:"unmet_kwh"`
}

// Entry returns the entry of asset a.
func (m *MeritOrderAllocation) Entry(a Asset) (AllocationEntry, bool) {
	for _, e := range m.Entries {
		if e.Asset == a {
			return e, true
		}
	}
	return AllocationEntry{}, false
}

// Used returns the assets that received a non-zero share, in allocation order.
func (m *MeritOrderAllocation) Used() []Asset {
	var out []Asset
	for _, e := range m.Entries {
		if e.EnergyKWh > 0 {
			out = append(out, e.Asset)
		}
	}
	return out
}

// CostShare returns the percentage of the total cost carried by e, rounded
// to two decimals. It is zero when the total cost is zero.
func (m *MeritOrderAllocation) CostShare(e AllocationEntry) decimal.Decimal {
	if m.TotalCost.IsZero() {
		return decimal.Zero
	}
	return e.Cost.Div(m.TotalCost).Mul(decimal.NewFromInt(100)).Round(2)
}
