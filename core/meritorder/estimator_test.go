package meritorder

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

func scenarioB() []Source {
	return []Source{
		{Asset: model.AssetDiesel, AvailableKWh: model.UnlimitedEnergyKWh, MarginalCost: 0.32},
		{Asset: model.AssetGrid, AvailableKWh: model.UnlimitedEnergyKWh, MarginalCost: 0.09},
		{Asset: model.AssetWind, AvailableKWh: 20, MarginalCost: 0.03},
		{Asset: model.AssetSolar, AvailableKWh: 30, MarginalCost: 0.02},
	}
}

func TestAllocateScenarioB(t *testing.T) {
	alloc, err := NewEstimator(nil).Allocate(100, scenarioB())
	require.NoError(t, err)

	want := map[model.Asset]float64{
		model.AssetSolar:  30,
		model.AssetWind:   20,
		model.AssetGrid:   50,
		model.AssetDiesel: 0,
	}
	for a, kwh := range want {
		e, ok := alloc.Entry(a)
		require.True(t, ok, a)
		assert.Equal(t, kwh, e.EnergyKWh, a)
	}
	assert.True(t, alloc.TotalCost.Equal(decimal.RequireFromString("5.7")), alloc.TotalCost.String())
	assert.Equal(t, 100.0, alloc.TotalEnergyKWh)
	assert.Zero(t, alloc.UnmetKWh)

	var order []model.Asset
	for _, e := range alloc.Entries {
		order = append(order, e.Asset)
	}
	assert.Equal(t, []model.Asset{model.AssetSolar, model.AssetWind, model.AssetGrid, model.AssetDiesel}, order)
}

func TestAllocationFollowsAscendingCost(t *testing.T) {
	alloc, err := NewEstimator(nil).Allocate(1e6, scenarioB())
	require.NoError(t, err)
	for i := 1; i < len(alloc.Entries); i++ {
		assert.True(t, alloc.Entries[i-1].MarginalCost.LessThanOrEqual(alloc.Entries[i].MarginalCost))
	}
}

func TestTiesFollowFixedOrder(t *testing.T) {
	sources := []Source{
		{Asset: model.AssetDiesel, AvailableKWh: 10, MarginalCost: 0.05},
		{Asset: model.AssetWind, AvailableKWh: 10, MarginalCost: 0.05},
		{Asset: model.AssetGrid, AvailableKWh: 10, MarginalCost: 0.05},
		{Asset: model.AssetBattery, AvailableKWh: 10, MarginalCost: 0.05},
		{Asset: model.AssetSolar, AvailableKWh: 10, MarginalCost: 0.05},
	}
	alloc, err := NewEstimator(nil).Allocate(25, sources)
	require.NoError(t, err)
	var got []model.Asset
	for _, e := range alloc.Entries {
		got = append(got, e.Asset)
	}
	assert.Equal(t, Order, got)
	assert.Equal(t, []model.Asset{model.AssetSolar, model.AssetBattery, model.AssetWind}, alloc.Used())
	wind, _ := alloc.Entry(model.AssetWind)
	assert.Equal(t, 5.0, wind.EnergyKWh)
}

func TestShortfallIsReportedAsUnmet(t *testing.T) {
	sources := []Source{
		{Asset: model.AssetSolar, AvailableKWh: 30, MarginalCost: 0.02},
		{Asset: model.AssetWind, AvailableKWh: 20, MarginalCost: 0.03},
	}
	alloc, err := NewEstimator(nil).Allocate(100, sources)
	require.NoError(t, err)
	assert.Equal(t, 50.0, alloc.TotalEnergyKWh)
	assert.Equal(t, 50.0, alloc.UnmetKWh)
	assert.Equal(t, "1.2", alloc.TotalCost.String())
}

func TestAllocateRejectsBadInput(t *testing.T) {
	e := NewEstimator(nil)
	_, err := e.Allocate(-1, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = e.Allocate(1, []Source{{Asset: model.AssetGrid, AvailableKWh: 1, MarginalCost: -0.1}})
	assert.ErrorIs(t, err, model.ErrConfiguration)
}

func TestEstimateAggregatesSeries(t *testing.T) {
	a := model.AssetModel{
		Solar:   model.RenewableAsset{CapacityKW: 10, MarginalCost: 0.02},
		Wind:    model.RenewableAsset{CapacityKW: 0, MarginalCost: 0.03},
		Grid:    model.GridConnection{ImportLimitKW: model.DefaultGridImportLimitKW, MarginalCost: 0.09},
		Battery: model.BatteryStorage{EnergyCapacityKWh: 8, PowerLimitKW: 2, ChargeEfficiency: 0.9, DischargeEfficiency: 0.9, OMCost: 0.01},
	}
	load := []float64{5, 5, 5, 5}
	solar := []float64{0, 0.5, 1, 0}
	wind := []float64{1, 1, 1, 1}

	demand, sources := Aggregate(load, solar, wind, a)
	assert.Equal(t, 20.0, demand)
	byAsset := map[model.Asset]float64{}
	for _, s := range sources {
		byAsset[s.Asset] = s.AvailableKWh
	}
	assert.Equal(t, 15.0, byAsset[model.AssetSolar])
	assert.Equal(t, 8.0, byAsset[model.AssetBattery])
	assert.Zero(t, byAsset[model.AssetWind], "zero capacity ignores the profile")
	assert.Zero(t, byAsset[model.AssetDiesel], "disabled diesel")
	assert.Equal(t, model.UnlimitedEnergyKWh, byAsset[model.AssetGrid])

	alloc, err := NewEstimator(nil).Estimate(load, solar, wind, a)
	require.NoError(t, err)
	// Battery (0.01) precedes solar (0.02): 8 + 12 kWh.
	assert.Equal(t, model.AssetBattery, alloc.Entries[0].Asset)
	assert.Equal(t, "0.32", alloc.TotalCost.String())
}
